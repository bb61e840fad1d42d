package navigation

import (
	"context"

	"arena-bots/server/logging"
)

const (
	// EventWorldLoaded is emitted once an area file has been decoded.
	EventWorldLoaded logging.EventType = "navigation.world_loaded"
	// EventWorldLoadFailed is emitted when an area file is rejected.
	EventWorldLoadFailed logging.EventType = "navigation.world_load_failed"
	// EventAreaDataComputed summarises the derived area flags and clusters.
	EventAreaDataComputed logging.EventType = "navigation.area_data_computed"
	// EventTraversalOverflow is emitted when a bounded tree walk runs out of stack.
	EventTraversalOverflow logging.EventType = "navigation.traversal_overflow"
	// EventLinkPoolExhausted is emitted when no entity area link is left.
	EventLinkPoolExhausted logging.EventType = "navigation.link_pool_exhausted"
)

// WorldLoadedPayload describes a freshly loaded area world.
type WorldLoadedPayload struct {
	Map      string `json:"map"`
	Version  int    `json:"version"`
	Checksum string `json:"checksum"`
	Areas    int    `json:"areas"`
	Reaches  int    `json:"reaches"`
	Size     string `json:"size,omitempty"`
}

// WorldLoadFailedPayload carries the rejection reason.
type WorldLoadFailedPayload struct {
	Map    string `json:"map"`
	Reason string `json:"reason"`
}

// AreaDataPayload counts derived flags and clusters.
type AreaDataPayload struct {
	Ledges         int `json:"ledges"`
	Walls          int `json:"walls"`
	Junk           int `json:"junk"`
	Ramps          int `json:"ramps"`
	NoFall         int `json:"noFall"`
	FloorClusters  int `json:"floorClusters"`
	StairsClusters int `json:"stairsClusters"`
}

// TraversalOverflowPayload identifies the walk that overflowed.
type TraversalOverflowPayload struct {
	Routine   string `json:"routine"`
	Limit     int    `json:"limit"`
	Collected int    `json:"collected"`
}

// LinkPoolExhaustedPayload identifies the entity that could not be linked.
type LinkPoolExhaustedPayload struct {
	Entity   int `json:"entity"`
	Capacity int `json:"capacity"`
}

// WorldLoaded publishes an info event for a loaded area world.
func WorldLoaded(ctx context.Context, pub logging.Publisher, tick uint64, payload WorldLoadedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWorldLoaded,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}

// WorldLoadFailed publishes an error event for a rejected area file.
func WorldLoadFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload WorldLoadFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWorldLoadFailed,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityError,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}

// AreaDataComputed publishes a debug summary of the post load pass.
func AreaDataComputed(ctx context.Context, pub logging.Publisher, tick uint64, payload AreaDataPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAreaDataComputed,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}

// TraversalOverflow publishes a warning when a tree walk returned a partial result.
func TraversalOverflow(ctx context.Context, pub logging.Publisher, tick uint64, payload TraversalOverflowPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTraversalOverflow,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}

// LinkPoolExhausted publishes an error when the link pool ran dry.
func LinkPoolExhausted(ctx context.Context, pub logging.Publisher, tick uint64, payload LinkPoolExhaustedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLinkPoolExhausted,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityError,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}
