package tactical

import (
	"context"

	"arena-bots/server/logging"
)

const (
	// EventSpotSearchCompleted summarises one tactical spot search.
	EventSpotSearchCompleted logging.EventType = "tactical.spot_search_completed"
	// EventSpotRegistryBuilt is emitted when precomputed spots are picked for a level.
	EventSpotRegistryBuilt logging.EventType = "tactical.spot_registry_built"
	// EventSpotRegistryLoaded is emitted when spots are restored from the cache.
	EventSpotRegistryLoaded logging.EventType = "tactical.spot_registry_loaded"
)

// SpotSearchPayload counts the survivors of every search stage.
type SpotSearchPayload struct {
	Problem      string `json:"problem"`
	BoundsAreas  int    `json:"boundsAreas"`
	Candidates   int    `json:"candidates"`
	ReachChecked int    `json:"reachChecked"`
	TraceChecked int    `json:"traceChecked"`
	Spots        int    `json:"spots"`
}

// SpotRegistryPayload describes a spot registry of a level.
type SpotRegistryPayload struct {
	Checksum string `json:"checksum"`
	Spots    int    `json:"spots"`
	Source   string `json:"source,omitempty"`
}

// SpotSearchCompleted publishes a debug event for a finished search.
func SpotSearchCompleted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SpotSearchPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpotSearchCompleted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryTactical,
		Payload:  payload,
		Extra:    extra,
	})
}

// SpotRegistryBuilt publishes an info event once spots have been picked.
func SpotRegistryBuilt(ctx context.Context, pub logging.Publisher, tick uint64, payload SpotRegistryPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpotRegistryBuilt,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryTactical,
		Payload:  payload,
		Extra:    extra,
	})
}

// SpotRegistryLoaded publishes an info event once cached spots are restored.
func SpotRegistryLoaded(ctx context.Context, pub logging.Publisher, tick uint64, payload SpotRegistryPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpotRegistryLoaded,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryTactical,
		Payload:  payload,
		Extra:    extra,
	})
}
