package lifecycle

import (
	"context"

	"arena-bots/server/logging"
)

const (
	// EventBotSpawned is emitted when a bot enters the level.
	EventBotSpawned logging.EventType = "lifecycle.bot_spawned"
	// EventBotRemoved is emitted when a bot leaves the level.
	EventBotRemoved logging.EventType = "lifecycle.bot_removed"
	// EventItemTaken is emitted when a bot picks up a nav entity.
	EventItemTaken logging.EventType = "lifecycle.item_taken"
	// EventItemRespawned is emitted when a taken nav entity becomes available again.
	EventItemRespawned logging.EventType = "lifecycle.item_respawned"
)

// BotSpawnedPayload captures where a bot entered the level.
type BotSpawnedPayload struct {
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	AreaNum int     `json:"areaNum"`
}

// BotRemovedPayload captures why a bot left.
type BotRemovedPayload struct {
	Reason string `json:"reason"`
}

// ItemPayload describes a nav entity changing availability.
type ItemPayload struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	RespawnMillis int64  `json:"respawnMillis,omitempty"`
}

// BotSpawned publishes a bot spawn event.
func BotSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BotSpawnedPayload, extra map[string]any) {
	publish(ctx, pub, EventBotSpawned, logging.SeverityInfo, tick, actor, nil, payload, extra)
}

// BotRemoved publishes a bot removal event.
func BotRemoved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BotRemovedPayload, extra map[string]any) {
	publish(ctx, pub, EventBotRemoved, logging.SeverityInfo, tick, actor, nil, payload, extra)
}

// ItemTaken publishes a debug event when actor picks up the nav entity item.
func ItemTaken(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, item logging.EntityRef, payload ItemPayload, extra map[string]any) {
	publish(ctx, pub, EventItemTaken, logging.SeverityDebug, tick, actor, []logging.EntityRef{item}, payload, extra)
}

// ItemRespawned publishes a debug event when a nav entity is back.
func ItemRespawned(ctx context.Context, pub logging.Publisher, tick uint64, item logging.EntityRef, payload ItemPayload, extra map[string]any) {
	publish(ctx, pub, EventItemRespawned, logging.SeverityDebug, tick, item, nil, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: severity,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	})
}
