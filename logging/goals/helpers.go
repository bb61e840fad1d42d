package goals

import (
	"context"

	"arena-bots/server/logging"
)

const (
	// EventGoalSet is emitted when an agent adopts a new goal.
	EventGoalSet logging.EventType = "goals.goal_set"
	// EventGoalKept is emitted when a reevaluation keeps the current goal.
	EventGoalKept logging.EventType = "goals.goal_kept"
	// EventGoalReached is emitted when an agent reaches its goal.
	EventGoalReached logging.EventType = "goals.goal_reached"
	// EventGoalCancelled is emitted when a goal stops being worth pursuing.
	EventGoalCancelled logging.EventType = "goals.goal_cancelled"
	// EventGoalClearedByOther is emitted when another agent grabbed the goal first.
	EventGoalClearedByOther logging.EventType = "goals.goal_cleared_by_other"
)

// GoalPayload describes a goal transition.
type GoalPayload struct {
	Slot       string  `json:"slot"`
	Target     string  `json:"target"`
	Weight     float64 `json:"weight,omitempty"`
	PrevTarget string  `json:"prevTarget,omitempty"`
	PrevWeight float64 `json:"prevWeight,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload GoalPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: severity,
		Category: logging.CategoryGoals,
		Payload:  payload,
		Extra:    extra,
	})
}

// GoalSet publishes an info event for a newly adopted goal.
func GoalSet(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload GoalPayload, extra map[string]any) {
	publish(ctx, pub, EventGoalSet, logging.SeverityInfo, tick, actor, targets, payload, extra)
}

// GoalKept publishes a debug event when hysteresis keeps the current goal.
func GoalKept(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload GoalPayload, extra map[string]any) {
	publish(ctx, pub, EventGoalKept, logging.SeverityDebug, tick, actor, targets, payload, extra)
}

// GoalReached publishes an info event for a reached goal.
func GoalReached(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload GoalPayload, extra map[string]any) {
	publish(ctx, pub, EventGoalReached, logging.SeverityInfo, tick, actor, targets, payload, extra)
}

// GoalCancelled publishes an info event for a dropped goal.
func GoalCancelled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload GoalPayload, extra map[string]any) {
	publish(ctx, pub, EventGoalCancelled, logging.SeverityInfo, tick, actor, targets, payload, extra)
}

// GoalClearedByOther publishes a debug event when another agent took the goal.
func GoalClearedByOther(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload GoalPayload, extra map[string]any) {
	publish(ctx, pub, EventGoalClearedByOther, logging.SeverityDebug, tick, actor, targets, payload, extra)
}
