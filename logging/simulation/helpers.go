package simulation

import (
	"context"

	"arena-bots/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a bot tick takes longer than its budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventTickBudgetAlarm is emitted when overruns keep happening for a whole streak.
	EventTickBudgetAlarm logging.EventType = "simulation.tick_budget_alarm"
	// EventRunCompleted is emitted when an offline simulation finishes.
	EventRunCompleted logging.EventType = "simulation.run_completed"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
	Bots           int     `json:"bots"`
}

// TickBudgetOverrun publishes a warning when a tick exceeds the configured budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
		Extra:    extra,
	})
}

// TickBudgetAlarmPayload captures a sustained overrun streak.
type TickBudgetAlarmPayload struct {
	DurationMillis  int64   `json:"durationMillis"`
	BudgetMillis    int64   `json:"budgetMillis"`
	Ratio           float64 `json:"ratio"`
	Streak          uint64  `json:"streak"`
	ThresholdRatio  float64 `json:"thresholdRatio"`
	ThresholdStreak uint64  `json:"thresholdStreak"`
}

// TickBudgetAlarm publishes an error event once the overrun streak reaches its threshold.
func TickBudgetAlarm(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetAlarmPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetAlarm,
		Tick:     tick,
		Severity: logging.SeverityError,
		Category: "simulation",
		Payload:  payload,
		Extra:    extra,
	})
}

// RunCompletedPayload summarises an offline run.
type RunCompletedPayload struct {
	Ticks        uint64 `json:"ticks"`
	Bots         int    `json:"bots"`
	GoalsReached int    `json:"goalsReached"`
	ItemsTaken   int    `json:"itemsTaken"`
	SpotsVisited int    `json:"spotsVisited"`
}

// RunCompleted publishes the summary of a finished offline run.
func RunCompleted(ctx context.Context, pub logging.Publisher, tick uint64, payload RunCompletedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRunCompleted,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: "simulation",
		Payload:  payload,
		Extra:    extra,
	})
}
