package goals

import (
	"context"

	"arena-bots/server/logging"
	loggingGoals "arena-bots/server/logging/goals"
)

// Coordinator links the arbiters sharing a nav entity registry. When an agent
// reaches a nav entity every other agent heading for it drops its goals on
// the spot. It is a notification, not a reservation.
type Coordinator struct {
	arbiters []*Arbiter
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Register adds an arbiter. Registering twice is a no-op.
func (c *Coordinator) Register(a *Arbiter) {
	if c == nil || a == nil {
		return
	}
	for _, existing := range c.arbiters {
		if existing == a {
			return
		}
	}
	c.arbiters = append(c.arbiters, a)
}

// Unregister removes an arbiter, typically when its agent leaves the level.
func (c *Coordinator) Unregister(a *Arbiter) {
	if c == nil {
		return
	}
	for i, existing := range c.arbiters {
		if existing == a {
			c.arbiters = append(c.arbiters[:i], c.arbiters[i+1:]...)
			return
		}
	}
}

// Arbiters returns the registered arbiters in registration order.
func (c *Coordinator) Arbiters() []*Arbiter {
	if c == nil {
		return nil
	}
	return append([]*Arbiter(nil), c.arbiters...)
}

// ClearGoals makes every arbiter but except whose long or short-term goal
// is built on nav drop all its goals. It returns how many arbiters did.
func (c *Coordinator) ClearGoals(ctx context.Context, frame Frame, nav NavHandle, except *Arbiter) int {
	if c == nil || !nav.Valid() {
		return 0
	}
	cleared := 0
	for _, a := range c.arbiters {
		if a == except {
			continue
		}
		var goal *NavTarget
		switch {
		case a.longTerm != nil && a.longTerm.IsBasedOnNavEntity(nav):
			goal = a.longTerm
		case a.shortTerm != nil && a.shortTerm.IsBasedOnNavEntity(nav):
			goal = a.shortTerm
		default:
			continue
		}
		a.frame = frame
		if a.pub != nil {
			payload := loggingGoals.GoalPayload{Target: goal.Name(), Reason: "taken"}
			if except != nil {
				payload.Reason = "taken_by_" + logging.BotRef(except.id).ID
			}
			loggingGoals.GoalClearedByOther(ctx, a.pub, frame.Tick, logging.BotRef(a.id), a.goalTargets(goal), payload, nil)
		}
		a.ClearAllGoals(ctx)
		cleared++
	}
	return cleared
}
