package goals

import "time"

// Weights holds the per-agent weight of every nav entity considered a
// potential goal. Missing entries weigh zero.
type Weights map[NavHandle]float64

// Policy supplies the agent specific parts of goal arbitration.
type Policy interface {
	// UpdateWeights fills weights, which arrives cleared.
	UpdateWeights(now time.Duration, agent Agent, registry *Registry, weights Weights)
	// MayNotBeFeasibleGoal reports goals that are no longer realistically
	// achievable, such as items guarded by a stronger enemy.
	MayNotBeFeasibleGoal(agent Agent, target *NavTarget) bool
	// ShouldCancelSpecialGoal adds cancellation reasons for special goals.
	ShouldCancelSpecialGoal(agent Agent, target *NavTarget) bool
}

// KindWeights weighs nav entities by kind. Clients and kinds missing from
// the table weigh zero.
type KindWeights map[string]float64

func (k KindWeights) UpdateWeights(_ time.Duration, _ Agent, registry *Registry, weights Weights) {
	registry.Each(func(e *NavEntity) bool {
		if e.Client {
			return true
		}
		if w := k[e.Kind]; w > 0 {
			weights[e.Handle] = w
		}
		return true
	})
}

func (KindWeights) MayNotBeFeasibleGoal(Agent, *NavTarget) bool { return false }

func (KindWeights) ShouldCancelSpecialGoal(Agent, *NavTarget) bool { return false }
