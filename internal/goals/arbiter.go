// Package goals arbitrates what an agent wants to reach next. Every agent
// owns an Arbiter holding up to three goals: a long-term goal, a short-term
// detour picked on the way and a special goal that, while set, suppresses
// all other picking.
package goals

import (
	"context"
	"sort"
	"time"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/route"
	"arena-bots/server/logging"
	loggingGoals "arena-bots/server/logging/goals"
)

const (
	// Cost added to every candidate so zero travel never divides by zero.
	baseCost = 0.0001
	// Short-term candidates must be roughly ahead of the agent.
	inFrontDot        = 0.7
	behindWeightScale = 0.5
	// Extra slack around goals tested by IsCloseToAnyGoal.
	closeToGoalSlack = 32.0
	minBestWeight    = 0.000001
	// Vertical probes used to place short-term targets into areas.
	areaProbeOffset = 8.0
)

// Slot names one of the goals an Arbiter holds.
type Slot int

const (
	LongTerm Slot = iota
	ShortTerm
	Special
)

func (s Slot) String() string {
	switch s {
	case LongTerm:
		return "long_term"
	case ShortTerm:
		return "short_term"
	case Special:
		return "special"
	}
	return "unknown"
}

// Agent is the per-tick view of the agent an Arbiter works for.
type Agent struct {
	ID             int
	Origin         geom.Vec3
	Forward        geom.Vec3
	CurrAreaNum    int
	PreferredFlags aas.TravelFlags
	AllowedFlags   aas.TravelFlags
	CanMove        bool
	Ghosting       bool
}

// Frame identifies the simulation tick being processed.
type Frame struct {
	Tick uint64
	Now  time.Duration
}

// AreaLocator places points into areas.
type AreaLocator interface {
	PointAreaNum(point geom.Vec3) int
}

// Deps carries the shared collaborators of an Arbiter.
type Deps struct {
	World       AreaLocator
	Registry    *Registry
	Oracle      route.Oracle
	Coordinator *Coordinator
	Policy      Policy
	Publisher   logging.Publisher
}

type candidate struct {
	nav    NavHandle
	weight float64
}

// Arbiter keeps the goals of one agent. It is not safe for concurrent use.
type Arbiter struct {
	id       int
	world    AreaLocator
	registry *Registry
	oracle   route.Oracle
	coord    *Coordinator
	policy   Policy
	pub      logging.Publisher
	cfg      Config

	agent Agent
	frame Frame

	weights      Weights
	weightsTick  uint64
	weightsValid bool

	longTerm  *NavTarget
	shortTerm *NavTarget
	special   *NavTarget

	longTermSearchTimeout        time.Duration
	longTermReevaluationTimeout  time.Duration
	shortTermSearchTimeout       time.Duration
	shortTermReevaluationTimeout time.Duration
}

// NewArbiter creates an arbiter for agent id and registers it with the
// coordinator of deps. A nil policy weighs entities by cfg.Weights.
func NewArbiter(id int, deps Deps, cfg Config) *Arbiter {
	cfg = cfg.Normalized()
	policy := deps.Policy
	if policy == nil {
		policy = KindWeights(cfg.Weights)
	}
	a := &Arbiter{
		id:       id,
		world:    deps.World,
		registry: deps.Registry,
		oracle:   deps.Oracle,
		coord:    deps.Coordinator,
		policy:   policy,
		pub:      deps.Publisher,
		cfg:      cfg,
		weights:  make(Weights),
	}
	a.coord.Register(a)
	return a
}

func (a *Arbiter) ID() int { return a.id }

func (a *Arbiter) LongTermGoal() *NavTarget  { return a.longTerm }
func (a *Arbiter) ShortTermGoal() *NavTarget { return a.shortTerm }
func (a *Arbiter) SpecialGoal() *NavTarget   { return a.special }

// NavigationTarget is the goal movement should head for: the special goal,
// else the short-term detour, else the long-term goal.
func (a *Arbiter) NavigationTarget() *NavTarget {
	switch {
	case a.special != nil:
		return a.special
	case a.shortTerm != nil:
		return a.shortTerm
	default:
		return a.longTerm
	}
}

// GoalAreaNum returns the area of the most important goal, or 0.
func (a *Arbiter) GoalAreaNum() int {
	for _, goal := range []*NavTarget{a.special, a.longTerm, a.shortTerm} {
		if goal != nil {
			return goal.AreaNum()
		}
	}
	return 0
}

// Update records the agent state used by the goal queries below.
func (a *Arbiter) Update(frame Frame, agent Agent) {
	a.frame = frame
	a.agent = agent
}

// Think runs one arbitration step. Searches and reevaluations only happen
// when their timers have elapsed.
func (a *Arbiter) Think(ctx context.Context, frame Frame, agent Agent) {
	a.Update(frame, agent)
	if agent.CurrAreaNum == 0 {
		return
	}

	a.CheckOrCancelGoal(ctx)

	now := frame.Now
	if a.longTermSearchTimeout <= now || a.longTermReevaluationTimeout <= now {
		a.updateWeights()
		a.pickLongTermGoal(ctx)
	}
	if a.shortTermSearchTimeout <= now || a.shortTermReevaluationTimeout <= now {
		a.updateWeights()
		a.pickShortTermGoal(ctx)
	}
}

// Weight returns the current weight of a nav entity for this agent.
func (a *Arbiter) Weight(h NavHandle) float64 { return a.weights[h] }

func (a *Arbiter) updateWeights() {
	if a.weightsValid && a.weightsTick == a.frame.Tick {
		return
	}
	clear(a.weights)
	a.policy.UpdateWeights(a.frame.Now, a.agent, a.registry, a.weights)
	a.weightsTick = a.frame.Tick
	a.weightsValid = true
}

// travelTime queries the oracle with the preferred flags first, then the
// allowed ones. The result is in hundredths of a second.
func (a *Arbiter) travelTime(fromArea, toArea int) int {
	if a.oracle == nil || fromArea <= 0 || toArea <= 0 {
		return 0
	}
	if t := a.oracle.TravelTimeToGoalArea(fromArea, toArea, a.agent.PreferredFlags); t > 0 {
		return t
	}
	if a.agent.AllowedFlags == a.agent.PreferredFlags {
		return 0
	}
	return a.oracle.TravelTimeToGoalArea(fromArea, toArea, a.agent.AllowedFlags)
}

func centiseconds(t int) time.Duration { return time.Duration(t) * 10 * time.Millisecond }

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// CheckOrCancelGoal drops goals that are no longer worth pursuing.
func (a *Arbiter) CheckOrCancelGoal(ctx context.Context) {
	for _, slot := range []Slot{LongTerm, ShortTerm} {
		goal := a.goal(slot)
		if goal == nil {
			continue
		}
		if reason := a.cancelReason(goal); reason != "" {
			a.publishGoal(ctx, loggingGoals.GoalCancelled, slot, goal, 0, reason)
			a.clearLongAndShortTermGoal(ctx, goal, false)
			break
		}
	}
	if a.special != nil {
		if reason := a.cancelReason(a.special); reason != "" {
			a.publishGoal(ctx, loggingGoals.GoalCancelled, Special, a.special, 0, reason)
			a.special = nil
		}
	}
}

// ShouldCancelGoal reports whether goal should be dropped now.
func (a *Arbiter) ShouldCancelGoal(goal *NavTarget) bool {
	return a.cancelReason(goal) != ""
}

func (a *Arbiter) cancelReason(goal *NavTarget) string {
	now := a.frame.Now
	if goal.IsDisabled() {
		return "disabled"
	}
	spawnAt, known := goal.SpawnTime(now)
	if !known {
		return "respawn_unknown"
	}
	if goal.Timeout() <= now {
		return "timed_out"
	}
	if goal.IsBasedOnSomeEntity() {
		if move := centiseconds(a.travelTime(a.agent.CurrAreaNum, goal.AreaNum())); move > 0 {
			reachAt := now + move
			if spawnAt > reachAt && spawnAt-reachAt > a.cfg.MaxWaitDuration {
				return "wait_too_long"
			}
		}
		if a.policy.MayNotBeFeasibleGoal(a.agent, goal) {
			return "infeasible"
		}
	}
	if goal == a.special && a.policy.ShouldCancelSpecialGoal(a.agent, goal) {
		return "special"
	}
	return ""
}

func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].weight > candidates[j].weight
	})
}

func (a *Arbiter) firstFeasible(candidates []candidate) (candidate, bool) {
	for _, c := range candidates {
		target := EntityTarget(a.registry, c.nav)
		if !a.policy.MayNotBeFeasibleGoal(a.agent, &target) {
			return c, true
		}
	}
	return candidate{}, false
}

func (a *Arbiter) selectLongTermGoalCandidates() ([]candidate, float64) {
	now := a.frame.Now
	var (
		result     []candidate
		currWeight float64
	)
	a.registry.Each(func(e *NavEntity) bool {
		weight := a.weights[e.Handle]
		if weight <= 0 {
			return true
		}

		move, wait := time.Millisecond, time.Millisecond
		if a.agent.CurrAreaNum != e.AreaNum {
			move = centiseconds(a.travelTime(a.agent.CurrAreaNum, e.AreaNum))
			if move == 0 {
				return true
			}
			if e.IsDroppedEntity() && e.Timeout() <= now+move {
				return true
			}
		}

		spawnAt, known := e.SpawnTime(now)
		if !known {
			return true
		}
		if reachAt := now + move; reachAt < spawnAt {
			wait = spawnAt - reachAt
		}
		if wait > a.cfg.MaxWaitDuration {
			return true
		}

		cost := baseCost + a.cfg.MoveTimeWeight*millis(move) + a.cfg.WaitTimeWeight*millis(wait)
		weight = 1000 * weight / (cost * a.cfg.CostInfluence)

		if a.longTerm != nil && a.longTerm.IsBasedOnNavEntity(e.Handle) {
			currWeight = weight
		}
		result = append(result, candidate{nav: e.Handle, weight: weight})
		return true
	})
	sortCandidates(result)
	return result, currWeight
}

func (a *Arbiter) pickLongTermGoal(ctx context.Context) {
	now := a.frame.Now
	if a.agent.Ghosting || a.special != nil || !a.agent.CanMove {
		return
	}
	if a.longTermSearchTimeout > now && a.longTermReevaluationTimeout > now {
		return
	}

	candidates, currWeight := a.selectLongTermGoalCandidates()
	if currWeight > 0 && a.policy.MayNotBeFeasibleGoal(a.agent, a.longTerm) {
		currWeight = 0
	}
	if len(candidates) == 0 {
		return
	}
	best, ok := a.firstFeasible(candidates)
	if !ok {
		return
	}

	searching := a.longTermSearchTimeout <= now
	keepRatio := a.cfg.LongTermReevaluateKeepRatio
	if searching {
		keepRatio = a.cfg.LongTermSearchKeepRatio
	}

	switch {
	case a.longTerm != nil && a.longTerm.IsBasedOnNavEntity(best.nav):
		a.publishGoal(ctx, loggingGoals.GoalKept, LongTerm, a.longTerm, best.weight, "best")
	case currWeight > 0 && currWeight/best.weight > keepRatio:
		a.publishGoal(ctx, loggingGoals.GoalKept, LongTerm, a.longTerm, currWeight, "good_enough")
	default:
		a.setLongTermGoal(ctx, best, currWeight)
	}

	if searching {
		a.longTermSearchTimeout = now + a.cfg.LongTermSearchPeriod
		a.longTermReevaluationTimeout = now + a.cfg.LongTermReevaluationPeriod
		a.shortTermSearchTimeout = now + a.cfg.ShortTermSearchPeriod
		a.shortTermReevaluationTimeout = now + a.cfg.ShortTermSearchPeriod + a.cfg.ShortTermReevaluationPeriod
	} else {
		a.longTermReevaluationTimeout = now + a.cfg.LongTermReevaluationPeriod
	}
}

func (a *Arbiter) selectShortTermGoalCandidates() ([]candidate, float64) {
	var (
		result     []candidate
		currWeight float64
	)
	a.registry.Each(func(e *NavEntity) bool {
		// Spawn is not predicted for short-term goals.
		if !e.IsSpawned() || e.Client {
			return true
		}
		baseWeight := a.weights[e.Handle]
		if baseWeight <= 0 {
			return true
		}

		dist := e.Origin.DistanceTo(a.agent.Origin)
		radius := a.cfg.ShortTermRadius
		if a.longTerm != nil && a.longTerm.IsBasedOnNavEntity(e.Handle) {
			radius = a.cfg.ShortTermLongTermGoalRadius
		}
		if dist > radius {
			return true
		}
		if dist < 0.01 {
			dist = 0.01
		}

		inFront := true
		if dist > 1 {
			toTarget := e.Origin.Sub(a.agent.Origin).Scale(1 / dist)
			inFront = toTarget.Dot(a.agent.Forward) >= inFrontDot
		}
		weight := baseWeight / dist
		if !inFront {
			weight *= behindWeightScale
		}
		if weight == 0 {
			return true
		}

		if a.shortTerm != nil && a.shortTerm.IsBasedOnNavEntity(e.Handle) {
			currWeight = weight
		}
		result = append(result, candidate{nav: e.Handle, weight: weight})
		return true
	})
	sortCandidates(result)
	return result, currWeight
}

// toAndBackTravelTimes returns travel times from the agent to target and
// back, both zero when either way is unreachable.
func (a *Arbiter) toAndBackTravelTimes(target geom.Vec3) (int, int) {
	if a.world == nil {
		return 0, 0
	}
	tested := target
	areaNum := a.world.PointAreaNum(tested)
	if areaNum == 0 {
		tested[2] += areaProbeOffset
		areaNum = a.world.PointAreaNum(tested)
		if areaNum == 0 {
			tested[2] -= 2 * areaProbeOffset
			areaNum = a.world.PointAreaNum(tested)
		}
	}
	if areaNum == 0 {
		return 0, 0
	}
	if areaNum == a.agent.CurrAreaNum {
		return 1, 1
	}
	to := a.travelTime(a.agent.CurrAreaNum, areaNum)
	if to == 0 {
		return 0, 0
	}
	return to, a.travelTime(areaNum, a.agent.CurrAreaNum)
}

func (a *Arbiter) selectShortTermReachableGoals(candidates []candidate) ([]candidate, bool) {
	now := a.frame.Now
	var (
		result        []candidate
		currReachable bool
	)
	for _, c := range candidates {
		e := a.registry.Get(c.nav)
		if e == nil {
			continue
		}
		to, back := a.toAndBackTravelTimes(e.Origin)
		if to == 0 || back == 0 {
			continue
		}
		toTime, backTime := centiseconds(to), centiseconds(back)
		if e.IsDroppedEntity() && e.Timeout() <= now+toTime {
			continue
		}
		if (toTime+backTime)/2 >= a.cfg.ShortTermRoundTrip {
			continue
		}
		result = append(result, c)
		if a.shortTerm != nil && a.shortTerm.IsBasedOnNavEntity(c.nav) {
			currReachable = true
		}
	}
	return result, currReachable
}

func (a *Arbiter) pickShortTermGoal(ctx context.Context) {
	now := a.frame.Now
	if a.special != nil || a.agent.Ghosting {
		return
	}
	if a.shortTermSearchTimeout > now && a.shortTermReevaluationTimeout > now {
		return
	}

	candidates, currWeight := a.selectShortTermGoalCandidates()
	if len(candidates) == 0 {
		return
	}
	if currWeight > 0 && a.policy.MayNotBeFeasibleGoal(a.agent, a.shortTerm) {
		currWeight = 0
	}
	reachable, currReachable := a.selectShortTermReachableGoals(candidates)
	if !currReachable {
		currWeight = 0
	}
	if len(reachable) == 0 {
		return
	}
	best, ok := a.firstFeasible(reachable)
	if !ok {
		return
	}
	if best.weight < minBestWeight {
		best.weight = minBestWeight
	}

	// An expired search timer means a search is running, which outranks
	// the reevaluation timer when both have expired.
	searching := a.shortTermSearchTimeout <= now
	keepRatio := a.cfg.ShortTermReevaluateKeepRatio
	if searching {
		keepRatio = a.cfg.ShortTermSearchKeepRatio
	}

	switch {
	case a.shortTerm != nil && a.shortTerm.IsBasedOnNavEntity(best.nav):
		a.publishGoal(ctx, loggingGoals.GoalKept, ShortTerm, a.shortTerm, best.weight, "best")
	case currWeight > 0 && currWeight/best.weight > keepRatio:
		a.publishGoal(ctx, loggingGoals.GoalKept, ShortTerm, a.shortTerm, currWeight, "good_enough")
	default:
		a.setShortTermGoal(ctx, best, currWeight)
	}

	if searching {
		a.shortTermSearchTimeout = now + a.cfg.ShortTermSearchPeriod
	}
	a.shortTermReevaluationTimeout = now + a.cfg.ShortTermReevaluationPeriod
}

func (a *Arbiter) setLongTermGoal(ctx context.Context, c candidate, prevWeight float64) {
	prev := a.longTerm
	target := EntityTarget(a.registry, c.nav)
	a.longTerm = &target
	// A new long-term goal invalidates the detour picked on the way to the
	// previous one.
	a.shortTerm = nil
	now := a.frame.Now
	a.longTermSearchTimeout = now + a.cfg.LongTermSearchPeriod
	a.longTermReevaluationTimeout = now + a.cfg.LongTermReevaluationPeriod
	a.publishGoalChange(ctx, LongTerm, a.longTerm, c.weight, prev, prevWeight)
}

func (a *Arbiter) setShortTermGoal(ctx context.Context, c candidate, prevWeight float64) {
	prev := a.shortTerm
	target := EntityTarget(a.registry, c.nav)
	a.shortTerm = &target
	now := a.frame.Now
	a.shortTermSearchTimeout = now + a.cfg.ShortTermSearchPeriod
	a.shortTermReevaluationTimeout = now + a.cfg.ShortTermReevaluationPeriod
	a.publishGoalChange(ctx, ShortTerm, a.shortTerm, c.weight, prev, prevWeight)
}

// SetSpecialGoal installs a goal that suppresses long and short-term
// picking until it is reached or cancelled.
func (a *Arbiter) SetSpecialGoal(ctx context.Context, goal NavTarget) {
	prev := a.special
	a.special = &goal
	a.publishGoalChange(ctx, Special, a.special, 0, prev, 0)
}

// ClearSpecialGoal drops the special goal, if any.
func (a *Arbiter) ClearSpecialGoal() { a.special = nil }

// clearLongAndShortTermGoal drops both goals and schedules a new long-term
// search on the next tick. With notify set, other agents holding the same
// nav entity drop it too.
func (a *Arbiter) clearLongAndShortTermGoal(ctx context.Context, picked *NavTarget, notify bool) {
	now := a.frame.Now
	a.longTerm = nil
	a.longTermSearchTimeout = now + time.Millisecond
	a.longTermReevaluationTimeout = now + a.cfg.LongTermReevaluationPeriod
	a.shortTerm = nil
	a.shortTermSearchTimeout = now + a.cfg.ShortTermSearchPeriod
	a.shortTermReevaluationTimeout = now + a.cfg.ShortTermSearchPeriod + a.cfg.ShortTermReevaluationPeriod
	if notify && picked != nil && picked.IsBasedOnSomeEntity() {
		a.coord.ClearGoals(ctx, a.frame, picked.Nav(), a)
	}
}

// ClearAllGoals drops every goal without notifying other agents.
func (a *Arbiter) ClearAllGoals(ctx context.Context) {
	if a.longTerm != nil || a.shortTerm != nil {
		a.clearLongAndShortTermGoal(ctx, nil, false)
	}
	a.special = nil
}

func (a *Arbiter) onGoalReached(ctx context.Context, slot Slot) {
	switch slot {
	case LongTerm:
		goal := a.longTerm
		a.publishGoal(ctx, loggingGoals.GoalReached, slot, goal, 0, "")
		a.clearLongAndShortTermGoal(ctx, goal, true)
	case ShortTerm:
		goal := a.shortTerm
		a.publishGoal(ctx, loggingGoals.GoalReached, slot, goal, 0, "")
		a.clearLongAndShortTermGoal(ctx, goal, true)
	case Special:
		a.publishGoal(ctx, loggingGoals.GoalReached, slot, a.special, 0, "")
		a.special = nil
	}
}

// HandleGoalTouch reports whether touching the world entity reached a goal.
func (a *Arbiter) HandleGoalTouch(ctx context.Context, entityID int) bool {
	switch {
	case a.longTerm != nil && a.longTerm.IsBasedOnEntity(entityID):
		a.onGoalReached(ctx, LongTerm)
	case a.shortTerm != nil && a.shortTerm.IsBasedOnEntity(entityID):
		a.onGoalReached(ctx, ShortTerm)
	case a.special != nil && a.special.IsBasedOnEntity(entityID):
		a.onGoalReached(ctx, Special)
	default:
		return false
	}
	return true
}

func (a *Arbiter) withinProximity(goal *NavTarget) bool {
	r := a.cfg.ProximityRadius
	return goal.Origin().SquareDistanceTo(a.agent.Origin) < r*r
}

// TryReachGoalByProximity reaches goals that are not reached by touch once
// the agent is close enough.
func (a *Arbiter) TryReachGoalByProximity(ctx context.Context) bool {
	for _, slot := range []Slot{LongTerm, ShortTerm, Special} {
		goal := a.goal(slot)
		if goal == nil || goal.ShouldBeReachedAtTouch() || !a.withinProximity(goal) {
			continue
		}
		a.onGoalReached(ctx, slot)
		return true
	}
	return false
}

func (a *Arbiter) goal(slot Slot) *NavTarget {
	switch slot {
	case LongTerm:
		return a.longTerm
	case ShortTerm:
		return a.shortTerm
	case Special:
		return a.special
	}
	return nil
}

// ShouldWaitForGoal reports whether the agent stands at a goal that has not
// spawned yet.
func (a *Arbiter) ShouldWaitForGoal() bool {
	now := a.frame.Now
	if goal := a.longTerm; goal != nil && goal.ShouldBeReachedAtTouch() && a.withinProximity(goal) {
		if spawnAt, _ := goal.SpawnTime(now); spawnAt > now {
			return true
		}
	}
	if goal := a.special; goal != nil && a.withinProximity(goal) {
		if spawnAt, _ := goal.SpawnTime(now); spawnAt > now {
			return true
		}
	}
	return false
}

func (a *Arbiter) isCloseToGoal(goal *NavTarget, threshold float64) bool {
	if goal == nil {
		return false
	}
	r := goal.RadiusOrDefault(threshold) + closeToGoalSlack
	return goal.Origin().SquareDistanceTo(a.agent.Origin) <= r*r
}

// IsCloseToAnyGoal reports whether any goal is within reach radius plus
// some slack.
func (a *Arbiter) IsCloseToAnyGoal() bool {
	threshold := a.cfg.CloseToGoalRadius
	return a.isCloseToGoal(a.longTerm, threshold) ||
		a.isCloseToGoal(a.shortTerm, threshold) ||
		a.isCloseToGoal(a.special, threshold)
}

// ClosestGoalOrigin returns the origin of the nearest goal. ok is false
// when the agent has no goal.
func (a *Arbiter) ClosestGoalOrigin() (origin geom.Vec3, ok bool) {
	best := -1.0
	for _, goal := range []*NavTarget{a.longTerm, a.shortTerm, a.special} {
		if goal == nil {
			continue
		}
		d := goal.Origin().SquareDistanceTo(a.agent.Origin)
		if best < 0 || d < best {
			best, origin, ok = d, goal.Origin(), true
		}
	}
	return origin, ok
}

func (a *Arbiter) goalTargets(goal *NavTarget) []logging.EntityRef {
	if goal == nil {
		return nil
	}
	if e := goal.entity(); e != nil {
		return []logging.EntityRef{logging.NavRef(e.EntityID)}
	}
	return nil
}

type goalPublishFunc func(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload loggingGoals.GoalPayload, extra map[string]any)

func (a *Arbiter) publishGoal(ctx context.Context, fn goalPublishFunc, slot Slot, goal *NavTarget, weight float64, reason string) {
	if a.pub == nil || goal == nil {
		return
	}
	fn(ctx, a.pub, a.frame.Tick, logging.BotRef(a.id), a.goalTargets(goal), loggingGoals.GoalPayload{
		Slot:   slot.String(),
		Target: goal.Name(),
		Weight: weight,
		Reason: reason,
	}, nil)
}

func (a *Arbiter) publishGoalChange(ctx context.Context, slot Slot, goal *NavTarget, weight float64, prev *NavTarget, prevWeight float64) {
	if a.pub == nil {
		return
	}
	payload := loggingGoals.GoalPayload{
		Slot:   slot.String(),
		Target: goal.Name(),
		Weight: weight,
	}
	if prev != nil {
		payload.PrevTarget = prev.Name()
		payload.PrevWeight = prevWeight
	}
	loggingGoals.GoalSet(ctx, a.pub, a.frame.Tick, logging.BotRef(a.id), a.goalTargets(goal), payload, nil)
}
