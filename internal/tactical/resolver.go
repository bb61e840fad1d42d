package tactical

import (
	"math"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/route"
	"arena-bots/server/internal/worldstate"
)

const (
	resolverMaxSpots        = 16
	coverRayThickness       = 32.0
	runAwaySearchRadius     = 1024.0
	maxRunAwayAreas         = 256
	runAwayMaxTravelCentis  = 300
	sniperRangeSearchRadius = 1536.0
)

// StateResolver fills the lazy origins of a worldstate.State with spots
// found by a Detector. Range spots keep the enemy in sight at the distance
// band the slot is named after, run-away slots pick the cheapest matching
// reachability leading away from the enemy.
type StateResolver struct {
	detector *Detector
	params   CommonParams
}

// NewStateResolver returns a resolver searching with params. The origin
// fields of params are overwritten per query.
func NewStateResolver(detector *Detector, params CommonParams) *StateResolver {
	return &StateResolver{detector: detector, params: params}
}

func (r *StateResolver) ResolveOrigin(s *worldstate.State, slot worldstate.LazySlot) (geom.Vec3, bool) {
	if r == nil || r.detector == nil {
		return geom.Vec3{}, false
	}
	bot, enemy := s.Origin(worldstate.BotOrigin), s.Origin(worldstate.EnemyOrigin)
	if bot.Ignore() || enemy.Ignore() {
		return geom.Vec3{}, false
	}
	params := r.params
	params.Origin = bot.Value()
	params.OriginAreaNum = 0

	if slot == worldstate.CoverSpot {
		spots := r.detector.FindCoverSpots(CoverProblem{
			CommonParams:        params,
			AttackerOrigin:      enemy.Value(),
			HarmfulRayThickness: coverRayThickness,
		}, 1)
		if len(spots) == 0 {
			return geom.Vec3{}, false
		}
		return spots[0], true
	}

	if slot == worldstate.SniperRangeTacticalSpot && params.SearchRadius < sniperRangeSearchRadius {
		params.SearchRadius = sniperRangeSearchRadius
	}
	spots := r.detector.FindPositionalAdvantageSpots(AdvantageProblem{
		CommonParams:      params,
		KeepVisibleOrigin: enemy.Value(),
	}, resolverMaxSpots)
	lo, hi := rangeBand(slot)
	for _, spot := range spots {
		if d := spot.DistanceTo(enemy.Value()); d > lo && d <= hi {
			return spot, true
		}
	}
	return geom.Vec3{}, false
}

// rangeBand returns the enemy distance band (lo, hi] of a range spot slot.
func rangeBand(slot worldstate.LazySlot) (float64, float64) {
	switch slot {
	case worldstate.SniperRangeTacticalSpot:
		return worldstate.FarRangeMax, math.Inf(1)
	case worldstate.FarRangeTacticalSpot:
		return worldstate.MiddleRangeMax, worldstate.FarRangeMax
	case worldstate.MiddleRangeTacticalSpot:
		return worldstate.CloseRangeMax, worldstate.MiddleRangeMax
	default:
		return -1, worldstate.CloseRangeMax
	}
}

func runAwayTravelType(slot worldstate.DualLazySlot) int {
	switch slot {
	case worldstate.RunAwayTeleport:
		return aas.TravelTeleport
	case worldstate.RunAwayJumppad:
		return aas.TravelJumpPad
	default:
		return aas.TravelElevator
	}
}

func (r *StateResolver) ResolveDualOrigin(s *worldstate.State, slot worldstate.DualLazySlot) (geom.Vec3, geom.Vec3, bool) {
	if r == nil || r.detector == nil || r.detector.linker == nil {
		return geom.Vec3{}, geom.Vec3{}, false
	}
	bot := s.Origin(worldstate.BotOrigin)
	if bot.Ignore() {
		return geom.Vec3{}, geom.Vec3{}, false
	}
	d := r.detector
	origin := bot.Value()
	fromArea := d.world.FindAreaNum(origin)
	if fromArea == 0 {
		return geom.Vec3{}, geom.Vec3{}, false
	}
	enemy := s.Origin(worldstate.EnemyOrigin)
	travelType := runAwayTravelType(slot)
	flags := r.params.Normalized().TravelFlags

	rad := geom.V(runAwaySearchRadius, runAwaySearchRadius, runAwaySearchRadius)
	areas := d.linker.BBoxAreas(origin.Sub(rad), origin.Add(rad), maxRunAwayAreas)

	var (
		bestStart, bestEnd geom.Vec3
		bestTime           = math.MaxInt
		found              bool
	)
	for _, areaNum := range areas {
		for _, reach := range d.world.ReachabilitiesOf(areaNum) {
			if reach.Type() != travelType {
				continue
			}
			// The exit must lead further from a known enemy than the entry.
			if !enemy.Ignore() && reach.End.SquareDistanceTo(enemy.Value()) <= reach.Start.SquareDistanceTo(enemy.Value()) {
				continue
			}
			t := 1
			if areaNum != fromArea {
				t = travelTime(d.oracle, fromArea, areaNum, flags)
				if t == 0 || t > runAwayMaxTravelCentis {
					continue
				}
			}
			if t < bestTime {
				bestStart, bestEnd, bestTime, found = reach.Start, reach.End, t, true
			}
		}
	}
	return bestStart, bestEnd, found
}

func travelTime(oracle route.Oracle, from, to int, flags aas.TravelFlags) int {
	if oracle == nil {
		return 0
	}
	return oracle.TravelTimeToGoalArea(from, to, flags)
}

var _ worldstate.Resolver = (*StateResolver)(nil)
