package sim

import (
	"math"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/route"
)

// maxWaypointsPerTick bounds how many waypoints one movement step may pass.
const maxWaypointsPerTick = 4

// originHeight lifts a floor point to a standing player origin.
var originHeight = -aas.PlayerBoxStandMins[2]

// NextReach returns the reachability leaving fromArea that minimises the
// travel time to toArea. ok is false when toArea cannot be reached.
func NextReach(world *aas.World, oracle route.Oracle, fromArea, toArea int, flags aas.TravelFlags) (aas.Reachability, bool) {
	var (
		best     aas.Reachability
		bestTime = math.MaxInt
		found    bool
	)
	for _, reach := range world.ReachabilitiesOf(fromArea) {
		if aas.TravelFlagForType(reach.TravelType)&^flags != 0 {
			continue
		}
		t := reach.TravelTime
		if reach.AreaNum != toArea {
			rest := oracle.TravelTimeToGoalArea(reach.AreaNum, toArea, flags)
			if rest == 0 {
				continue
			}
			t += rest
		}
		if t < bestTime {
			best, bestTime, found = reach, t, true
		}
	}
	return best, found
}

func isInstantTravel(travelType int) bool {
	switch travelType {
	case aas.TravelTeleport, aas.TravelJumpPad, aas.TravelElevator:
		return true
	}
	return false
}

// ground puts point on the floor of areaNum at standing height.
func (e *Engine) ground(point geom.Vec3, areaNum int) geom.Vec3 {
	areas := e.level.World.Areas()
	if areaNum <= 0 || areaNum >= len(areas) {
		return point
	}
	return point.WithZ(areas[areaNum].Mins[2] + originHeight)
}

// advance moves b up to step units towards target, following
// reachabilities whenever target lies in another area.
func (e *Engine) advance(b *Bot, target geom.Vec3, targetArea int, step float64) {
	world := e.level.World
	for i := 0; i < maxWaypointsPerTick && step > 0; i++ {
		var (
			waypoint geom.Vec3
			next     *aas.Reachability
			final    bool
		)
		switch {
		case b.crossing != nil:
			waypoint = e.ground(b.crossing.End, b.crossing.AreaNum)
		case targetArea == 0 || targetArea == b.CurrAreaNum:
			waypoint, final = e.ground(target, targetArea), true
		default:
			reach, ok := NextReach(world, e.level.Routes, b.CurrAreaNum, targetArea, aas.TFLDefault)
			if !ok {
				return
			}
			next = &reach
			waypoint = e.ground(reach.Start, b.CurrAreaNum)
		}

		delta := waypoint.Sub(b.Origin)
		dist := delta.Length()
		if dist > step {
			dir := delta.Scale(1 / dist)
			b.Origin = b.Origin.Add(dir.Scale(step))
			b.Forward = dir
			b.dirty = true
			return
		}
		if dist > 0 {
			b.Forward = delta.Scale(1 / dist)
		}
		b.Origin = waypoint
		b.dirty = true
		step -= dist

		switch {
		case final:
			return
		case b.crossing != nil:
			b.CurrAreaNum = b.crossing.AreaNum
			b.crossing = nil
		case isInstantTravel(next.Type()):
			b.Origin = e.ground(next.End, next.AreaNum)
			b.CurrAreaNum = next.AreaNum
			return
		default:
			b.crossing = next
		}
	}
}
