package aas

import (
	"context"
	"math"

	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/trace"
	"arena-bots/server/logging/navigation"
)

// Player box dimensions relative to the origin.
var (
	PlayerBoxStandMins = geom.Vec3{-16, -16, -24}
	PlayerBoxStandMaxs = geom.Vec3{16, 16, 40}
)

const (
	// PlayerViewHeight is the eye height above the origin.
	PlayerViewHeight = 30
	junkExtent       = 24.0
	slideEpsilon     = 0.05
	shortLedgeFall   = 32.0
)

var rampNormalThreshold = math.Cos(2 * math.Pi / 180)

// AreaDataSummary counts what ComputeExtraAreaData derived.
type AreaDataSummary struct {
	Ledges         int
	Walls          int
	Junk           int
	Ramps          int
	NoFall         int
	SkipCollision  int
	FloorClusters  int
	StairsClusters int
}

// ComputeExtraAreaData derives behavioural area flags and the floor and
// stairs clusters. It runs once after loading; tracer may be nil, in which
// case the trace based flags are skipped.
func (w *World) ComputeExtraAreaData(tracer trace.Tracer, cfg ClusterConfig) AreaDataSummary {
	if !w.IsLoaded() {
		return AreaDataSummary{}
	}
	cfg = cfg.Normalized()
	numAreas := w.NumAreas()
	for areaNum := 1; areaNum < numAreas; areaNum++ {
		w.trySetLedgeFlags(areaNum)
		w.trySetWallFlags(areaNum)
		w.trySetJunkFlags(areaNum)
		if tracer != nil {
			w.trySetRampFlags(areaNum, tracer)
		}
	}
	if tracer != nil {
		w.trySetSkipCollisionFlags(tracer)
	}
	w.computeClusters(cfg)
	for areaNum := 1; areaNum < numAreas; areaNum++ {
		w.trySetNoFallFlags(areaNum)
	}

	summary := AreaDataSummary{
		FloorClusters:  len(w.floorClusters) - 1,
		StairsClusters: len(w.stairsClusters) - 1,
	}
	for areaNum := 1; areaNum < numAreas; areaNum++ {
		flags := w.settings[areaNum].AreaFlags
		count := func(flag int, n *int) {
			if flags&flag != 0 {
				*n++
			}
		}
		count(AreaLedge, &summary.Ledges)
		count(AreaWall, &summary.Walls)
		count(AreaJunk, &summary.Junk)
		count(AreaInclinedFloor, &summary.Ramps)
		count(AreaNoFall, &summary.NoFall)
		count(AreaSkipCollision16, &summary.SkipCollision)
	}
	navigation.AreaDataComputed(context.Background(), w.publisher, 0, navigation.AreaDataPayload{
		Ledges:         summary.Ledges,
		Walls:          summary.Walls,
		Junk:           summary.Junk,
		Ramps:          summary.Ramps,
		NoFall:         summary.NoFall,
		FloorClusters:  summary.FloorClusters,
		StairsClusters: summary.StairsClusters,
	}, nil)
	return summary
}

func (w *World) trySetLedgeFlags(areaNum int) {
	for _, r := range w.ReachabilitiesOf(areaNum) {
		if r.Type() == TravelWalkOffLedge {
			w.settings[areaNum].AreaFlags |= AreaLedge
			return
		}
	}
}

func (w *World) trySetWallFlags(areaNum int) {
	for _, idx := range w.AreaFaces(areaNum) {
		var face *Face
		var behind int
		if idx >= 0 {
			face = &w.faces[idx]
			behind = face.BackArea
		} else {
			face = &w.faces[-idx]
			behind = face.FrontArea
		}
		if behind != 0 {
			continue
		}
		// Bounding floors and ceilings are not walls.
		if math.Abs(w.planes[face.PlaneNum].Normal[2]) < 0.3 {
			w.settings[areaNum].AreaFlags |= AreaWall
			return
		}
	}
}

func (w *World) trySetJunkFlags(areaNum int) {
	area := &w.areas[areaNum]
	small := 0
	for i := 0; i < 2; i++ {
		if area.Maxs[i]-area.Mins[i] < junkExtent {
			small++
		}
	}
	if small > 1 {
		w.settings[areaNum].AreaFlags |= AreaJunk
	}
}

// trySetRampFlags probes the floor on a 5x5 grid since an area may mix flat
// and inclined parts.
func (w *World) trySetRampFlags(areaNum int, tracer trace.Tracer) {
	flags := &w.settings[areaNum].AreaFlags
	if *flags&AreaGrounded == 0 || *flags&AreaJunk != 0 {
		return
	}
	area := &w.areas[areaNum]
	stepX := 0.2 * (area.Maxs[0] - area.Mins[0])
	stepY := 0.2 * (area.Maxs[1] - area.Mins[1])
	for i := -2; i <= 2; i++ {
		for j := -2; j <= 2; j++ {
			x := area.Center[0] + stepX*float64(i)
			y := area.Center[1] + stepY*float64(j)
			start := geom.Vec3{x, y, area.Maxs[2] + 16}
			end := geom.Vec3{x, y, area.Mins[2] - 16}
			tr := trace.Ray(tracer, start, end, trace.MaskPlayerSolid)
			if tr.Fraction == 1 || tr.StartSolid {
				continue
			}
			if !trace.IsWalkablePlane(tr.Plane) || tr.Plane.Normal[2] > rampNormalThreshold {
				continue
			}
			if tr.EndPos[2] < area.Mins[2] || tr.EndPos[2] > area.Maxs[2] {
				continue
			}
			*flags |= AreaInclinedFloor
			if tr.Plane.Normal[2] <= 1-slideEpsilon {
				*flags |= AreaSlidableRamp
				return
			}
		}
	}
}

func (w *World) trySetNoFallFlags(areaNum int) {
	s := &w.settings[areaNum]
	if s.AreaFlags&(AreaJunk|AreaLiquid|AreaDisabled) != 0 {
		return
	}
	const undesired = ContentsLava | ContentsSlime | ContentsDoNotEnter |
		ContentsJumpPad | ContentsTeleporter | ContentsMover
	if s.Contents&undesired != 0 {
		return
	}
	for _, r := range w.ReachabilitiesOf(areaNum) {
		if r.AreaNum <= 0 || r.AreaNum >= len(w.settings) {
			return
		}
		target := w.settings[r.AreaNum]
		if target.AreaFlags&(AreaLiquid|AreaDisabled) != 0 || target.Contents&undesired != 0 {
			return
		}
		switch r.Type() {
		case TravelJumpPad, TravelTeleport, TravelElevator:
			return
		case TravelWalkOffLedge:
			if r.Start.SquareDistanceTo(r.End) > shortLedgeFall*shortLedgeFall {
				return
			}
		}
	}
	s.AreaFlags |= AreaNoFall
}

// trySetSkipCollisionFlags marks areas where a widened player box placed at
// the center touches nothing. A wider clearance implies the narrower ones.
func (w *World) trySetSkipCollisionFlags(tracer trace.Tracer) {
	extents := [3]float64{32, 16, 0}
	flagsToSet := [3]int{
		AreaSkipCollision48 | AreaSkipCollision32 | AreaSkipCollision16,
		AreaSkipCollision32 | AreaSkipCollision16,
		AreaSkipCollision16,
	}
	for areaNum := 1; areaNum < w.NumAreas(); areaNum++ {
		flags := &w.settings[areaNum].AreaFlags
		if *flags&(AreaWall|AreaInclinedFloor) != 0 {
			continue
		}
		area := &w.areas[areaNum]
		for j, extent := range extents {
			mins := area.Mins.Add(geom.Vec3{-extent, -extent, 0}).Sub(area.Center)
			maxs := area.Maxs.Add(geom.Vec3{extent, extent, PlayerBoxStandMaxs[2]}).Sub(area.Center)
			for k := 0; k < 2; k++ {
				mins[k] = math.Min(mins[k], PlayerBoxStandMins[k]-extent)
				maxs[k] = math.Max(maxs[k], PlayerBoxStandMaxs[k]+extent)
			}
			mins[2] = math.Min(mins[2], PlayerBoxStandMins[2])
			maxs[2] = math.Max(maxs[2], PlayerBoxStandMaxs[2]*2)
			if *flags&AreaGrounded != 0 {
				mins[2]++
			}
			tr := tracer.Trace(area.Center, area.Center, mins, maxs, trace.MaskPlayerSolid)
			if tr.Fraction == 1 && !tr.StartSolid {
				*flags |= flagsToSet[j]
				break
			}
		}
	}
}
