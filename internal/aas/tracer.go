package aas

import (
	"math"

	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/trace"
)

// AreaTracer is a trace.Tracer that treats everything outside the areas of a
// world as solid. It stands in for real collision geometry when only the
// area graph is available.
type AreaTracer struct {
	world *World
	step  float64
}

// NewAreaTracer samples segments every step units (4 when step <= 0).
func NewAreaTracer(world *World, step float64) *AreaTracer {
	if step <= 0 {
		step = 4
	}
	return &AreaTracer{world: world, step: step}
}

const traceInset = 1.0 / 32

func (t *AreaTracer) corners(mins, maxs geom.Vec3) []geom.Vec3 {
	if mins == (geom.Vec3{}) && maxs == (geom.Vec3{}) {
		return []geom.Vec3{{}}
	}
	lo := mins.Add(geom.Vec3{traceInset, traceInset, traceInset})
	hi := maxs.Sub(geom.Vec3{traceInset, traceInset, traceInset})
	bounds := [2]geom.Vec3{lo, hi}
	out := make([]geom.Vec3, 0, 8)
	for i := 0; i < 8; i++ {
		out = append(out, geom.Vec3{bounds[i&1][0], bounds[(i>>1)&1][1], bounds[(i>>2)&1][2]})
	}
	return out
}

// blockedCorner returns the index of the first corner of the box at p lying
// in solid space, or -1.
func (t *AreaTracer) blockedCorner(p geom.Vec3, corners []geom.Vec3) int {
	for i, c := range corners {
		if t.world.PointAreaNum(p.Add(c)) == 0 {
			return i
		}
	}
	return -1
}

func (t *AreaTracer) Trace(start, end, mins, maxs geom.Vec3, mask int) trace.Result {
	if !t.world.IsLoaded() {
		return trace.Result{Fraction: 1, EndPos: end}
	}
	corners := t.corners(mins, maxs)
	if t.blockedCorner(start, corners) >= 0 {
		res := trace.Result{StartSolid: true, EndPos: start, Contents: trace.ContentsSolid}
		if t.blockedCorner(end, corners) >= 0 {
			res.AllSolid = true
		}
		return res
	}

	length := start.DistanceTo(end)
	steps := int(math.Ceil(length / t.step))
	if steps < 1 {
		steps = 1
	}
	lastFree := 0.0
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		if t.blockedCorner(start.Lerp(end, frac), corners) < 0 {
			lastFree = frac
			continue
		}
		lo, hi := lastFree, frac
		for iter := 0; iter < 10; iter++ {
			mid := (lo + hi) / 2
			if t.blockedCorner(start.Lerp(end, mid), corners) < 0 {
				lo = mid
			} else {
				hi = mid
			}
		}
		freePos := start.Lerp(end, lo)
		blockedPos := start.Lerp(end, hi)
		corner := corners[t.blockedCorner(blockedPos, corners)]
		return trace.Result{
			Fraction: lo,
			EndPos:   freePos,
			Plane:    t.crossedPlane(freePos.Add(corner), blockedPos.Add(corner)),
			Contents: trace.ContentsSolid,
		}
	}
	return trace.Result{Fraction: 1, EndPos: end}
}

// crossedPlane finds the face of the area containing from that the segment
// leaves through, oriented to face back into the area.
func (t *AreaTracer) crossedPlane(from, to geom.Vec3) trace.Plane {
	w := t.world
	areaNum := w.PointAreaNum(from)
	dir := to.Sub(from).Normalized()
	fallback := trace.Plane{Normal: dir.Scale(-1), Dist: dir.Scale(-1).Dot(from)}
	if areaNum == 0 {
		return fallback
	}
	for _, idx := range w.AreaFaces(areaNum) {
		faceNum := idx
		if faceNum < 0 {
			faceNum = -faceNum
		}
		if faceNum >= len(w.faces) {
			continue
		}
		plane := w.planes[w.faces[faceNum].PlaneNum]
		normal, dist := plane.Normal, plane.Dist
		// The area lies on the front side of a positively indexed face.
		if idx < 0 {
			normal, dist = normal.Scale(-1), -dist
		}
		if from.Dot(normal)-dist >= 0 && to.Dot(normal)-dist < 0 {
			return trace.Plane{Normal: normal, Dist: dist}
		}
	}
	return fallback
}

var _ trace.Tracer = (*AreaTracer)(nil)
