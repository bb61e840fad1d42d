// Package trace defines the collision trace contract used for visibility and
// surface probing. Implementations live with whoever owns world geometry.
package trace

import "arena-bots/server/internal/geom"

// Contents bits reported by a trace.
const (
	ContentsSolid      = 1
	ContentsLava       = 8
	ContentsSlime      = 16
	ContentsWater      = 32
	ContentsPlayerClip = 0x10000
	ContentsBody       = 0x2000000

	MaskSolid       = ContentsSolid
	MaskPlayerSolid = ContentsSolid | ContentsPlayerClip | ContentsBody
	MaskWater       = ContentsWater | ContentsLava | ContentsSlime
)

// MinWalkNormal is the minimal plane normal Z for a surface to count as floor.
const MinWalkNormal = 0.7

type Plane struct {
	Normal geom.Vec3
	Dist   float64
}

// Result describes the outcome of a single trace.
type Result struct {
	Fraction   float64
	EndPos     geom.Vec3
	Plane      Plane
	StartSolid bool
	AllSolid   bool
	Contents   int
}

// Clear reports whether the trace went all the way without hitting anything.
func (r Result) Clear() bool {
	return r.Fraction == 1 && !r.StartSolid && !r.AllSolid
}

// Tracer traces a box swept from start to end. Zero mins/maxs means a ray.
type Tracer interface {
	Trace(start, end, mins, maxs geom.Vec3, mask int) Result
}

// TracerFunc adapts a function into a Tracer.
type TracerFunc func(start, end, mins, maxs geom.Vec3, mask int) Result

func (f TracerFunc) Trace(start, end, mins, maxs geom.Vec3, mask int) Result {
	if f == nil {
		return Result{Fraction: 1, EndPos: end}
	}
	return f(start, end, mins, maxs, mask)
}

// Ray traces a point from start to end.
func Ray(t Tracer, start, end geom.Vec3, mask int) Result {
	return t.Trace(start, end, geom.Vec3{}, geom.Vec3{}, mask)
}

// Visible reports whether a ray between two points is unobstructed.
func Visible(t Tracer, from, to geom.Vec3) bool {
	if t == nil {
		return true
	}
	return Ray(t, from, to, MaskSolid).Fraction == 1
}

// IsWalkablePlane reports whether the plane can be stood on.
func IsWalkablePlane(p Plane) bool {
	return p.Normal[2] >= MinWalkNormal
}
