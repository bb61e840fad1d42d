// Package geom holds the small vector toolkit shared by the area world and
// the planning components.
package geom

import "math"

// Vec3 is a point or direction in world units.
type Vec3 [3]float64

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (v Vec3) X() float64 { return v[0] }
func (v Vec3) Y() float64 { return v[1] }
func (v Vec3) Z() float64 { return v[2] }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

func (v Vec3) SquaredLength() float64 { return v.Dot(v) }
func (v Vec3) Length() float64        { return math.Sqrt(v.Dot(v)) }

// Normalized returns the unit vector in the direction of v, or v itself when
// its length is zero.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vec3) DistanceTo(o Vec3) float64 { return o.Sub(v).Length() }

func (v Vec3) SquareDistanceTo(o Vec3) float64 { return o.Sub(v).SquaredLength() }

// SquareDistance2DTo ignores the vertical axis.
func (v Vec3) SquareDistance2DTo(o Vec3) float64 {
	dx, dy := o[0]-v[0], o[1]-v[1]
	return dx*dx + dy*dy
}

// Lerp returns v + (o-v)*frac.
func (v Vec3) Lerp(o Vec3, frac float64) Vec3 {
	return Vec3{
		v[0] + (o[0]-v[0])*frac,
		v[1] + (o[1]-v[1])*frac,
		v[2] + (o[2]-v[2])*frac,
	}
}

func (v Vec3) WithZ(z float64) Vec3 { return Vec3{v[0], v[1], z} }

// Min returns the component-wise minimum of v and o.
func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{math.Min(v[0], o[0]), math.Min(v[1], o[1]), math.Min(v[2], o[2])}
}

// Max returns the component-wise maximum of v and o.
func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{math.Max(v[0], o[0]), math.Max(v[1], o[1]), math.Max(v[2], o[2])}
}

// Snap rounds every axis to the nearest multiple of step.
func (v Vec3) Snap(step float64) Vec3 {
	if step <= 0 {
		return v
	}
	return Vec3{
		math.Round(v[0]/step) * step,
		math.Round(v[1]/step) * step,
		math.Round(v[2]/step) * step,
	}
}

// BoundsContain reports whether p lies within [mins, maxs] on every axis.
func BoundsContain(mins, maxs, p Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < mins[i] || p[i] > maxs[i] {
			return false
		}
	}
	return true
}

// BoundsIntersect reports whether two boxes overlap, touching included.
func BoundsIntersect(mins1, maxs1, mins2, maxs2 Vec3) bool {
	for i := 0; i < 3; i++ {
		if mins1[i] > maxs2[i] || maxs1[i] < mins2[i] {
			return false
		}
	}
	return true
}

// BoundedFraction maps value onto [0, 1] relative to bound.
func BoundedFraction(value, bound float64) float64 {
	if bound <= 0 {
		return 1
	}
	return Clamp01(value / bound)
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ApplyFactor blends a [0,1] factor into value with the given influence.
// An influence of zero leaves value untouched.
func ApplyFactor(value, factor, influence float64) float64 {
	factor = Clamp01(factor)
	influence = Clamp01(influence)
	return value*(1-influence) + value*factor*influence
}
