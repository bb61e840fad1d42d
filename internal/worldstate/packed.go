package worldstate

import "math"

// Origin slot metadata lives in one uint16:
//
//	bit 0      ignore
//	bits 1-5   satisfy op
//	bits 6-7   lazy state
//	bits 8-15  epsilon / 4
const (
	metaIgnoreBit    = 1 << 0
	metaOpShift      = 1
	metaOpMask       = 0x1F
	metaStateShift   = 6
	metaStateMask    = 0x3
	metaEpsilonShift = 8
	metaEpsilonMask  = 0xFF

	// Origins are stored on a grid of this many units per axis.
	originQuantum = 4

	MinOriginEpsilon = 4
	MaxOriginEpsilon = 1024
)

func metaIgnore(m uint16) bool { return m&metaIgnoreBit != 0 }

func withIgnore(m uint16, ignore bool) uint16 {
	if ignore {
		return m | metaIgnoreBit
	}
	return m &^ metaIgnoreBit
}

func metaOp(m uint16) Op { return Op(m >> metaOpShift & metaOpMask) }

func withOp(m uint16, op Op) uint16 {
	return m&^(metaOpMask<<metaOpShift) | uint16(op)<<metaOpShift
}

func metaState(m uint16) LazyState { return LazyState(m >> metaStateShift & metaStateMask) }

func withState(m uint16, state LazyState) uint16 {
	return m&^(metaStateMask<<metaStateShift) | uint16(state)<<metaStateShift
}

func metaEpsilon(m uint16) float64 {
	return float64(m>>metaEpsilonShift&metaEpsilonMask) * originQuantum
}

func withEpsilon(m uint16, epsilon float64) uint16 {
	packed := uint16(uint32(epsilon)/originQuantum) & metaEpsilonMask
	return m&^(metaEpsilonMask<<metaEpsilonShift) | packed<<metaEpsilonShift
}

// defaultOriginMeta is ignored, EQ within the smallest epsilon.
func defaultOriginMeta() uint16 {
	return withEpsilon(withOp(withIgnore(0, true), EQ), MinOriginEpsilon)
}

type packedOrigin [3]int16

func packOrigin(x, y, z float64) packedOrigin {
	return packedOrigin{
		int16(int(x) / originQuantum),
		int16(int(y) / originQuantum),
		int16(int(z) / originQuantum),
	}
}

func (p packedOrigin) unpack() [3]float64 {
	return [3]float64{
		float64(p[0]) * originQuantum,
		float64(p[1]) * originQuantum,
		float64(p[2]) * originQuantum,
	}
}

func (p packedOrigin) distanceTo(o packedOrigin) float64 {
	a, b := p.unpack(), o.unpack()
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (p packedOrigin) hash() uint32 {
	return uint32(uint16(p[0])) | uint32(uint16(p[1]))<<16 ^ uint32(uint16(p[2]))
}

// originSatisfied applies an origin op between a goal and a candidate.
func originSatisfied(op Op, epsilon float64, goal, candidate packedOrigin) bool {
	d := goal.distanceTo(candidate)
	switch op {
	case EQ:
		return d <= epsilon
	case NE:
		return d >= epsilon
	default:
		return false
	}
}

type numeric interface {
	~uint32 | ~int16
}

// numericBank keeps up to eight comparable slots of one type. Ops take four
// bits each.
type numericBank[T numeric] struct {
	values [8]T
	ignore uint8
	ops    uint32
}

func (b *numericBank[T]) ignored(i int) bool { return b.ignore&(1<<i) != 0 }

func (b *numericBank[T]) setIgnored(i int, ignore bool) {
	if ignore {
		b.ignore |= 1 << i
	} else {
		b.ignore &^= 1 << i
	}
}

func (b *numericBank[T]) op(i int) Op { return Op(b.ops >> (4 * i) & 0xF) }

func (b *numericBank[T]) setOp(i int, op Op) {
	shift := 4 * i
	b.ops = b.ops&^(0xF<<shift) | uint32(op)<<shift
}

// careMask has a bit set for every non ignored slot among the first n.
func (b *numericBank[T]) careMask(n int) uint8 {
	return ^b.ignore & uint8(1<<n-1)
}

func compare[T numeric](op Op, candidate, goal T) bool {
	switch op {
	case EQ:
		return candidate == goal
	case NE:
		return candidate != goal
	case GT:
		return candidate > goal
	case GE:
		return candidate >= goal
	case LS:
		return candidate < goal
	case LE:
		return candidate <= goal
	}
	return false
}

// satisfiedBy treats b as the goal and that as the candidate.
func (b *numericBank[T]) satisfiedBy(that *numericBank[T], n int) bool {
	care := b.careMask(n)
	if care&^that.careMask(n) != 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if care&(1<<i) == 0 {
			continue
		}
		if !compare(b.op(i), that.values[i], b.values[i]) {
			return false
		}
	}
	return true
}

func (b *numericBank[T]) equal(that *numericBank[T], n int) bool {
	care := b.careMask(n)
	if care != that.careMask(n) {
		return false
	}
	for i := 0; i < n; i++ {
		if care&(1<<i) == 0 {
			continue
		}
		if b.values[i] != that.values[i] || b.op(i) != that.op(i) {
			return false
		}
	}
	return true
}

func (b *numericBank[T]) hash(h uint32, n int) uint32 {
	for i := 0; i < n; i++ {
		if b.ignored(i) {
			continue
		}
		h = h*17 + uint32(b.values[i])
		h = h*17 + uint32(b.op(i)) + 1
	}
	return h
}
