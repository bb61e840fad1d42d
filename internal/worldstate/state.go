// Package worldstate implements the packed predicate record used to match
// goals against the current situation of a bot and to key planner caches.
//
// A State is a plain value: copying it copies every slot. Lazy origins are
// resolved through the Resolver the state was created with, once per
// instance, and the result travels with copies.
package worldstate

import (
	"errors"

	"arena-bots/server/internal/geom"
)

var (
	ErrIllegalOp    = errors.New("worldstate: illegal satisfy op for slot")
	ErrEpsilonRange = errors.New("worldstate: origin epsilon out of [4, 1024) range")
)

// LazyState is the resolution state of a lazy origin.
type LazyState uint8

const (
	LazyPending LazyState = iota
	LazyAbsent
	LazyPresent
)

func (s LazyState) String() string {
	switch s {
	case LazyPending:
		return "pending"
	case LazyAbsent:
		return "absent"
	case LazyPresent:
		return "present"
	}
	return "invalid"
}

// Resolver computes lazy origins on first access. The state being resolved
// is passed so a resolver may read its other slots.
type Resolver interface {
	ResolveOrigin(s *State, slot LazySlot) (geom.Vec3, bool)
	ResolveDualOrigin(s *State, slot DualLazySlot) (geom.Vec3, geom.Vec3, bool)
}

type originVar struct {
	data packedOrigin
	meta uint16
}

type dualOriginVar struct {
	data  packedOrigin
	data2 packedOrigin
	meta  uint16
}

type State struct {
	resolver Resolver

	boolValues uint32
	boolIgnore uint32

	uints  numericBank[uint32]
	shorts numericBank[int16]

	origins [NumOriginSlots]originVar
	lazy    [NumLazySlots]originVar
	dual    [NumDualLazySlots]dualOriginVar
}

// New returns a state whose static origin slots are ignored and whose lazy
// slots are pending and cared for. resolver may be nil, in which case lazy
// slots resolve absent.
func New(resolver Resolver) State {
	s := State{resolver: resolver}
	for i := range s.origins {
		s.origins[i].meta = defaultOriginMeta()
	}
	lazyMeta := withState(withIgnore(defaultOriginMeta(), false), LazyPending)
	for i := range s.lazy {
		s.lazy[i].meta = lazyMeta
	}
	for i := range s.dual {
		s.dual[i].meta = lazyMeta
	}
	return s
}

// SetResolver replaces the lazy origin resolver.
func (s *State) SetResolver(r Resolver) { s.resolver = r }

// SetIgnoreAll marks every slot ignored or cared for.
func (s *State) SetIgnoreAll(ignore bool) {
	if ignore {
		s.boolIgnore = 1<<NumBoolSlots - 1
		s.uints.ignore = 1<<NumUintSlots - 1
		s.shorts.ignore = 1<<NumShortSlots - 1
	} else {
		s.boolIgnore = 0
		s.uints.ignore = 0
		s.shorts.ignore = 0
	}
	for i := range s.origins {
		s.origins[i].meta = withIgnore(s.origins[i].meta, ignore)
	}
	for i := range s.lazy {
		s.lazy[i].meta = withIgnore(s.lazy[i].meta, ignore)
	}
	for i := range s.dual {
		s.dual[i].meta = withIgnore(s.dual[i].meta, ignore)
	}
}

// BoolVar is a handle on a boolean slot of a State.
type BoolVar struct {
	s    *State
	slot BoolSlot
}

func (s *State) Bool(slot BoolSlot) BoolVar { return BoolVar{s: s, slot: slot} }

func (v BoolVar) Value() bool { return v.s.boolValues&(1<<v.slot) != 0 }

func (v BoolVar) SetValue(value bool) BoolVar {
	if value {
		v.s.boolValues |= 1 << v.slot
	} else {
		v.s.boolValues &^= 1 << v.slot
	}
	return v
}

func (v BoolVar) Ignore() bool { return v.s.boolIgnore&(1<<v.slot) != 0 }

func (v BoolVar) SetIgnore(ignore bool) BoolVar {
	if ignore {
		v.s.boolIgnore |= 1 << v.slot
	} else {
		v.s.boolIgnore &^= 1 << v.slot
	}
	return v
}

// NumericVar is a handle on an unsigned or short slot.
type NumericVar[T numeric] struct {
	bank  *numericBank[T]
	index int
}

func (s *State) Uint(slot UintSlot) NumericVar[uint32] {
	return NumericVar[uint32]{bank: &s.uints, index: int(slot)}
}

func (s *State) Short(slot ShortSlot) NumericVar[int16] {
	return NumericVar[int16]{bank: &s.shorts, index: int(slot)}
}

func (v NumericVar[T]) Value() T { return v.bank.values[v.index] }

func (v NumericVar[T]) SetValue(value T) NumericVar[T] {
	v.bank.values[v.index] = value
	return v
}

func (v NumericVar[T]) Ignore() bool { return v.bank.ignored(v.index) }

func (v NumericVar[T]) SetIgnore(ignore bool) NumericVar[T] {
	v.bank.setIgnored(v.index, ignore)
	return v
}

func (v NumericVar[T]) SatisfyOp() Op { return v.bank.op(v.index) }

func (v NumericVar[T]) SetSatisfyOp(op Op) error {
	if !op.valid() {
		return ErrIllegalOp
	}
	v.bank.setOp(v.index, op)
	return nil
}

// IsSatisfiedBy reports whether a candidate value satisfies this goal slot.
func (v NumericVar[T]) IsSatisfiedBy(candidate T) bool {
	return compare(v.SatisfyOp(), candidate, v.Value())
}

func checkOriginOp(op Op, epsilon float64) error {
	if op != EQ && op != NE {
		return ErrIllegalOp
	}
	if epsilon < MinOriginEpsilon || epsilon >= MaxOriginEpsilon {
		return ErrEpsilonRange
	}
	return nil
}

// OriginVar is a handle on a static origin slot.
type OriginVar struct {
	s    *State
	slot OriginSlot
}

func (s *State) Origin(slot OriginSlot) OriginVar { return OriginVar{s: s, slot: slot} }

func (v OriginVar) ref() *originVar { return &v.s.origins[v.slot] }

// Value returns the stored origin, snapped to the 4 unit grid.
func (v OriginVar) Value() geom.Vec3 { return geom.Vec3(v.ref().data.unpack()) }

func (v OriginVar) SetValue(origin geom.Vec3) OriginVar {
	v.ref().data = packOrigin(origin[0], origin[1], origin[2])
	return v
}

func (v OriginVar) Ignore() bool { return metaIgnore(v.ref().meta) }

func (v OriginVar) SetIgnore(ignore bool) OriginVar {
	v.ref().meta = withIgnore(v.ref().meta, ignore)
	return v
}

func (v OriginVar) SatisfyOp() Op           { return metaOp(v.ref().meta) }
func (v OriginVar) SatisfyEpsilon() float64 { return metaEpsilon(v.ref().meta) }
func (v OriginVar) DistanceTo(o OriginVar) float64 {
	return v.ref().data.distanceTo(o.ref().data)
}

// SetSatisfyOp accepts EQ or NE with an epsilon in [4, 1024).
func (v OriginVar) SetSatisfyOp(op Op, epsilon float64) error {
	if err := checkOriginOp(op, epsilon); err != nil {
		return err
	}
	v.ref().meta = withEpsilon(withOp(v.ref().meta, op), epsilon)
	return nil
}

// LazyVar is a handle on a lazily resolved origin slot.
type LazyVar struct {
	s    *State
	slot LazySlot
}

func (s *State) Lazy(slot LazySlot) LazyVar { return LazyVar{s: s, slot: slot} }

func (v LazyVar) ref() *originVar { return &v.s.lazy[v.slot] }

// State returns the resolution state without resolving.
func (v LazyVar) State() LazyState { return metaState(v.ref().meta) }

// IsPresent resolves a pending slot and reports whether it holds an origin.
func (v LazyVar) IsPresent() bool {
	switch v.State() {
	case LazyPresent:
		return true
	case LazyAbsent:
		return false
	}
	var (
		origin geom.Vec3
		ok     bool
	)
	if v.s.resolver != nil {
		origin, ok = v.s.resolver.ResolveOrigin(v.s, v.slot)
	}
	if !ok {
		v.ref().meta = withState(v.ref().meta, LazyAbsent)
		return false
	}
	v.ref().data = packOrigin(origin[0], origin[1], origin[2])
	v.ref().meta = withState(v.ref().meta, LazyPresent)
	return true
}

// Value resolves the slot if needed and returns the origin when present.
func (v LazyVar) Value() (geom.Vec3, bool) {
	if !v.IsPresent() {
		return geom.Vec3{}, false
	}
	return geom.Vec3(v.ref().data.unpack()), true
}

// Reset makes the slot pending and cared for again.
func (v LazyVar) Reset() {
	v.ref().meta = withIgnore(withState(v.ref().meta, LazyPending), false)
}

func (v LazyVar) Ignore() bool { return metaIgnore(v.ref().meta) }

func (v LazyVar) SetIgnore(ignore bool) LazyVar {
	v.ref().meta = withIgnore(v.ref().meta, ignore)
	return v
}

func (v LazyVar) IgnoreOrAbsent() bool { return v.Ignore() || !v.IsPresent() }

func (v LazyVar) SatisfyOp() Op           { return metaOp(v.ref().meta) }
func (v LazyVar) SatisfyEpsilon() float64 { return metaEpsilon(v.ref().meta) }

func (v LazyVar) SetSatisfyOp(op Op, epsilon float64) error {
	if err := checkOriginOp(op, epsilon); err != nil {
		return err
	}
	v.ref().meta = withEpsilon(withOp(v.ref().meta, op), epsilon)
	return nil
}

// DistanceTo returns the distance to a static origin when this slot is
// present.
func (v LazyVar) DistanceTo(o OriginVar) (float64, bool) {
	if !v.IsPresent() {
		return 0, false
	}
	return v.ref().data.distanceTo(o.ref().data), true
}

// DualLazyVar is a handle on a pair of lazily resolved origins, such as the
// entry and exit of a teleporter.
type DualLazyVar struct {
	s    *State
	slot DualLazySlot
}

func (s *State) DualLazy(slot DualLazySlot) DualLazyVar { return DualLazyVar{s: s, slot: slot} }

func (v DualLazyVar) ref() *dualOriginVar { return &v.s.dual[v.slot] }

func (v DualLazyVar) State() LazyState { return metaState(v.ref().meta) }

func (v DualLazyVar) IsPresent() bool {
	switch v.State() {
	case LazyPresent:
		return true
	case LazyAbsent:
		return false
	}
	var (
		first, second geom.Vec3
		ok            bool
	)
	if v.s.resolver != nil {
		first, second, ok = v.s.resolver.ResolveDualOrigin(v.s, v.slot)
	}
	if !ok {
		v.ref().meta = withState(v.ref().meta, LazyAbsent)
		return false
	}
	v.ref().data = packOrigin(first[0], first[1], first[2])
	v.ref().data2 = packOrigin(second[0], second[1], second[2])
	v.ref().meta = withState(v.ref().meta, LazyPresent)
	return true
}

// Values returns both origins when present.
func (v DualLazyVar) Values() (geom.Vec3, geom.Vec3, bool) {
	if !v.IsPresent() {
		return geom.Vec3{}, geom.Vec3{}, false
	}
	return geom.Vec3(v.ref().data.unpack()), geom.Vec3(v.ref().data2.unpack()), true
}

func (v DualLazyVar) Reset() {
	v.ref().meta = withIgnore(withState(v.ref().meta, LazyPending), false)
}

func (v DualLazyVar) Ignore() bool { return metaIgnore(v.ref().meta) }

func (v DualLazyVar) SetIgnore(ignore bool) DualLazyVar {
	v.ref().meta = withIgnore(v.ref().meta, ignore)
	return v
}

func (v DualLazyVar) IgnoreOrAbsent() bool { return v.Ignore() || !v.IsPresent() }

func (v DualLazyVar) SatisfyOp() Op           { return metaOp(v.ref().meta) }
func (v DualLazyVar) SatisfyEpsilon() float64 { return metaEpsilon(v.ref().meta) }

func (v DualLazyVar) SetSatisfyOp(op Op, epsilon float64) error {
	if err := checkOriginOp(op, epsilon); err != nil {
		return err
	}
	v.ref().meta = withEpsilon(withOp(v.ref().meta, op), epsilon)
	return nil
}
