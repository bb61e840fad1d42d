package worldstate

// IsSatisfiedBy reports whether the candidate state that meets every slot
// s cares about. Slots ignored by s always pass; a slot s cares about but
// that ignores fails. Lazy slots are compared without being resolved.
func (s *State) IsSatisfiedBy(that *State) bool {
	boolCare := ^s.boolIgnore & (1<<NumBoolSlots - 1)
	if boolCare&that.boolIgnore != 0 {
		return false
	}
	if s.boolValues&boolCare != that.boolValues&boolCare {
		return false
	}

	if !s.uints.satisfiedBy(&that.uints, int(NumUintSlots)) {
		return false
	}
	if !s.shorts.satisfiedBy(&that.shorts, int(NumShortSlots)) {
		return false
	}

	for i := range s.origins {
		goal, candidate := s.origins[i], that.origins[i]
		if metaIgnore(goal.meta) {
			continue
		}
		if metaIgnore(candidate.meta) {
			return false
		}
		if !originSatisfied(metaOp(goal.meta), metaEpsilon(goal.meta), goal.data, candidate.data) {
			return false
		}
	}

	for i := range s.lazy {
		if !lazySatisfiedBy(s.lazy[i], that.lazy[i]) {
			return false
		}
	}
	for i := range s.dual {
		if !dualSatisfiedBy(s.dual[i], that.dual[i]) {
			return false
		}
	}
	return true
}

func lazySatisfiedBy(goal, candidate originVar) bool {
	if metaIgnore(goal.meta) {
		return true
	}
	if metaIgnore(candidate.meta) {
		return false
	}
	state := metaState(goal.meta)
	if state != metaState(candidate.meta) {
		return false
	}
	if state != LazyPresent {
		return true
	}
	return originSatisfied(metaOp(goal.meta), metaEpsilon(goal.meta), goal.data, candidate.data)
}

func dualSatisfiedBy(goal, candidate dualOriginVar) bool {
	if metaIgnore(goal.meta) {
		return true
	}
	if metaIgnore(candidate.meta) {
		return false
	}
	state := metaState(goal.meta)
	if state != metaState(candidate.meta) {
		return false
	}
	if state != LazyPresent {
		return true
	}
	op, epsilon := metaOp(goal.meta), metaEpsilon(goal.meta)
	return originSatisfied(op, epsilon, goal.data, candidate.data) &&
		originSatisfied(op, epsilon, goal.data2, candidate.data2)
}

// Equal reports whether two states match slot for slot. Slots ignored on
// both sides are equal whatever they hold.
func (s *State) Equal(that *State) bool {
	if s.boolIgnore != that.boolIgnore {
		return false
	}
	boolCare := ^s.boolIgnore
	if s.boolValues&boolCare != that.boolValues&boolCare {
		return false
	}
	if !s.uints.equal(&that.uints, int(NumUintSlots)) {
		return false
	}
	if !s.shorts.equal(&that.shorts, int(NumShortSlots)) {
		return false
	}
	for i := range s.origins {
		if !originEqual(s.origins[i], that.origins[i]) {
			return false
		}
	}
	for i := range s.lazy {
		if !lazyEqual(s.lazy[i], that.lazy[i]) {
			return false
		}
	}
	for i := range s.dual {
		if !dualEqual(s.dual[i], that.dual[i]) {
			return false
		}
	}
	return true
}

func originEqual(a, b originVar) bool {
	if metaIgnore(a.meta) || metaIgnore(b.meta) {
		return metaIgnore(a.meta) == metaIgnore(b.meta)
	}
	return a.meta == b.meta && a.data == b.data
}

func lazyEqual(a, b originVar) bool {
	if metaIgnore(a.meta) || metaIgnore(b.meta) {
		return metaIgnore(a.meta) == metaIgnore(b.meta)
	}
	state := metaState(a.meta)
	if state != metaState(b.meta) {
		return false
	}
	if state != LazyPresent {
		return true
	}
	return a.meta == b.meta && a.data == b.data
}

func dualEqual(a, b dualOriginVar) bool {
	if metaIgnore(a.meta) || metaIgnore(b.meta) {
		return metaIgnore(a.meta) == metaIgnore(b.meta)
	}
	state := metaState(a.meta)
	if state != metaState(b.meta) {
		return false
	}
	if state != LazyPresent {
		return true
	}
	return a.meta == b.meta && a.data == b.data && a.data2 == b.data2
}

// Hash folds every non ignored slot. Equal states hash equally.
func (s *State) Hash() uint32 {
	h := uint32(37)
	h = s.uints.hash(h, int(NumUintSlots))
	h = s.shorts.hash(h, int(NumShortSlots))

	h = h*17 + s.boolValues&^s.boolIgnore

	for _, o := range s.origins {
		if metaIgnore(o.meta) {
			continue
		}
		h = h*17 + o.data.hash()
		h = h*17 + uint32(o.meta)
	}
	for _, o := range s.lazy {
		if metaIgnore(o.meta) {
			continue
		}
		h = h*17 + lazyHash(o.meta, o.data.hash())
	}
	for _, o := range s.dual {
		if metaIgnore(o.meta) {
			continue
		}
		h = h*17 + lazyHash(o.meta, o.data.hash()*31+o.data2.hash())
	}
	return h
}

func lazyHash(meta uint16, dataHash uint32) uint32 {
	state := metaState(meta)
	if state != LazyPresent {
		return uint32(state) + 1
	}
	return uint32(meta)*31 + dataHash
}
