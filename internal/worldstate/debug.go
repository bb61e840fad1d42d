package worldstate

import (
	"fmt"
	"strings"
)

const slotNameFormat = "%-32.32s: "

// String dumps every slot, one per line.
func (s *State) String() string {
	var b strings.Builder
	for _, line := range s.lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// DiffString lists the slots that differ between two states, each slot as
// an old line followed by a new line.
func (s *State) DiffString(that *State, oldTag, newTag string) string {
	var b strings.Builder
	mine, theirs := s.lines(), that.lines()
	for i := range mine {
		if mine[i] == theirs[i] {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", oldTag, mine[i])
		fmt.Fprintf(&b, "%s %s\n", newTag, theirs[i])
	}
	return b.String()
}

// lines renders slots without resolving lazy ones, in a fixed order so two
// dumps can be compared line by line.
func (s *State) lines() []string {
	n := int(NumUintSlots) + int(NumShortSlots) + int(NumBoolSlots) +
		int(NumOriginSlots) + int(NumLazySlots) + int(NumDualLazySlots)
	lines := make([]string, 0, n)
	ignored := func(name string) string {
		return fmt.Sprintf(slotNameFormat+"(ignored)", name)
	}

	for slot := UintSlot(0); slot < NumUintSlots; slot++ {
		v := s.Uint(slot)
		if v.Ignore() {
			lines = append(lines, ignored(slot.String()))
			continue
		}
		lines = append(lines, fmt.Sprintf(slotNameFormat+"%s %d", slot, v.SatisfyOp(), v.Value()))
	}
	for slot := ShortSlot(0); slot < NumShortSlots; slot++ {
		v := s.Short(slot)
		if v.Ignore() {
			lines = append(lines, ignored(slot.String()))
			continue
		}
		lines = append(lines, fmt.Sprintf(slotNameFormat+"%s %d", slot, v.SatisfyOp(), v.Value()))
	}
	for slot := BoolSlot(0); slot < NumBoolSlots; slot++ {
		v := s.Bool(slot)
		if v.Ignore() {
			lines = append(lines, ignored(slot.String()))
			continue
		}
		lines = append(lines, fmt.Sprintf(slotNameFormat+"%t", slot, v.Value()))
	}
	for slot := OriginSlot(0); slot < NumOriginSlots; slot++ {
		v := s.Origin(slot)
		if v.Ignore() {
			lines = append(lines, ignored(slot.String()))
			continue
		}
		o := v.Value()
		lines = append(lines, fmt.Sprintf(slotNameFormat+"%g %g %g", slot, o[0], o[1], o[2]))
	}
	for slot := LazySlot(0); slot < NumLazySlots; slot++ {
		v := s.Lazy(slot)
		switch {
		case v.Ignore():
			lines = append(lines, ignored(slot.String()))
		case v.State() != LazyPresent:
			lines = append(lines, fmt.Sprintf(slotNameFormat+"(%s)", slot, v.State()))
		default:
			o := v.ref().data.unpack()
			lines = append(lines, fmt.Sprintf(slotNameFormat+"%g %g %g", slot, o[0], o[1], o[2]))
		}
	}
	for slot := DualLazySlot(0); slot < NumDualLazySlots; slot++ {
		v := s.DualLazy(slot)
		switch {
		case v.Ignore():
			lines = append(lines, ignored(slot.String()))
		case v.State() != LazyPresent:
			lines = append(lines, fmt.Sprintf(slotNameFormat+"(%s)", slot, v.State()))
		default:
			o, o2 := v.ref().data.unpack(), v.ref().data2.unpack()
			lines = append(lines, fmt.Sprintf(slotNameFormat+"%g %g %g, %g %g %g", slot,
				o[0], o[1], o[2], o2[0], o2[1], o2[2]))
		}
	}
	return lines
}
