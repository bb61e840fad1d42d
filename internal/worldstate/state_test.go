package worldstate

import (
	"errors"
	"math"
	"strings"
	"testing"

	"arena-bots/server/internal/geom"
)

type countingResolver struct {
	calls  int
	origin geom.Vec3
	ok     bool
}

func (r *countingResolver) ResolveOrigin(*State, LazySlot) (geom.Vec3, bool) {
	r.calls++
	return r.origin, r.ok
}

func (r *countingResolver) ResolveDualOrigin(*State, DualLazySlot) (geom.Vec3, geom.Vec3, bool) {
	r.calls++
	return r.origin, r.origin.Add(geom.V(64, 0, 0)), r.ok
}

func sampleState() State {
	s := New(nil)
	s.Short(Health).SetValue(100)
	s.Short(Armor).SetValue(50)
	s.Bool(HasQuad).SetValue(true)
	s.Origin(BotOrigin).SetIgnore(false).SetValue(geom.V(128, 64, 32))
	return s
}

// goalCaring returns a goal that ignores everything; callers unignore what
// they test.
func goalCaring() State {
	s := New(nil)
	s.SetIgnoreAll(true)
	return s
}

func TestCopiesAreEqualAndHashEqually(t *testing.T) {
	a := sampleState()
	b := a
	if !a.Equal(&b) {
		t.Fatalf("expected copy to be equal")
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("expected equal hashes, got %d and %d", a.Hash(), b.Hash())
	}

	b.Short(Health).SetValue(99)
	if a.Equal(&b) {
		t.Fatalf("expected states with different health to differ")
	}
}

func TestIgnoredSlotsDoNotAffectEquality(t *testing.T) {
	a := sampleState()
	b := sampleState()
	a.Short(Armor).SetValue(10).SetIgnore(true)
	b.Short(Armor).SetValue(200).SetIgnore(true)
	a.Origin(EnemyOrigin).SetValue(geom.V(1000, 0, 0))
	b.Origin(EnemyOrigin).SetValue(geom.V(-1000, 0, 0))
	a.Bool(CanHitEnemy).SetIgnore(true).SetValue(true)
	b.Bool(CanHitEnemy).SetIgnore(true)

	if !a.Equal(&b) {
		t.Fatalf("expected states to be equal when differing slots are ignored")
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("expected equal hashes, got %d and %d", a.Hash(), b.Hash())
	}

	b.Short(Armor).SetIgnore(false)
	if a.Equal(&b) {
		t.Fatalf("expected states to differ when only one side ignores a slot")
	}
}

func TestAllIgnoredGoalIsSatisfiedByAnything(t *testing.T) {
	goal := goalCaring()
	candidates := []State{New(nil), sampleState()}
	for i := range candidates {
		if !goal.IsSatisfiedBy(&candidates[i]) {
			t.Fatalf("expected all ignored goal to be satisfied by candidate %d", i)
		}
	}
}

func TestNumericSatisfaction(t *testing.T) {
	goal := goalCaring()
	goal.Short(Health).SetIgnore(false).SetValue(50)
	if err := goal.Short(Health).SetSatisfyOp(GE); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		health  int16
		ignore  bool
		satisfy bool
	}{
		{name: "above", health: 80, satisfy: true},
		{name: "equal", health: 50, satisfy: true},
		{name: "below", health: 30, satisfy: false},
		{name: "ignored by candidate", health: 80, ignore: true, satisfy: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			candidate := New(nil)
			candidate.Short(Health).SetValue(tc.health).SetIgnore(tc.ignore)
			if got := goal.IsSatisfiedBy(&candidate); got != tc.satisfy {
				t.Fatalf("expected satisfied=%v, got %v", tc.satisfy, got)
			}
		})
	}

	if !goal.Short(Health).IsSatisfiedBy(51) || goal.Short(Health).IsSatisfiedBy(49) {
		t.Fatalf("expected slot level check to compare candidate GE goal")
	}
}

func TestBoolSatisfaction(t *testing.T) {
	goal := goalCaring()
	goal.Bool(HasPositionalAdvantage).SetIgnore(false).SetValue(true)

	candidate := New(nil)
	if goal.IsSatisfiedBy(&candidate) {
		t.Fatalf("expected false candidate not to satisfy true goal")
	}
	candidate.Bool(HasPositionalAdvantage).SetValue(true)
	if !goal.IsSatisfiedBy(&candidate) {
		t.Fatalf("expected matching candidate to satisfy goal")
	}
	candidate.Bool(HasPositionalAdvantage).SetIgnore(true)
	if goal.IsSatisfiedBy(&candidate) {
		t.Fatalf("expected ignoring candidate not to satisfy goal")
	}
}

func TestOriginSatisfaction(t *testing.T) {
	tests := []struct {
		name      string
		op        Op
		candidate geom.Vec3
		satisfy   bool
	}{
		{name: "EQ within epsilon", op: EQ, candidate: geom.V(20, 0, 0), satisfy: true},
		{name: "EQ outside epsilon", op: EQ, candidate: geom.V(40, 0, 0), satisfy: false},
		{name: "NE outside epsilon", op: NE, candidate: geom.V(40, 0, 0), satisfy: true},
		{name: "NE within epsilon", op: NE, candidate: geom.V(20, 0, 0), satisfy: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			goal := goalCaring()
			goal.Origin(BotOrigin).SetIgnore(false).SetValue(geom.V(0, 0, 0))
			if err := goal.Origin(BotOrigin).SetSatisfyOp(tc.op, 32); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			candidate := New(nil)
			candidate.Origin(BotOrigin).SetIgnore(false).SetValue(tc.candidate)
			if got := goal.IsSatisfiedBy(&candidate); got != tc.satisfy {
				t.Fatalf("expected satisfied=%v, got %v", tc.satisfy, got)
			}
		})
	}
}

func TestSetSatisfyOpValidation(t *testing.T) {
	s := New(nil)
	tests := []struct {
		name string
		err  error
		got  error
	}{
		{name: "origin GT", err: ErrIllegalOp, got: s.Origin(BotOrigin).SetSatisfyOp(GT, 32)},
		{name: "epsilon too small", err: ErrEpsilonRange, got: s.Origin(BotOrigin).SetSatisfyOp(EQ, 2)},
		{name: "epsilon at max", err: ErrEpsilonRange, got: s.Lazy(CoverSpot).SetSatisfyOp(EQ, 1024)},
		{name: "epsilon below max", got: s.DualLazy(RunAwayTeleport).SetSatisfyOp(NE, 1020)},
		{name: "numeric unknown op", err: ErrIllegalOp, got: s.Uint(GoalItemWaitTime).SetSatisfyOp(Op(17))},
		{name: "numeric LE", got: s.Uint(GoalItemWaitTime).SetSatisfyOp(LE)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err == nil && tc.got != nil {
				t.Fatalf("expected no error, got %v", tc.got)
			}
			if tc.err != nil && !errors.Is(tc.got, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, tc.got)
			}
		})
	}

	if s.DualLazy(RunAwayTeleport).SatisfyEpsilon() != 1020 {
		t.Fatalf("expected epsilon 1020, got %v", s.DualLazy(RunAwayTeleport).SatisfyEpsilon())
	}
	if s.Origin(BotOrigin).SatisfyOp() != EQ || s.Origin(BotOrigin).SatisfyEpsilon() != MinOriginEpsilon {
		t.Fatalf("expected rejected ops to leave the slot untouched")
	}
}

func TestOriginsAreQuantized(t *testing.T) {
	s := New(nil)
	got := s.Origin(PendingOrigin).SetValue(geom.V(100, 202, 7)).Value()
	if got != geom.V(100, 200, 4) {
		t.Fatalf("expected origin snapped to (100 200 4), got %v", got)
	}
}

func TestLazySlotResolvesOnce(t *testing.T) {
	resolver := &countingResolver{origin: geom.V(256, 128, 24), ok: true}
	s := New(resolver)
	cover := s.Lazy(CoverSpot)

	if cover.State() != LazyPending {
		t.Fatalf("expected pending, got %v", cover.State())
	}
	for i := 0; i < 3; i++ {
		origin, ok := cover.Value()
		if !ok || origin != geom.V(256, 128, 24) {
			t.Fatalf("expected resolved origin, got %v %v", origin, ok)
		}
	}
	if resolver.calls != 1 {
		t.Fatalf("expected one resolver call, got %d", resolver.calls)
	}

	copied := s
	if copied.Lazy(CoverSpot).State() != LazyPresent {
		t.Fatalf("expected resolution to travel with copies")
	}
	if _, ok := copied.Lazy(CoverSpot).Value(); !ok || resolver.calls != 1 {
		t.Fatalf("expected copy not to resolve again, calls %d", resolver.calls)
	}

	cover.Reset()
	if cover.State() != LazyPending || cover.Ignore() {
		t.Fatalf("expected reset slot to be pending and cared for")
	}
	if !cover.IsPresent() || resolver.calls != 2 {
		t.Fatalf("expected reset slot to resolve again, calls %d", resolver.calls)
	}
}

func TestLazySlotAbsent(t *testing.T) {
	resolver := &countingResolver{}
	s := New(resolver)
	spot := s.Lazy(SniperRangeTacticalSpot)
	if !spot.IgnoreOrAbsent() {
		t.Fatalf("expected unresolvable slot to be absent")
	}
	if spot.State() != LazyAbsent {
		t.Fatalf("expected absent, got %v", spot.State())
	}
	spot.IsPresent()
	if resolver.calls != 1 {
		t.Fatalf("expected absent slot not to resolve again, got %d calls", resolver.calls)
	}

	bare := New(nil)
	if bare.Lazy(CoverSpot).IsPresent() {
		t.Fatalf("expected slot without resolver to be absent")
	}
}

func TestDualLazySlot(t *testing.T) {
	resolver := &countingResolver{origin: geom.V(0, 0, 16), ok: true}
	s := New(resolver)
	a, b, ok := s.DualLazy(RunAwayJumppad).Values()
	if !ok {
		t.Fatalf("expected dual slot to be present")
	}
	if a != geom.V(0, 0, 16) || b != geom.V(64, 0, 16) {
		t.Fatalf("expected both origins, got %v and %v", a, b)
	}
	s.ResetTacticalSpots()
	if s.DualLazy(RunAwayJumppad).State() != LazyPending {
		t.Fatalf("expected ResetTacticalSpots to make dual slots pending")
	}
}

func TestLazySatisfaction(t *testing.T) {
	resolver := &countingResolver{origin: geom.V(512, 0, 0), ok: true}

	goal := goalCaring()
	goal.SetResolver(resolver)
	goal.Lazy(CoverSpot).SetIgnore(false)
	if !goal.Lazy(CoverSpot).IsPresent() {
		t.Fatalf("expected goal cover spot to resolve")
	}

	candidate := New(resolver)
	if goal.IsSatisfiedBy(&candidate) {
		t.Fatalf("expected pending candidate not to satisfy present goal")
	}
	candidate.Lazy(CoverSpot).IsPresent()
	if !goal.IsSatisfiedBy(&candidate) {
		t.Fatalf("expected resolved candidate to satisfy goal")
	}
}

func TestDamageToKill(t *testing.T) {
	tests := []struct {
		name                string
		health, armor       float64
		protection, degrade float64
		want                float64
	}{
		{name: "no armor", health: 100, armor: 0, protection: ArmorProtection, degrade: ArmorDegradation, want: 100},
		{name: "armor wiped", health: 100, armor: 50, protection: ArmorProtection, degrade: ArmorDegradation, want: 150},
		{name: "armor outlasts health", health: 100, armor: 500, protection: ArmorProtection, degrade: ArmorDegradation, want: 100 / (1 - ArmorProtection)},
		{name: "no degradation", health: 100, armor: 10, protection: 0.5, degrade: 0, want: 200},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DamageToKill(tc.health, tc.armor, tc.protection, tc.degrade)
			if math.Abs(got-tc.want) > 1e-6 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	if !math.IsInf(DamageToKill(100, 1, 1, ArmorDegradation), 1) {
		t.Fatalf("expected full protection to make the target unkillable")
	}
}

func TestDamageRatios(t *testing.T) {
	s := New(nil)
	s.Short(Health).SetValue(100)
	s.Short(RawDamageToKill).SetValue(200)

	if got := s.DamageToBeKilled(); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
	s.Bool(HasShell).SetValue(true)
	if got := s.DamageToBeKilled(); got != 400 {
		t.Fatalf("expected shell to quadruple damage to be killed, got %v", got)
	}
	s.Bool(EnemyHasQuad).SetValue(true)
	if got := s.DamageToBeKilled(); got != 100 {
		t.Fatalf("expected enemy quad to cancel shell, got %v", got)
	}

	s.Bool(HasQuad).SetValue(true)
	if got := s.DamageToKill(); got != 50 {
		t.Fatalf("expected quad to quarter damage to kill, got %v", got)
	}
	if got := s.KillToBeKilledDamageRatio(); got != 0.5 {
		t.Fatalf("expected ratio 0.5, got %v", got)
	}
}

func TestEnemyRanges(t *testing.T) {
	tests := []struct {
		distance float64
		want     string
	}{
		{distance: 100, want: "close"},
		{distance: 500, want: "middle"},
		{distance: 2000, want: "far"},
		{distance: 3000, want: "sniper"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			s := New(nil)
			s.Origin(BotOrigin).SetValue(geom.V(0, 0, 0))
			s.Origin(EnemyOrigin).SetValue(geom.V(tc.distance, 0, 0))
			got := map[string]bool{
				"close":  s.EnemyIsOnCloseRange(),
				"middle": s.EnemyIsOnMiddleRange(),
				"far":    s.EnemyIsOnFarRange(),
				"sniper": s.EnemyIsOnSniperRange(),
			}
			for band, in := range got {
				if in != (band == tc.want) {
					t.Fatalf("distance %v: expected only %s range, %s reported %v", tc.distance, tc.want, band, in)
				}
			}
		})
	}
}

func TestDebugStrings(t *testing.T) {
	a := sampleState()
	dump := a.String()
	if !strings.Contains(dump, "Health") || !strings.Contains(dump, "EQ 100") {
		t.Fatalf("expected health line in dump, got:\n%s", dump)
	}
	if !strings.Contains(dump, "(ignored)") || !strings.Contains(dump, "(pending)") {
		t.Fatalf("expected ignored and pending markers in dump, got:\n%s", dump)
	}

	b := a
	b.Short(Health).SetValue(40)
	diff := a.DiffString(&b, "old", "new")
	lines := strings.Split(strings.TrimSpace(diff), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two diff lines, got %d:\n%s", len(lines), diff)
	}
	if !strings.HasPrefix(lines[0], "old Health") || !strings.HasSuffix(lines[1], "EQ 40") {
		t.Fatalf("unexpected diff:\n%s", diff)
	}
}
