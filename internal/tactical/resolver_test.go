package tactical

import (
	"testing"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/worldstate"
)

func TestStateResolverRangeSpots(t *testing.T) {
	level := newTestLevel(t, flatGrid(5, 64, 64))
	resolver := NewStateResolver(level.detector(), DefaultCommonParams())

	s := worldstate.New(resolver)
	s.Origin(worldstate.BotOrigin).SetValue(geom.V(160, 160, 0)).SetIgnore(false)
	s.Origin(worldstate.EnemyOrigin).SetValue(geom.V(160, 160, 40)).SetIgnore(false)

	spot, ok := s.Lazy(worldstate.CloseRangeTacticalSpot).Value()
	if !ok {
		t.Fatalf("expected a close range spot")
	}
	if d := spot.DistanceTo(geom.V(160, 160, 40)); d > worldstate.CloseRangeMax {
		t.Fatalf("expected spot within close range, got distance %v", d)
	}
	if _, ok := s.Lazy(worldstate.SniperRangeTacticalSpot).Value(); ok {
		t.Fatalf("expected no sniper spot on a small level")
	}
}

func TestStateResolverNeedsOrigins(t *testing.T) {
	level := newTestLevel(t, flatGrid(3, 64, 64))
	s := worldstate.New(NewStateResolver(level.detector(), DefaultCommonParams()))
	s.Origin(worldstate.BotOrigin).SetValue(geom.V(32, 32, 16)).SetIgnore(false)

	if _, ok := s.Lazy(worldstate.CoverSpot).Value(); ok {
		t.Fatalf("expected cover spot to be absent without an enemy")
	}
	if s.Lazy(worldstate.CoverSpot).State() != worldstate.LazyAbsent {
		t.Fatalf("expected absent state, got %s", s.Lazy(worldstate.CoverSpot).State())
	}
}

func TestStateResolverRunAway(t *testing.T) {
	tests := []struct {
		name  string
		enemy *geom.Vec3
		found bool
	}{
		{name: "no enemy", found: true},
		{name: "exit away from enemy", enemy: &geom.Vec3{0, 0, 16}, found: true},
		{name: "exit towards enemy", enemy: &geom.Vec3{160, 160, 16}, found: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := flatGrid(3, 64, 64)
			b.AddReach(1, 9, aas.TravelTeleport, 10)
			level := newTestLevel(t, b)

			s := worldstate.New(NewStateResolver(level.detector(), DefaultCommonParams()))
			s.Origin(worldstate.BotOrigin).SetValue(geom.V(32, 32, 16)).SetIgnore(false)
			if tc.enemy != nil {
				s.Origin(worldstate.EnemyOrigin).SetValue(*tc.enemy).SetIgnore(false)
			}

			start, end, ok := s.DualLazy(worldstate.RunAwayTeleport).Values()
			if ok != tc.found {
				t.Fatalf("expected found=%v, got %v", tc.found, ok)
			}
			if !ok {
				return
			}
			if start != geom.V(32, 32, 0) || end != geom.V(160, 160, 0) {
				t.Fatalf("expected teleport from area 1 to area 9, got %v -> %v", start, end)
			}
			if _, _, ok := s.DualLazy(worldstate.RunAwayJumppad).Values(); ok {
				t.Fatalf("expected no jumppad on the level")
			}
		})
	}
}
