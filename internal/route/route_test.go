package route

import (
	"testing"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/telemetry"
)

const walkFlags = aas.TFLWalk | aas.TFLAir

func buildRow(t *testing.T, n int, edit func(b *aas.Builder)) *aas.World {
	t.Helper()
	b := aas.NewBuilder()
	for i := 0; i < n; i++ {
		x := float64(i * 64)
		b.AddArea(geom.V(x, 0, 0), geom.V(x+64, 64, 64))
	}
	if edit != nil {
		edit(b)
	}
	w, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return w
}

func TestTravelTimeAlongChain(t *testing.T) {
	world := buildRow(t, 4, func(b *aas.Builder) {
		b.AddReach(1, 2, aas.TravelWalk, 100)
		b.AddReach(2, 3, aas.TravelWalk, 50)
		b.AddReach(3, 4, aas.TravelJump, 30)
		b.AddReach(1, 3, aas.TravelWalk, 400)
	})
	cache := NewCache(world, nil)

	cases := []struct {
		name  string
		from  int
		to    int
		flags aas.TravelFlags
		want  int
	}{
		{name: "same area", from: 2, to: 2, flags: walkFlags, want: 1},
		{name: "direct edge", from: 1, to: 2, flags: walkFlags, want: 100},
		{name: "shorter path through middle", from: 1, to: 3, flags: walkFlags, want: 150},
		{name: "jump forbidden", from: 1, to: 4, flags: walkFlags, want: 0},
		{name: "jump allowed", from: 1, to: 4, flags: walkFlags | aas.TFLJump, want: 180},
		{name: "edges are directed", from: 3, to: 1, flags: aas.TFLDefault, want: 0},
		{name: "invalid source", from: 0, to: 1, flags: aas.TFLDefault, want: 0},
		{name: "out of range target", from: 1, to: 99, flags: aas.TFLDefault, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cache.TravelTimeToGoalArea(tc.from, tc.to, tc.flags); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestContentsRestrictTravel(t *testing.T) {
	b := aas.NewBuilder()
	b.AddArea(geom.V(0, 0, 0), geom.V(64, 64, 64))
	b.AddAreaSpec(aas.AreaSpec{
		Mins:     geom.V(64, 0, 0),
		Maxs:     geom.V(128, 64, 64),
		Contents: aas.ContentsLava,
		Flags:    aas.AreaGrounded,
	})
	b.AddReach(1, 2, aas.TravelWalk, 10)
	world, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	cache := NewCache(world, nil)
	if got := cache.TravelTimeToGoalArea(1, 2, aas.TFLDefault); got != 0 {
		t.Fatalf("expected lava area to be unreachable, got %d", got)
	}
	if got := cache.TravelTimeToGoalArea(1, 2, aas.TFLDefault|aas.TFLLava); got != 10 {
		t.Fatalf("expected 10 with lava allowed, got %d", got)
	}
}

func TestDisabledAreasInvalidateCache(t *testing.T) {
	world := buildRow(t, 3, func(b *aas.Builder) {
		b.LinkWalk(1, 2)
		b.LinkWalk(2, 3)
	})
	metrics := telemetry.NewCounters()
	cache := NewCache(world, metrics)

	first := cache.TravelTimeToGoalArea(1, 3, walkFlags)
	if first == 0 {
		t.Fatalf("expected area 3 to be reachable")
	}
	if again := cache.TravelTimeToGoalArea(1, 3, walkFlags); again != first {
		t.Fatalf("expected memoised time %d, got %d", first, again)
	}
	snapshot := metrics.Snapshot()
	if snapshot["route_cache_hits_total"] != 1 || snapshot["route_cache_misses_total"] != 1 {
		t.Fatalf("unexpected cache counters %v", snapshot)
	}

	cache.SetAreaDisabled(2, true)
	if got := cache.TravelTimeToGoalArea(1, 3, walkFlags); got != 0 {
		t.Fatalf("expected route through disabled area to fail, got %d", got)
	}
	if got := cache.TravelTimeToGoalArea(1, 2, walkFlags); got != 0 {
		t.Fatalf("expected disabled goal to be unreachable, got %d", got)
	}
	cache.SetAreaDisabled(2, false)
	if got := cache.TravelTimeToGoalArea(1, 3, walkFlags); got != first {
		t.Fatalf("expected %d after re-enabling, got %d", first, got)
	}
}

func TestTravelTimeFromAny(t *testing.T) {
	oracle := OracleFunc(func(from, to int, _ aas.TravelFlags) int {
		switch from {
		case 1:
			return 300
		case 2:
			return 120
		default:
			return 0
		}
	})
	if got := TravelTimeFromAny(oracle, []int{1, 2, 3}, 9, aas.TFLDefault); got != 120 {
		t.Fatalf("expected best time 120, got %d", got)
	}
	if got := TravelTimeFromAny(oracle, []int{0, 3}, 9, aas.TFLDefault); got != 0 {
		t.Fatalf("expected 0 without usable sources, got %d", got)
	}
	var unloaded *Cache
	if got := unloaded.TravelTimeToGoalArea(1, 2, aas.TFLDefault); got != 0 {
		t.Fatalf("expected nil cache to report unreachable, got %d", got)
	}
}
