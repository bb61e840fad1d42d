package tactical

import (
	"context"
	"errors"
	"math"
	"testing"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/logging"
	loggingtactical "arena-bots/server/logging/tactical"
)

func buildRegistry(t *testing.T, size int) (*aas.World, *Registry) {
	t.Helper()
	level := newTestLevel(t, flatGrid(size, 64, 128))
	registry := NewRegistryBuilder(level.world, level.tracer, nil).Build()
	if registry == nil {
		t.Fatalf("expected a registry")
	}
	return level.world, registry
}

func TestRegistryPicksSeparatedGroundedSpots(t *testing.T) {
	world, registry := buildRegistry(t, 6)
	spots := registry.Spots()
	if len(spots) == 0 {
		t.Fatalf("expected spots on an open level")
	}
	for i, spot := range spots {
		for axis := 0; axis < 3; axis++ {
			if math.Mod(spot.Origin[axis], 4) != 0 {
				t.Fatalf("expected spot %d origin on the 4 unit grid, got %v", i, spot.Origin)
			}
		}
		if spot.Origin[2] != 28 {
			t.Fatalf("expected standing origin 28 units above the floor, got %v", spot.Origin)
		}
		if got := world.FindAreaNum(spot.Origin); got != spot.AreaNum {
			t.Fatalf("expected spot %d in area %d, got %d", i, spot.AreaNum, got)
		}
		if spot.AbsMins != spot.Origin.Add(geom.V(-24, -24, 0)) {
			t.Fatalf("unexpected spot bounds %v", spot.AbsMins)
		}
		for j := i + 1; j < len(spots); j++ {
			if d := spot.Origin.DistanceTo(spots[j].Origin); d < 96 {
				t.Fatalf("spots %d and %d are only %.1f apart", i, j, d)
			}
		}
	}
}

func TestFindSpotsInRadius(t *testing.T) {
	_, registry := buildRegistry(t, 6)
	first, _ := registry.Spot(0)

	found, inside := registry.FindSpotsInRadius(first.Origin, 1)
	if len(found) != 1 || found[0] != 0 {
		t.Fatalf("expected only spot 0 near its own origin, got %v", found)
	}
	if inside != 0 {
		t.Fatalf("expected origin inside spot 0, got %d", inside)
	}

	all, _ := registry.FindSpotsInRadius(geom.V(192, 192, 28), 2000)
	if len(all) != registry.NumSpots() {
		t.Fatalf("expected all %d spots in a huge radius, got %d", registry.NumSpots(), len(all))
	}

	none, inside := registry.FindSpotsInRadius(geom.V(5000, 5000, 5000), 64)
	if len(none) != 0 || inside != NoSpot {
		t.Fatalf("expected nothing far away, got %v and %d", none, inside)
	}

	var empty *Registry
	if spots, inside := empty.FindSpotsInRadius(geom.Vec3{}, 100); spots != nil || inside != NoSpot {
		t.Fatalf("expected nil registry to find nothing")
	}
}

func TestRegistrySkipsAreasWithoutTwoWayWalks(t *testing.T) {
	b := aas.NewBuilder()
	b.AddArea(geom.V(0, 0, 0), geom.V(128, 128, 128))
	b.AddArea(geom.V(128, 0, 0), geom.V(256, 128, 128))
	b.AddReach(1, 2, aas.TravelWalk, 10)
	level := newTestLevel(t, b)
	registry := NewRegistryBuilder(level.world, level.tracer, nil).Build()
	if registry.NumSpots() != 0 {
		t.Fatalf("expected no spots without mutual walks, got %d", registry.NumSpots())
	}
}

func TestSpotCacheRoundTrip(t *testing.T) {
	world, registry := buildRegistry(t, 4)

	var events []logging.Event
	pub := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		events = append(events, event)
	})
	cache, err := OpenSpotCache(":memory:", pub)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if _, err := cache.Load(ctx, world); !errors.Is(err, ErrNoCachedSpots) {
		t.Fatalf("expected ErrNoCachedSpots, got %v", err)
	}
	if err := cache.Save(ctx, registry); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := cache.Load(ctx, world)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.NumSpots() != registry.NumSpots() {
		t.Fatalf("expected %d spots, got %d", registry.NumSpots(), loaded.NumSpots())
	}
	for i, spot := range registry.Spots() {
		if loaded.Spots()[i] != spot {
			t.Fatalf("spot %d differs: expected %+v, got %+v", i, spot, loaded.Spots()[i])
		}
	}
	if len(events) != 1 || events[0].Type != loggingtactical.EventSpotRegistryLoaded {
		t.Fatalf("expected a single loaded event, got %v", events)
	}

	other, _ := buildRegistry(t, 3)
	if _, err := cache.Load(ctx, other); !errors.Is(err, ErrNoCachedSpots) {
		t.Fatalf("expected a different level to miss the cache, got %v", err)
	}
}

func TestSpotCacheLoadOrBuild(t *testing.T) {
	level := newTestLevel(t, flatGrid(3, 64, 128))
	cache, err := OpenSpotCache(":memory:", nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	builder := NewRegistryBuilder(level.world, level.tracer, nil)
	built, err := cache.LoadOrBuild(context.Background(), builder)
	if err != nil {
		t.Fatalf("load or build: %v", err)
	}
	cached, err := cache.Load(context.Background(), level.world)
	if err != nil {
		t.Fatalf("expected built spots to be stored: %v", err)
	}
	if cached.NumSpots() != built.NumSpots() {
		t.Fatalf("expected %d cached spots, got %d", built.NumSpots(), cached.NumSpots())
	}
}
