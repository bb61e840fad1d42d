package level

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/goals"
	"arena-bots/server/internal/levelgen"
	"arena-bots/server/internal/roaming"
	"arena-bots/server/internal/tactical"
	"arena-bots/server/logging"
	"arena-bots/server/logging/navigation"
	loggingtactical "arena-bots/server/logging/tactical"
)

type recorder struct {
	events []logging.Event
}

func (r *recorder) Publish(_ context.Context, event logging.Event) {
	r.events = append(r.events, event)
}

func (r *recorder) count(eventType logging.EventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func generated(t *testing.T) *aas.World {
	t.Helper()
	cfg := levelgen.DefaultConfig()
	cfg.Size = 4
	cfg.Levels = 1
	lvl, err := levelgen.Generate(cfg)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	return lvl.World
}

func TestNewBuildsSharedStructures(t *testing.T) {
	pub := &recorder{}
	lc, err := New(context.Background(), generated(t), Options{Name: "gen", Publisher: pub})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if lc.Linker == nil || lc.Routes == nil || lc.Tracer == nil || lc.NavEntities == nil || lc.Coordinator == nil {
		t.Fatalf("expected every shared structure to be created")
	}
	if lc.Spots == nil || lc.Spots.NumSpots() == 0 {
		t.Fatalf("expected tactical spots to be picked")
	}
	if lc.Seed() != DefaultSeed {
		t.Fatalf("expected default seed, got %q", lc.Seed())
	}
	if pub.count(loggingtactical.EventSpotRegistryBuilt) != 1 {
		t.Fatalf("expected one registry built event")
	}
}

func TestNewRejectsUnloadedWorld(t *testing.T) {
	if _, err := New(context.Background(), &aas.World{}, Options{}); !errors.Is(err, aas.ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestLoadPublishesOutcome(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen.aas")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := aas.Encode(f, generated(t)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	pub := &recorder{}
	lc, err := Load(context.Background(), path, Options{Publisher: pub})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if lc.Name != "gen" {
		t.Fatalf("expected name from file, got %q", lc.Name)
	}
	if pub.count(navigation.EventWorldLoaded) != 1 {
		t.Fatalf("expected a world loaded event")
	}
	for _, e := range pub.events {
		if e.Type == navigation.EventWorldLoaded {
			payload := e.Payload.(navigation.WorldLoadedPayload)
			if payload.Size == "" || payload.Checksum != lc.World.Checksum() {
				t.Fatalf("unexpected payload %+v", payload)
			}
		}
	}

	missing := &recorder{}
	if _, err := Load(context.Background(), filepath.Join(dir, "missing.aas"), Options{Publisher: missing}); err == nil {
		t.Fatalf("expected missing file to fail")
	}
	if missing.count(navigation.EventWorldLoadFailed) != 1 {
		t.Fatalf("expected a load failed event")
	}
}

func TestSpotCacheIsReused(t *testing.T) {
	cache, err := tactical.OpenSpotCache(":memory:", nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	world := generated(t)
	first, err := New(context.Background(), world, Options{SpotCache: cache})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	pub := &recorder{}
	second, err := New(context.Background(), world, Options{SpotCache: cache, Publisher: pub})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if second.Spots.NumSpots() != first.Spots.NumSpots() {
		t.Fatalf("expected %d cached spots, got %d", first.Spots.NumSpots(), second.Spots.NumSpots())
	}
	if pub.count(loggingtactical.EventSpotRegistryBuilt) != 0 {
		t.Fatalf("expected spots to come from the cache")
	}
}

func TestRandomStreams(t *testing.T) {
	a := NewRNG("seed", "roaming.1").Int63()
	b := NewRNG("seed", "roaming.1").Int63()
	c := NewRNG("seed", "roaming.2").Int63()
	if a != b {
		t.Fatalf("expected same stream to repeat, got %d and %d", a, b)
	}
	if a == c {
		t.Fatalf("expected different labels to give different streams")
	}
	if got := RandomDistance(nil, 5, 5); got != 5 {
		t.Fatalf("expected degenerate range to return min, got %v", got)
	}
	for i := 0; i < 16; i++ {
		if d := RandomDistance(NewRNG("seed", "d"), 10, 20); d < 10 || d >= 20 {
			t.Fatalf("expected distance in [10, 20), got %v", d)
		}
	}
}

func TestPerBotFactories(t *testing.T) {
	lc, err := New(context.Background(), generated(t), Options{Seed: "fixed"})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	first := lc.NewArbiter(1, nil, goals.DefaultConfig())
	second := lc.NewArbiter(2, nil, goals.DefaultConfig())
	if got := len(lc.Coordinator.Arbiters()); got != 2 {
		t.Fatalf("expected both arbiters to be coordinated, got %d", got)
	}
	if first.ID() == second.ID() {
		t.Fatalf("expected distinct arbiters")
	}
	if sel := lc.NewRoamingSelector(1, roaming.DefaultConfig()); sel == nil {
		t.Fatalf("expected a roaming selector")
	}
	if lc.StateResolver(1, tactical.DefaultCommonParams()) == nil {
		t.Fatalf("expected a state resolver")
	}
}
