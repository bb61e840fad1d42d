// Package level owns everything the bots of one loaded level share: the area
// world, the entity linker, the route oracle, the tactical spots and the nav
// entity registry. Per-bot objects are created through the Context so they
// all see the same structures and draw from the same seeded random streams.
package level

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/goals"
	"arena-bots/server/internal/roaming"
	"arena-bots/server/internal/route"
	"arena-bots/server/internal/tactical"
	"arena-bots/server/internal/telemetry"
	"arena-bots/server/internal/trace"
	"arena-bots/server/internal/worldstate"
	"arena-bots/server/logging"
	"arena-bots/server/logging/navigation"
)

const defaultTraceStep = 8.0

// Options configure a level Context.
type Options struct {
	// Name labels events, usually the map name.
	Name         string
	Seed         string
	LinkPoolSize int
	// TraceStep is the sampling step of the reference area tracer.
	TraceStep float64
	Clusters  aas.ClusterConfig
	// SpotCache, when set, stores and reuses picked tactical spots.
	SpotCache *tactical.SpotCache
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
}

func (o Options) normalized() Options {
	o.Seed = strings.TrimSpace(o.Seed)
	if o.Seed == "" {
		o.Seed = DefaultSeed
	}
	if o.TraceStep <= 0 {
		o.TraceStep = defaultTraceStep
	}
	if o.Logger == nil {
		o.Logger = telemetry.WrapLogger(log.Default())
	}
	if o.Publisher == nil {
		o.Publisher = logging.NopPublisher()
	}
	return o
}

// Context is the level-scoped owner of every shared structure.
type Context struct {
	Name        string
	World       *aas.World
	Linker      *aas.Linker
	Routes      *route.Cache
	Tracer      trace.Tracer
	Spots       *tactical.Registry
	NavEntities *goals.Registry
	Coordinator *goals.Coordinator
	AreaData    aas.AreaDataSummary

	seed   string
	pub    logging.Publisher
	logger telemetry.Logger
}

// New wraps a loaded world. It derives the extra area data, picks or loads
// tactical spots and creates the empty shared registries.
func New(ctx context.Context, world *aas.World, opts Options) (*Context, error) {
	opts = opts.normalized()
	if !world.IsLoaded() {
		return nil, aas.ErrNotLoaded
	}
	tracer := aas.NewAreaTracer(world, opts.TraceStep)
	summary := world.ComputeExtraAreaData(tracer, opts.Clusters)

	builder := tactical.NewRegistryBuilder(world, tracer, opts.Publisher)
	var spots *tactical.Registry
	if opts.SpotCache != nil {
		var err error
		spots, err = opts.SpotCache.LoadOrBuild(ctx, builder)
		if err != nil && spots == nil {
			return nil, fmt.Errorf("level %s: tactical spots: %w", opts.Name, err)
		}
		if err != nil {
			opts.Logger.Printf("level %s: failed to cache tactical spots: %v", opts.Name, err)
		}
	} else {
		spots = builder.Build()
	}

	return &Context{
		Name:        opts.Name,
		World:       world,
		Linker:      aas.NewLinker(world, opts.LinkPoolSize),
		Routes:      route.NewCache(world, opts.Metrics),
		Tracer:      tracer,
		Spots:       spots,
		NavEntities: goals.NewRegistry(world),
		Coordinator: goals.NewCoordinator(),
		AreaData:    summary,
		seed:        opts.Seed,
		pub:         opts.Publisher,
		logger:      opts.Logger,
	}, nil
}

// Load decodes the area file at path and builds a Context around it.
func Load(ctx context.Context, path string, opts Options) (*Context, error) {
	opts = opts.normalized()
	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	world, err := aas.LoadFile(path, aas.WithLogger(opts.Logger), aas.WithPublisher(opts.Publisher))
	if err != nil {
		navigation.WorldLoadFailed(ctx, opts.Publisher, 0, navigation.WorldLoadFailedPayload{
			Map:    opts.Name,
			Reason: err.Error(),
		}, nil)
		return nil, err
	}
	var size string
	if info, statErr := os.Stat(path); statErr == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	navigation.WorldLoaded(ctx, opts.Publisher, 0, navigation.WorldLoadedPayload{
		Map:      opts.Name,
		Version:  world.Version(),
		Checksum: world.Checksum(),
		Areas:    world.NumAreas(),
		Reaches:  world.NumReachabilities(),
		Size:     size,
	}, nil)
	return New(ctx, world, opts)
}

// Seed returns the root seed of the level random streams.
func (c *Context) Seed() string { return c.seed }

// Publisher returns the publisher level events go to.
func (c *Context) Publisher() logging.Publisher { return c.pub }

// RNG returns the deterministic random stream named label.
func (c *Context) RNG(label string) *rand.Rand {
	if c == nil {
		return NewRNG(DefaultSeed, label)
	}
	return NewRNG(c.seed, label)
}

// Detector returns a tactical spot detector reporting on behalf of actor.
func (c *Context) Detector(actor logging.EntityRef) *tactical.Detector {
	return tactical.NewDetector(c.World, c.Linker, c.Routes, c.Tracer, tactical.WithPublisher(c.pub, actor))
}

// StateResolver returns the lazy origin resolver for the world states of
// bot id.
func (c *Context) StateResolver(id int, params tactical.CommonParams) worldstate.Resolver {
	return tactical.NewStateResolver(c.Detector(logging.BotRef(id)), params)
}

// NewRoamingSelector creates the roaming selector of bot id with its own
// random stream.
func (c *Context) NewRoamingSelector(id int, cfg roaming.Config) *roaming.Selector {
	rng := c.RNG(fmt.Sprintf("roaming.%d", id))
	return roaming.NewSelector(c.World, c.Linker, c.Spots, c.Routes, c.Tracer, rng, cfg)
}

// NewArbiter creates the goal arbiter of bot id. A nil policy weighs nav
// entities by cfg.Weights.
func (c *Context) NewArbiter(id int, policy goals.Policy, cfg goals.Config) *goals.Arbiter {
	return goals.NewArbiter(id, goals.Deps{
		World:       c.World,
		Registry:    c.NavEntities,
		Oracle:      c.Routes,
		Coordinator: c.Coordinator,
		Policy:      policy,
		Publisher:   c.pub,
	}, cfg)
}
