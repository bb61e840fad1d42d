// Package scenario runs scripted bot matches headless. A scenario file names
// a level (an area file or generator settings), the bots and the items, and
// how many ticks to play; every run gets its own trace id.
package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/goals"
	"arena-bots/server/internal/level"
	"arena-bots/server/internal/levelgen"
	"arena-bots/server/internal/sim"
	"arena-bots/server/internal/tactical"
	"arena-bots/server/internal/telemetry"
	"arena-bots/server/logging"
)

var ErrInvalidScenario = errors.New("scenario: invalid")

const defaultTicks = 600

// Scenario is the decoded scenario file.
type Scenario struct {
	Name  string `yaml:"name"`
	Seed  string `yaml:"seed"`
	Ticks uint64 `yaml:"ticks"`
	// TickRate overrides the loop tick rate when positive.
	TickRate int       `yaml:"tick_rate"`
	Level    LevelSpec `yaml:"level"`
	Bots     []Bot     `yaml:"bots"`
	Items    []Item    `yaml:"items"`
}

type LevelSpec struct {
	// File is an area file, relative to the scenario file.
	File     string           `yaml:"file"`
	Generate *levelgen.Config `yaml:"generate"`
	// GeneratedItems adds the generator's item placements to Items.
	GeneratedItems bool   `yaml:"generated_items"`
	SpotCache      string `yaml:"spot_cache"`
}

// Bot places one bot. An empty origin spawns it in a random grounded area.
type Bot struct {
	ID     int       `yaml:"id"`
	Name   string    `yaml:"name"`
	Origin []float64 `yaml:"origin"`
	Speed  float64   `yaml:"speed"`
}

type Item struct {
	EntityID int           `yaml:"entity_id"`
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	Origin   []float64     `yaml:"origin"`
	Radius   float64       `yaml:"radius"`
	Respawn  time.Duration `yaml:"respawn"`
	Absent   bool          `yaml:"absent"`
	// AtRadius makes the item reachable by proximity instead of touch.
	AtRadius bool `yaml:"at_radius"`
}

// Load reads and validates the scenario at path. A relative level file is
// resolved against the scenario directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if sc.Level.File != "" && !filepath.IsAbs(sc.Level.File) {
		sc.Level.File = filepath.Join(filepath.Dir(path), sc.Level.File)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Parse decodes a scenario document. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.normalize(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Scenario) normalize() error {
	if s.Ticks == 0 {
		s.Ticks = defaultTicks
	}
	if s.Seed == "" {
		s.Seed = level.DefaultSeed
	}
	if s.Level.File == "" && s.Level.Generate == nil {
		cfg := levelgen.DefaultConfig()
		s.Level.Generate = &cfg
	}
	if s.Level.File != "" && s.Level.Generate != nil {
		return fmt.Errorf("%w: level has both a file and generator settings", ErrInvalidScenario)
	}
	if s.Level.Generate != nil {
		fillGenerator(s.Level.Generate)
	}
	for i, b := range s.Bots {
		if b.ID <= 0 {
			return fmt.Errorf("%w: bot %d has no id", ErrInvalidScenario, i)
		}
		if len(b.Origin) != 0 && len(b.Origin) != 3 {
			return fmt.Errorf("%w: bot %d origin needs 3 coordinates", ErrInvalidScenario, b.ID)
		}
	}
	for i, it := range s.Items {
		if it.EntityID <= 0 {
			return fmt.Errorf("%w: item %d has no entity id", ErrInvalidScenario, i)
		}
		if len(it.Origin) != 3 {
			return fmt.Errorf("%w: item %d origin needs 3 coordinates", ErrInvalidScenario, it.EntityID)
		}
	}
	return nil
}

// fillGenerator replaces unset generator dimensions with the defaults.
func fillGenerator(cfg *levelgen.Config) {
	def := levelgen.DefaultConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.CellSide <= 0 {
		cfg.CellSide = def.CellSide
	}
	if cfg.CellHeight <= 0 {
		cfg.CellHeight = def.CellHeight
	}
	if cfg.StepHeight <= 0 {
		cfg.StepHeight = def.StepHeight
	}
	if cfg.Levels <= 0 {
		cfg.Levels = def.Levels
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = def.Frequency
	}
}

func vec(v []float64) geom.Vec3 {
	return geom.V(v[0], v[1], v[2])
}

// Options carry the collaborators and tuning shared by runs. Nil Behaviour
// and Engine keep the engine defaults.
type Options struct {
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Behaviour *sim.Behaviour
	Engine    *sim.Config
	Loop      sim.LoopConfig
}

// Run is a built scenario ready to play.
type Run struct {
	ID       string
	Scenario *Scenario
	Level    *level.Context
	Engine   *sim.Engine
	Loop     *sim.Loop

	cache *tactical.SpotCache
}

// Result summarises a finished run.
type Result struct {
	RunID  string          `json:"runId"`
	Name   string          `json:"name"`
	Totals sim.Totals      `json:"totals"`
	Bots   []sim.BotStatus `json:"bots"`
}

// Build creates the level, the engine and the loop of sc. Every event of the
// run carries the run id as its trace id.
func Build(ctx context.Context, sc *Scenario, opts Options) (*Run, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: nil scenario", ErrInvalidScenario)
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.WrapLogger(log.Default())
	}
	run := &Run{ID: uuid.NewString(), Scenario: sc}
	pub := logging.WithTraceID(opts.Publisher, run.ID)

	levelOpts := level.Options{
		Name:      sc.Name,
		Seed:      sc.Seed,
		Publisher: pub,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	}
	if sc.Level.SpotCache != "" {
		cache, err := tactical.OpenSpotCache(sc.Level.SpotCache, pub)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		run.cache = cache
		levelOpts.SpotCache = cache
	}

	var generated []levelgen.Item
	var err error
	if sc.Level.File != "" {
		run.Level, err = level.Load(ctx, sc.Level.File, levelOpts)
	} else {
		var gen *levelgen.Level
		gen, err = levelgen.Generate(*sc.Level.Generate)
		if err == nil {
			generated = gen.Items
			run.Level, err = level.New(ctx, gen.World, levelOpts)
		}
	}
	if err != nil {
		run.Close()
		return nil, fmt.Errorf("scenario %s: level: %w", sc.Name, err)
	}

	engineOpts := []sim.EngineOption{
		sim.WithDeps(sim.Deps{Logger: opts.Logger, Metrics: opts.Metrics, Clock: opts.Clock, Publisher: pub}),
	}
	if opts.Engine != nil {
		engineOpts = append(engineOpts, sim.WithConfig(*opts.Engine))
	}
	if opts.Behaviour != nil {
		engineOpts = append(engineOpts, sim.WithBehaviour(*opts.Behaviour))
	}
	run.Engine, err = sim.NewEngine(run.Level, engineOpts...)
	if err != nil {
		run.Close()
		return nil, err
	}
	if err := run.populate(ctx, generated); err != nil {
		run.Close()
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	loopCfg := opts.Loop
	if sc.TickRate > 0 {
		loopCfg.TickRate = sc.TickRate
	}
	run.Loop = sim.NewLoop(run.Engine, loopCfg, sim.LoopHooks{})
	return run, nil
}

func (r *Run) populate(ctx context.Context, generated []levelgen.Item) error {
	sc := r.Scenario
	rng := r.Level.RNG("scenario.spawn")
	for _, b := range sc.Bots {
		spec := sim.BotSpec{ID: b.ID, Name: b.Name, Speed: b.Speed}
		if len(b.Origin) == 3 {
			spec.Origin = vec(b.Origin)
		} else {
			origin, ok := r.Engine.SpawnPoint(rng)
			if !ok {
				return fmt.Errorf("%w: no spawn area for bot %d", ErrInvalidScenario, b.ID)
			}
			spec.Origin = origin
		}
		if _, err := r.Engine.AddBot(ctx, spec); err != nil {
			return fmt.Errorf("bot %d: %w", b.ID, err)
		}
	}

	nextID := 1
	for _, b := range sc.Bots {
		if b.ID >= nextID {
			nextID = b.ID + 1
		}
	}
	for _, it := range sc.Items {
		if it.EntityID >= nextID {
			nextID = it.EntityID + 1
		}
	}

	items := append([]Item(nil), sc.Items...)
	if sc.Level.GeneratedItems {
		for _, g := range generated {
			items = append(items, Item{
				EntityID: nextID,
				Name:     fmt.Sprintf("%s_%d", g.Kind, nextID),
				Kind:     g.Kind,
				Origin:   []float64{g.Origin[0], g.Origin[1], g.Origin[2]},
				Respawn:  sim.RespawnDelay(g.Kind),
			})
			nextID++
		}
	}
	for _, it := range items {
		spec := sim.ItemSpec{
			EntityID: it.EntityID,
			Name:     it.Name,
			Kind:     it.Kind,
			Origin:   vec(it.Origin),
			Radius:   it.Radius,
			Respawn:  it.Respawn,
			Absent:   it.Absent,
		}
		if it.AtRadius {
			spec.Flags = goals.ReachAtRadius
		}
		if _, err := r.Engine.AddItem(spec); err != nil {
			return fmt.Errorf("item %d: %w", it.EntityID, err)
		}
	}
	return nil
}

// Execute plays the configured number of ticks.
func (r *Run) Execute(ctx context.Context) Result {
	totals := r.Loop.RunTicks(ctx, r.Scenario.Ticks)
	var status []sim.BotStatus
	r.Loop.Do(func(e *sim.Engine) { status = e.Status() })
	return Result{RunID: r.ID, Name: r.Scenario.Name, Totals: totals, Bots: status}
}

// Close releases the spot cache, if any.
func (r *Run) Close() error {
	if r.cache == nil {
		return nil
	}
	err := r.cache.Close()
	r.cache = nil
	return err
}

// Play builds and executes sc in one call.
func Play(ctx context.Context, sc *Scenario, opts Options) (Result, error) {
	run, err := Build(ctx, sc, opts)
	if err != nil {
		return Result{}, err
	}
	defer run.Close()
	return run.Execute(ctx), nil
}
