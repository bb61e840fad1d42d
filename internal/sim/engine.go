// Package sim drives the bots of a level tick by tick: it keeps entity links
// fresh, lets every goal arbiter think, then moves each bot along the
// reachability graph towards its goal or roaming spot.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/goals"
	"arena-bots/server/internal/level"
	"arena-bots/server/internal/roaming"
	"arena-bots/server/internal/tactical"
	"arena-bots/server/internal/trace"
	"arena-bots/server/internal/worldstate"
	"arena-bots/server/logging"
	"arena-bots/server/logging/lifecycle"
)

var (
	// ErrMissingLevel indicates NewEngine was invoked without a level context.
	ErrMissingLevel = errors.New("sim: level is nil")
	// ErrDuplicateEntity indicates a bot or item reused an entity number.
	ErrDuplicateEntity = errors.New("sim: duplicate entity number")
	// ErrOutsideWorld indicates a bot or item was placed outside every area.
	ErrOutsideWorld = errors.New("sim: origin is outside the world")
)

// Config tunes bot movement and reactions.
type Config struct {
	BotSpeed        float64       `toml:"bot_speed" json:"bot_speed"`
	RoamReachRadius float64       `toml:"roam_reach_radius" json:"roam_reach_radius"`
	RoamTimeout     time.Duration `toml:"roam_timeout" json:"roam_timeout"`
	// CoverRange is the enemy distance under which a bot looks for cover.
	// Zero disables cover seeking.
	CoverRange    float64       `toml:"cover_range" json:"cover_range"`
	CoverCooldown time.Duration `toml:"cover_cooldown" json:"cover_cooldown"`
}

func DefaultConfig() Config {
	return Config{
		BotSpeed:        320,
		RoamReachRadius: 32,
		RoamTimeout:     6 * time.Second,
		CoverRange:      worldstate.CloseRangeMax,
		CoverCooldown:   3 * time.Second,
	}
}

// Normalized fills zero or negative fields with defaults. CoverRange is
// kept as is so it can be disabled.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.BotSpeed <= 0 {
		c.BotSpeed = def.BotSpeed
	}
	if c.RoamReachRadius <= 0 {
		c.RoamReachRadius = def.RoamReachRadius
	}
	if c.RoamTimeout <= 0 {
		c.RoamTimeout = def.RoamTimeout
	}
	if c.CoverRange < 0 {
		c.CoverRange = 0
	}
	if c.CoverCooldown <= 0 {
		c.CoverCooldown = def.CoverCooldown
	}
	return c
}

// Behaviour carries the per-bot component configs.
type Behaviour struct {
	Goals    goals.Config
	Roaming  roaming.Config
	Tactical tactical.CommonParams
}

func DefaultBehaviour() Behaviour {
	return Behaviour{
		Goals:    goals.DefaultConfig(),
		Roaming:  roaming.DefaultConfig(),
		Tactical: tactical.DefaultCommonParams(),
	}
}

// EngineOption configures NewEngine behaviour. Options are applied in
// order; later options override earlier ones.
type EngineOption interface {
	apply(*engineConfig)
}

type engineOptionFunc func(*engineConfig)

func (f engineOptionFunc) apply(cfg *engineConfig) {
	if f != nil {
		f(cfg)
	}
}

type engineConfig struct {
	deps      Deps
	config    Config
	behaviour Behaviour
}

// WithDeps injects shared infrastructure dependencies.
func WithDeps(deps Deps) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.deps = deps
	})
}

// WithConfig overrides the movement and reaction settings.
func WithConfig(config Config) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.config = config
	})
}

// WithBehaviour overrides the configs handed to per-bot components.
func WithBehaviour(behaviour Behaviour) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.behaviour = behaviour
	})
}

// ItemSpec describes a pickup placed in the level.
type ItemSpec struct {
	EntityID int
	Name     string
	Kind     string
	Origin   geom.Vec3
	Radius   float64
	Flags    goals.NavEntityFlags
	// Respawn is the delay before a taken item is back. Zero means it never
	// comes back.
	Respawn time.Duration
	// Absent items start taken and respawn after Respawn.
	Absent bool
}

// RespawnDelay is the usual respawn time of an item kind.
func RespawnDelay(kind string) time.Duration {
	switch kind {
	case "health_mega", "quad":
		return 35 * time.Second
	case "armor_red", "armor_yellow":
		return 25 * time.Second
	default:
		return 15 * time.Second
	}
}

var (
	itemBoxMins = geom.V(-15, -15, -15)
	itemBoxMaxs = geom.V(15, 15, 15)
)

type item struct {
	spec      ItemSpec
	handle    goals.NavHandle
	spawned   bool
	respawnAt time.Duration
}

// StepResult summarises one engine step.
type StepResult struct {
	Tick         uint64
	Now          time.Duration
	GoalsReached int
	ItemsTaken   int
	SpotsVisited int
}

// Totals accumulates step results over the engine lifetime.
type Totals struct {
	Ticks        uint64
	GoalsReached int
	ItemsTaken   int
	SpotsVisited int
}

// Engine owns the bots and items of one level. It is not safe for
// concurrent use; the Loop serialises access.
type Engine struct {
	level     *level.Context
	deps      Deps
	cfg       Config
	behaviour Behaviour

	bots  []*Bot
	byID  map[int]*Bot
	items map[int]*item
	order []int

	lastNow time.Duration
	stepped bool
	tick    uint64
	totals  Totals

	// Scratch buffers reused by checkReach.
	areaBuf    []int
	entityBuf  []int
	touchedBuf []int
}

// NewEngine creates an empty engine over a level.
func NewEngine(lvl *level.Context, opts ...EngineOption) (*Engine, error) {
	if lvl == nil {
		return nil, ErrMissingLevel
	}
	cfg := engineConfig{config: DefaultConfig(), behaviour: DefaultBehaviour()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	if cfg.deps.Publisher == nil {
		cfg.deps.Publisher = lvl.Publisher()
	}
	return &Engine{
		level:     lvl,
		deps:      cfg.deps.normalized(),
		cfg:       cfg.config.Normalized(),
		behaviour: cfg.behaviour,
		byID:      make(map[int]*Bot),
		items:     make(map[int]*item),
	}, nil
}

// Level returns the level the engine runs on.
func (e *Engine) Level() *level.Context { return e.level }

// Deps returns the normalized dependencies.
func (e *Engine) Deps() Deps { return e.deps }

// Totals returns the accumulated step results.
func (e *Engine) Totals() Totals { return e.totals }

// Bots returns the bots in the order they were added.
func (e *Engine) Bots() []*Bot { return append([]*Bot(nil), e.bots...) }

// Bot returns the bot with id.
func (e *Engine) Bot(id int) (*Bot, bool) {
	b, ok := e.byID[id]
	return b, ok
}

// Status returns a debug view of every bot.
func (e *Engine) Status() []BotStatus {
	out := make([]BotStatus, 0, len(e.bots))
	for _, b := range e.bots {
		out = append(out, b.Status())
	}
	return out
}

func (e *Engine) entityTaken(id int) bool {
	_, bot := e.byID[id]
	_, it := e.items[id]
	return bot || it
}

// AddBot places a bot in the level and creates its arbiter, roaming
// selector and world state.
func (e *Engine) AddBot(ctx context.Context, spec BotSpec) (*Bot, error) {
	if e.entityTaken(spec.ID) {
		return nil, fmt.Errorf("bot %d: %w", spec.ID, ErrDuplicateEntity)
	}
	areaNum := e.level.World.FindAreaNum(spec.Origin)
	if areaNum == 0 {
		return nil, fmt.Errorf("bot %d at %v: %w", spec.ID, spec.Origin, ErrOutsideWorld)
	}
	speed := spec.Speed
	if speed <= 0 {
		speed = e.cfg.BotSpeed
	}
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("bot%d", spec.ID)
	}
	b := &Bot{
		ID:              spec.ID,
		Name:            name,
		Origin:          spec.Origin,
		Forward:         geom.V(1, 0, 0),
		Speed:           speed,
		CurrAreaNum:     areaNum,
		GroundedAreaNum: areaNum,
		Arbiter:         e.level.NewArbiter(spec.ID, spec.Policy, e.behaviour.Goals),
		Roaming:         e.level.NewRoamingSelector(spec.ID, e.behaviour.Roaming),
		State:           worldstate.New(e.level.StateResolver(spec.ID, e.behaviour.Tactical)),
		dirty:           true,
	}
	e.refresh(b)
	e.bots = append(e.bots, b)
	e.byID[b.ID] = b

	lifecycle.BotSpawned(ctx, e.deps.Publisher, e.tick, logging.BotRef(b.ID), lifecycle.BotSpawnedPayload{
		Name:    b.Name,
		X:       b.Origin[0],
		Y:       b.Origin[1],
		Z:       b.Origin[2],
		AreaNum: b.CurrAreaNum,
	}, nil)
	return b, nil
}

// RemoveBot takes a bot out of the level.
func (e *Engine) RemoveBot(ctx context.Context, id int, reason string) bool {
	b, ok := e.byID[id]
	if !ok {
		return false
	}
	delete(e.byID, id)
	for i, other := range e.bots {
		if other == b {
			e.bots = append(e.bots[:i], e.bots[i+1:]...)
			break
		}
	}
	e.level.Linker.Unlink(id)
	e.level.Coordinator.Unregister(b.Arbiter)
	lifecycle.BotRemoved(ctx, e.deps.Publisher, e.tick, logging.BotRef(id), lifecycle.BotRemovedPayload{Reason: reason}, nil)
	return true
}

// AddItem registers a pickup as a nav entity and links it into the areas it
// touches.
func (e *Engine) AddItem(spec ItemSpec) (goals.NavHandle, error) {
	if e.entityTaken(spec.EntityID) {
		return goals.NavHandle{}, fmt.Errorf("item %d: %w", spec.EntityID, ErrDuplicateEntity)
	}
	if e.level.World.FindAreaNum(spec.Origin) == 0 {
		return goals.NavHandle{}, fmt.Errorf("item %d at %v: %w", spec.EntityID, spec.Origin, ErrOutsideWorld)
	}
	if spec.Flags == 0 {
		spec.Flags = goals.ReachAtTouch
	}
	h := e.level.NavEntities.Add(goals.NavEntitySpec{
		EntityID: spec.EntityID,
		Name:     spec.Name,
		Kind:     spec.Kind,
		Origin:   spec.Origin,
		Flags:    spec.Flags,
		Radius:   spec.Radius,
		Spawned:  !spec.Absent,
	})
	it := &item{spec: spec, handle: h, spawned: !spec.Absent}
	if spec.Absent {
		it.respawnAt = spec.Respawn
		e.level.NavEntities.SetRespawn(h, spec.Respawn, spec.Respawn > 0)
	}
	e.items[spec.EntityID] = it
	e.order = append(e.order, spec.EntityID)
	e.level.Linker.Relink(spec.EntityID, spec.Origin.Add(itemBoxMins), spec.Origin.Add(itemBoxMaxs))
	return h, nil
}

// Step advances every bot by one tick ending at now.
func (e *Engine) Step(ctx context.Context, tick uint64, now time.Duration) StepResult {
	frame := goals.Frame{Tick: tick, Now: now}
	var dt time.Duration
	if e.stepped && now > e.lastNow {
		dt = now - e.lastNow
	}
	e.lastNow, e.stepped, e.tick = now, true, tick

	res := StepResult{Tick: tick, Now: now}
	e.respawnItems(ctx, frame)

	for _, b := range e.bots {
		e.refresh(b)
	}
	for _, b := range e.bots {
		e.updateState(b)
		b.Arbiter.Think(ctx, frame, b.goalAgent())
		e.considerCover(ctx, frame, b)
	}
	for _, b := range e.bots {
		e.move(b, dt, now)
		e.refresh(b)
		e.checkReach(ctx, frame, b, &res)
	}

	e.totals.Ticks++
	e.totals.GoalsReached += res.GoalsReached
	e.totals.ItemsTaken += res.ItemsTaken
	e.totals.SpotsVisited += res.SpotsVisited
	return res
}

// refresh relinks a moved bot and updates its areas.
func (e *Engine) refresh(b *Bot) {
	if !b.dirty {
		return
	}
	b.dirty = false
	mins, maxs := b.absBounds()
	e.level.Linker.Relink(b.ID, mins, maxs)
	world := e.level.World
	areaNum := world.PointAreaNum(b.Origin)
	if areaNum == 0 {
		return
	}
	b.CurrAreaNum = areaNum
	if world.AreaSettings()[areaNum].AreaFlags&aas.AreaGrounded != 0 {
		b.GroundedAreaNum = areaNum
	}
}

func (e *Engine) respawnItems(ctx context.Context, frame goals.Frame) {
	for _, id := range e.order {
		it := e.items[id]
		if it.spawned || it.spec.Respawn <= 0 || frame.Now < it.respawnAt {
			continue
		}
		it.spawned = true
		e.level.NavEntities.SetSpawned(it.handle)
		lifecycle.ItemRespawned(ctx, e.deps.Publisher, frame.Tick, logging.NavRef(id), lifecycle.ItemPayload{
			Name: it.spec.Name,
			Kind: it.spec.Kind,
		}, nil)
	}
}

// closestVisibleEnemy returns the nearest other bot in sight within far range.
func (e *Engine) closestVisibleEnemy(b *Bot) *Bot {
	var (
		best     *Bot
		bestDist = worldstate.FarRangeMax * worldstate.FarRangeMax
	)
	for _, other := range e.bots {
		if other == b {
			continue
		}
		d := other.Origin.SquareDistanceTo(b.Origin)
		if d > bestDist {
			continue
		}
		if !trace.Visible(e.level.Tracer, b.eye(), other.eye()) {
			continue
		}
		best, bestDist = other, d
	}
	return best
}

func (e *Engine) updateState(b *Bot) {
	s := &b.State
	s.ResetTacticalSpots()
	s.Origin(worldstate.BotOrigin).SetValue(b.Origin).SetIgnore(false)
	if enemy := e.closestVisibleEnemy(b); enemy != nil {
		s.Origin(worldstate.EnemyOrigin).SetValue(enemy.Origin).SetIgnore(false)
		threatening := e.cfg.CoverRange > 0 && enemy.Origin.DistanceTo(b.Origin) <= e.cfg.CoverRange
		s.Bool(worldstate.HasThreateningEnemy).SetValue(threatening).SetIgnore(false)
	} else {
		s.Origin(worldstate.EnemyOrigin).SetIgnore(true)
		s.Bool(worldstate.HasThreateningEnemy).SetValue(false).SetIgnore(false)
	}
	if goal := b.Arbiter.NavigationTarget(); goal != nil {
		s.Origin(worldstate.NavTargetOrigin).SetValue(goal.Origin()).SetIgnore(false)
	} else {
		s.Origin(worldstate.NavTargetOrigin).SetIgnore(true)
	}
}

// considerCover makes a threatened bot run for cover with a special goal.
func (e *Engine) considerCover(ctx context.Context, frame goals.Frame, b *Bot) {
	s := &b.State
	if !s.Bool(worldstate.HasThreateningEnemy).Value() || b.Arbiter.SpecialGoal() != nil || frame.Now < b.coverUntil {
		return
	}
	b.coverUntil = frame.Now + e.cfg.CoverCooldown
	spot, ok := s.Lazy(worldstate.CoverSpot).Value()
	if !ok {
		return
	}
	areaNum := e.level.World.FindAreaNum(spot)
	if areaNum == 0 {
		return
	}
	b.Arbiter.SetSpecialGoal(ctx, goals.SpotTarget(spot, areaNum, 0))
	s.Bool(worldstate.HasPendingCoverSpot).SetValue(true).SetIgnore(false)
}

// moveTarget returns where the bot heads this tick: its navigation target,
// else a sticky roaming spot.
func (e *Engine) moveTarget(b *Bot, now time.Duration) (geom.Vec3, int, bool) {
	if goal := b.Arbiter.NavigationTarget(); goal != nil {
		b.roamActive = false
		return goal.Origin(), goal.AreaNum(), true
	}
	if !b.roamActive {
		spot, ok := b.Roaming.GetCachedRoamingSpot(now, b.roamingAgent())
		if !ok {
			return geom.Vec3{}, 0, false
		}
		b.roamTarget, b.roamActive, b.roamDeadline = spot, true, now+e.cfg.RoamTimeout
	}
	return b.roamTarget, e.level.World.FindAreaNum(b.roamTarget), true
}

func (e *Engine) move(b *Bot, dt, now time.Duration) {
	if dt <= 0 || b.Arbiter.ShouldWaitForGoal() {
		return
	}
	target, targetArea, ok := e.moveTarget(b, now)
	if !ok {
		return
	}
	e.advance(b, target, targetArea, b.Speed*dt.Seconds())
}

func (e *Engine) checkReach(ctx context.Context, frame goals.Frame, b *Bot, res *StepResult) {
	linker := e.level.Linker
	mins, maxs := b.absBounds()
	e.areaBuf = linker.AppendEntityAreas(e.areaBuf[:0], b.ID)
	e.touchedBuf = e.touchedBuf[:0]
	for _, areaNum := range e.areaBuf {
		e.entityBuf = linker.AppendAreaEntities(e.entityBuf[:0], areaNum)
		for _, id := range e.entityBuf {
			it, ok := e.items[id]
			if !ok || !it.spawned || containsInt(e.touchedBuf, id) {
				continue
			}
			e.touchedBuf = append(e.touchedBuf, id)
			if !geom.BoundsIntersect(mins, maxs, it.spec.Origin.Add(itemBoxMins), it.spec.Origin.Add(itemBoxMaxs)) {
				continue
			}
			e.take(ctx, frame, b, it)
			res.ItemsTaken++
			if b.Arbiter.HandleGoalTouch(ctx, id) {
				res.GoalsReached++
			}
		}
	}
	if b.Arbiter.TryReachGoalByProximity(ctx) {
		res.GoalsReached++
	}
	if b.roamActive {
		r := e.cfg.RoamReachRadius
		reached := b.roamTarget.SquareDistance2DTo(b.Origin) <= r*r
		if reached || frame.Now >= b.roamDeadline {
			b.Roaming.OnNavTargetReached(frame.Now, b.Origin, b.roamTarget)
			b.roamActive = false
			b.crossing = nil
			if reached {
				res.SpotsVisited++
			}
		}
	}
}

func (e *Engine) take(ctx context.Context, frame goals.Frame, b *Bot, it *item) {
	it.spawned = false
	it.respawnAt = frame.Now + it.spec.Respawn
	e.level.NavEntities.SetRespawn(it.handle, it.respawnAt, it.spec.Respawn > 0)
	if e.deps.Metrics != nil {
		e.deps.Metrics.Add("sim_items_taken", 1)
	}
	lifecycle.ItemTaken(ctx, e.deps.Publisher, frame.Tick, logging.BotRef(b.ID), logging.NavRef(it.spec.EntityID), lifecycle.ItemPayload{
		Name:          it.spec.Name,
		Kind:          it.spec.Kind,
		RespawnMillis: it.spec.Respawn.Milliseconds(),
	}, nil)
}

// SpawnPoint picks a standing origin at the center of a random grounded
// area. ok is false when the level has none.
func (e *Engine) SpawnPoint(rng *rand.Rand) (geom.Vec3, bool) {
	world := e.level.World
	settings := world.AreaSettings()
	areas := world.Areas()
	var grounded []int
	for areaNum := 1; areaNum < len(areas) && areaNum < len(settings); areaNum++ {
		if settings[areaNum].AreaFlags&aas.AreaGrounded != 0 {
			grounded = append(grounded, areaNum)
		}
	}
	if len(grounded) == 0 {
		return geom.Vec3{}, false
	}
	areaNum := grounded[rng.Intn(len(grounded))]
	return e.ground(areas[areaNum].Center, areaNum), true
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
