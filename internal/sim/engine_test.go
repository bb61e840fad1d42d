package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/level"
	"arena-bots/server/internal/levelgen"
	"arena-bots/server/internal/route"
	"arena-bots/server/internal/worldstate"
	"arena-bots/server/logging"
	loggingGoals "arena-bots/server/logging/goals"
	"arena-bots/server/logging/lifecycle"
	"arena-bots/server/logging/simulation"
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

// flatLevel is a 4x4 grid of 192 unit cells on the ground plane.
func flatLevel(t *testing.T, pub logging.Publisher) *level.Context {
	t.Helper()
	cfg := levelgen.DefaultConfig()
	cfg.Size = 4
	cfg.Levels = 1
	gen, err := levelgen.Generate(cfg)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	lc, err := level.New(context.Background(), gen.World, level.Options{Name: "flat", Publisher: pub})
	if err != nil {
		t.Fatalf("level failed: %v", err)
	}
	return lc
}

// cell returns the standing origin at the center of a grid cell.
func cell(col, row int) geom.Vec3 {
	return geom.V(float64(col)*192+96, float64(row)*192+96, 24)
}

func newEngine(t *testing.T, pub logging.Publisher) *Engine {
	t.Helper()
	e, err := NewEngine(flatLevel(t, pub), WithDeps(Deps{Publisher: pub}))
	if err != nil {
		t.Fatalf("engine failed: %v", err)
	}
	return e
}

func runEngine(e *Engine, ticks int, until func() bool) time.Duration {
	interval := DefaultLoopConfig().Interval()
	var now time.Duration
	for tick := 1; tick <= ticks; tick++ {
		now += interval
		e.Step(context.Background(), uint64(tick), now)
		if until != nil && until() {
			break
		}
	}
	return now
}

func TestAddBotValidation(t *testing.T) {
	pub := &recorder{}
	e := newEngine(t, pub)
	ctx := context.Background()

	if _, err := e.AddBot(ctx, BotSpec{ID: 1, Origin: cell(0, 0)}); err != nil {
		t.Fatalf("expected bot to be added, got %v", err)
	}
	if _, err := e.AddBot(ctx, BotSpec{ID: 1, Origin: cell(1, 0)}); !errors.Is(err, ErrDuplicateEntity) {
		t.Fatalf("expected duplicate entity error, got %v", err)
	}
	if _, err := e.AddItem(ItemSpec{EntityID: 1, Origin: cell(1, 1)}); !errors.Is(err, ErrDuplicateEntity) {
		t.Fatalf("expected items to share entity numbers with bots, got %v", err)
	}
	if _, err := e.AddBot(ctx, BotSpec{ID: 2, Origin: geom.V(-500, -500, 24)}); !errors.Is(err, ErrOutsideWorld) {
		t.Fatalf("expected outside world error, got %v", err)
	}
	if pub.count(lifecycle.EventBotSpawned) != 1 {
		t.Fatalf("expected one spawn event, got %d", pub.count(lifecycle.EventBotSpawned))
	}
	b, _ := e.Bot(1)
	if b.Name != "bot1" || b.CurrAreaNum == 0 || b.Speed != DefaultConfig().BotSpeed {
		t.Fatalf("unexpected bot state %+v", b)
	}
}

func TestBotPicksUpItem(t *testing.T) {
	pub := &recorder{}
	e := newEngine(t, pub)
	ctx := context.Background()

	bot, err := e.AddBot(ctx, BotSpec{ID: 1, Origin: cell(0, 0)})
	if err != nil {
		t.Fatalf("add bot failed: %v", err)
	}
	h, err := e.AddItem(ItemSpec{EntityID: 100, Name: "mega", Kind: "health_mega", Origin: cell(3, 0).WithZ(16), Respawn: 30 * time.Second})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	runEngine(e, 300, func() bool { return e.Totals().ItemsTaken > 0 })

	if e.Totals().ItemsTaken != 1 {
		t.Fatalf("expected the item to be taken, got totals %+v", e.Totals())
	}
	if e.Totals().GoalsReached == 0 {
		t.Fatalf("expected taking the goal item to reach a goal")
	}
	if entity := e.Level().NavEntities.Get(h); entity == nil || entity.IsSpawned() {
		t.Fatalf("expected the item to be taken")
	}
	if pub.count(lifecycle.EventItemTaken) != 1 || pub.count(loggingGoals.EventGoalReached) == 0 {
		t.Fatalf("expected item taken and goal reached events")
	}
	if d := bot.Origin.SquareDistance2DTo(cell(3, 0)); d > 31*31 {
		t.Fatalf("expected bot to stand on the item, got origin %v", bot.Origin)
	}
}

func TestItemRespawns(t *testing.T) {
	pub := &recorder{}
	e := newEngine(t, pub)
	h, err := e.AddItem(ItemSpec{EntityID: 7, Name: "ra", Kind: "armor_red", Origin: cell(2, 2).WithZ(16), Respawn: time.Second, Absent: true})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if at, ok := e.Level().NavEntities.Get(h).SpawnTime(0); !ok || at != time.Second {
		t.Fatalf("expected absent item to respawn at 1s, got %v %v", at, ok)
	}

	now := runEngine(e, 30, func() bool { return e.Level().NavEntities.Get(h).IsSpawned() })
	if !e.Level().NavEntities.Get(h).IsSpawned() {
		t.Fatalf("expected item to respawn")
	}
	if now < time.Second {
		t.Fatalf("expected respawn not before 1s, got %v", now)
	}
	if pub.count(lifecycle.EventItemRespawned) != 1 {
		t.Fatalf("expected one respawn event, got %d", pub.count(lifecycle.EventItemRespawned))
	}
}

func TestRemoveBot(t *testing.T) {
	pub := &recorder{}
	e := newEngine(t, pub)
	ctx := context.Background()
	if _, err := e.AddBot(ctx, BotSpec{ID: 3, Origin: cell(1, 1)}); err != nil {
		t.Fatalf("add bot failed: %v", err)
	}
	if len(e.Level().Linker.EntityAreas(3)) == 0 {
		t.Fatalf("expected bot to be linked")
	}
	if !e.RemoveBot(ctx, 3, "kicked") {
		t.Fatalf("expected removal to succeed")
	}
	if e.RemoveBot(ctx, 3, "kicked") {
		t.Fatalf("expected second removal to fail")
	}
	if len(e.Level().Linker.EntityAreas(3)) != 0 {
		t.Fatalf("expected bot links to be released")
	}
	if len(e.Level().Coordinator.Arbiters()) != 0 {
		t.Fatalf("expected arbiter to be unregistered")
	}
	if pub.count(lifecycle.EventBotRemoved) != 1 {
		t.Fatalf("expected removal event")
	}
}

func TestUpdateStateTracksEnemy(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a, _ := e.AddBot(ctx, BotSpec{ID: 1, Origin: cell(0, 0)})
	b, _ := e.AddBot(ctx, BotSpec{ID: 2, Origin: cell(0, 0).Add(geom.V(150, 0, 0))})
	far, _ := e.AddBot(ctx, BotSpec{ID: 3, Origin: cell(3, 3)})

	e.updateState(a)
	if a.State.Origin(worldstate.EnemyOrigin).Ignore() {
		t.Fatalf("expected an enemy to be tracked")
	}
	if got := a.State.Origin(worldstate.EnemyOrigin).Value(); got.DistanceTo(b.Origin) > 4 {
		t.Fatalf("expected closest bot as enemy, got %v", got)
	}
	if !a.State.Bool(worldstate.HasThreateningEnemy).Value() {
		t.Fatalf("expected enemy within cover range to be threatening")
	}

	e.RemoveBot(ctx, b.ID, "test")
	e.updateState(a)
	if a.State.Bool(worldstate.HasThreateningEnemy).Value() {
		t.Fatalf("expected distant enemy %v not to be threatening", far.Origin)
	}
}

func TestNextReach(t *testing.T) {
	tests := []struct {
		name     string
		teleport int
		want     int
	}{
		{name: "walk is cheaper", teleport: 500, want: 2},
		{name: "teleport is cheaper", teleport: 10, want: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := aas.NewBuilder()
			a1 := b.AddArea(geom.V(0, 0, 0), geom.V(64, 64, 64))
			a2 := b.AddArea(geom.V(64, 0, 0), geom.V(128, 64, 64))
			a3 := b.AddArea(geom.V(128, 0, 0), geom.V(192, 64, 64))
			b.LinkWalk(a1, a2)
			b.LinkWalk(a2, a3)
			b.AddReach(a1, a3, aas.TravelTeleport, tc.teleport)
			world, err := b.Build()
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}
			reach, ok := NextReach(world, route.NewCache(world, nil), a1, a3, aas.TFLDefault)
			if !ok || reach.AreaNum != tc.want {
				t.Fatalf("expected reach into area %d, got %+v %v", tc.want, reach, ok)
			}
			if _, ok := NextReach(world, route.NewCache(world, nil), a1, a3, 0); ok {
				t.Fatalf("expected no reach without travel flags")
			}
		})
	}
}

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestLoopReportsBudgetOverruns(t *testing.T) {
	pub := &recorder{}
	lc := flatLevel(t, pub)
	e, err := NewEngine(lc, WithDeps(Deps{Publisher: pub, Clock: &stepClock{step: 200 * time.Millisecond}}))
	if err != nil {
		t.Fatalf("engine failed: %v", err)
	}
	loop := NewLoop(e, LoopConfig{TickRate: 20, AlarmRatio: 2, AlarmStreak: 3}, LoopHooks{})

	var overruns int
	for i := 0; i < 5; i++ {
		if res := loop.Advance(context.Background()); res.Overrun {
			overruns++
		}
	}
	if overruns != 5 || pub.count(simulation.EventTickBudgetOverrun) != 5 {
		t.Fatalf("expected 5 overruns, got %d (%d events)", overruns, pub.count(simulation.EventTickBudgetOverrun))
	}
	if pub.count(simulation.EventTickBudgetAlarm) != 1 {
		t.Fatalf("expected a single alarm, got %d", pub.count(simulation.EventTickBudgetAlarm))
	}
	if loop.Tick() != 5 {
		t.Fatalf("expected tick 5, got %d", loop.Tick())
	}
}

func TestRunTicksPublishesSummary(t *testing.T) {
	pub := &recorder{}
	e := newEngine(t, pub)
	if _, err := e.AddBot(context.Background(), BotSpec{ID: 1, Origin: cell(1, 2)}); err != nil {
		t.Fatalf("add bot failed: %v", err)
	}
	var steps int
	loop := NewLoop(e, DefaultLoopConfig(), LoopHooks{AfterStep: func(LoopStepResult) { steps++ }})

	totals := loop.RunTicks(context.Background(), 40)
	if totals.Ticks != 40 || steps != 40 {
		t.Fatalf("expected 40 ticks, got %d (%d hooks)", totals.Ticks, steps)
	}
	if pub.count(simulation.EventRunCompleted) != 1 {
		t.Fatalf("expected a run summary event")
	}
	b, _ := e.Bot(1)
	if b.Origin == cell(1, 2) {
		t.Fatalf("expected the roaming bot to move")
	}
}

func TestRespawnDelay(t *testing.T) {
	if RespawnDelay("quad") <= RespawnDelay("ammo") {
		t.Fatalf("expected powerups to respawn slower than ammo")
	}
	if RespawnDelay("armor_red") != 25*time.Second {
		t.Fatalf("expected 25s armor respawn, got %v", RespawnDelay("armor_red"))
	}
}
