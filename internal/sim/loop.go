package sim

import (
	"context"
	"sync"
	"time"

	"arena-bots/server/logging/simulation"
)

// LoopConfig tunes the fixed-timestep loop.
type LoopConfig struct {
	TickRate        int `toml:"tick_rate" json:"tick_rate"`
	CatchupMaxTicks int `toml:"catchup_max_ticks" json:"catchup_max_ticks"`
	// AlarmRatio and AlarmStreak escalate overruns: once AlarmStreak ticks
	// in a row overrun, an alarm is raised if the last one took at least
	// AlarmRatio budgets.
	AlarmRatio  float64 `toml:"alarm_ratio" json:"alarm_ratio"`
	AlarmStreak uint64  `toml:"alarm_streak" json:"alarm_streak"`
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:        20,
		CatchupMaxTicks: 3,
		AlarmRatio:      2,
		AlarmStreak:     10,
	}
}

// Normalized fills zero or negative fields with defaults.
func (c LoopConfig) Normalized() LoopConfig {
	def := DefaultLoopConfig()
	if c.TickRate <= 0 {
		c.TickRate = def.TickRate
	}
	if c.CatchupMaxTicks <= 0 {
		c.CatchupMaxTicks = 1
	}
	if c.AlarmRatio <= 1 {
		c.AlarmRatio = def.AlarmRatio
	}
	if c.AlarmStreak == 0 {
		c.AlarmStreak = def.AlarmStreak
	}
	return c
}

// Interval is the level time covered by one tick.
func (c LoopConfig) Interval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// LoopHooks are invoked by the loop after every step.
type LoopHooks struct {
	AfterStep func(LoopStepResult)
}

// LoopStepResult wraps a step result with its timing.
type LoopStepResult struct {
	StepResult
	Duration time.Duration
	Budget   time.Duration
	Overrun  bool
}

// Loop advances an Engine with a fixed timestep. Level time moves by one
// interval per tick regardless of how late the tick runs, so a run with the
// same inputs always sees the same clock.
type Loop struct {
	engine *Engine
	config LoopConfig
	hooks  LoopHooks

	mu     sync.Mutex
	tick   uint64
	now    time.Duration
	streak uint64
}

// NewLoop wraps engine with a loop.
func NewLoop(engine *Engine, cfg LoopConfig, hooks LoopHooks) *Loop {
	if engine == nil {
		return nil
	}
	return &Loop{engine: engine, config: cfg.Normalized(), hooks: hooks}
}

// Tick returns the last tick run.
func (l *Loop) Tick() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tick
}

// Do runs fn with exclusive access to the engine.
func (l *Loop) Do(fn func(e *Engine)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.engine)
}

// Advance executes a single step.
func (l *Loop) Advance(ctx context.Context) LoopStepResult {
	l.mu.Lock()
	result := l.advanceLocked(ctx)
	l.mu.Unlock()
	if l.hooks.AfterStep != nil {
		l.hooks.AfterStep(result)
	}
	return result
}

func (l *Loop) advanceLocked(ctx context.Context) LoopStepResult {
	deps := l.engine.Deps()
	budget := l.config.Interval()
	l.tick++
	l.now += budget

	start := deps.Clock.Now()
	step := l.engine.Step(ctx, l.tick, l.now)
	duration := deps.Clock.Now().Sub(start)

	result := LoopStepResult{StepResult: step, Duration: duration, Budget: budget}
	if deps.Metrics != nil {
		deps.Metrics.Store("sim_tick_duration_ms", uint64(duration.Milliseconds()))
	}
	if duration <= budget {
		l.streak = 0
		return result
	}
	result.Overrun = true
	l.streak++
	ratio := float64(duration) / float64(budget)
	if deps.Metrics != nil {
		deps.Metrics.Add("sim_tick_overruns_total", 1)
	}
	simulation.TickBudgetOverrun(ctx, deps.Publisher, l.tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: duration.Milliseconds(),
		BudgetMillis:   budget.Milliseconds(),
		Ratio:          ratio,
		Streak:         l.streak,
		Bots:           len(l.engine.bots),
	}, nil)
	if l.streak == l.config.AlarmStreak && ratio >= l.config.AlarmRatio {
		simulation.TickBudgetAlarm(ctx, deps.Publisher, l.tick, simulation.TickBudgetAlarmPayload{
			DurationMillis:  duration.Milliseconds(),
			BudgetMillis:    budget.Milliseconds(),
			Ratio:           ratio,
			Streak:          l.streak,
			ThresholdRatio:  l.config.AlarmRatio,
			ThresholdStreak: l.config.AlarmStreak,
		}, nil)
	}
	return result
}

// RunTicks advances n ticks as fast as possible and publishes a summary.
func (l *Loop) RunTicks(ctx context.Context, n uint64) Totals {
	for i := uint64(0); i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		l.Advance(ctx)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	totals := l.engine.Totals()
	simulation.RunCompleted(ctx, l.engine.Deps().Publisher, l.tick, simulation.RunCompletedPayload{
		Ticks:        totals.Ticks,
		Bots:         len(l.engine.bots),
		GoalsReached: totals.GoalsReached,
		ItemsTaken:   totals.ItemsTaken,
		SpotsVisited: totals.SpotsVisited,
	}, nil)
	return totals
}

// Run drives the loop in real time until ctx is done. A late wake-up runs
// up to CatchupMaxTicks steps to catch up with the wall clock.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.config.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	clock := l.engine.Deps().Clock
	last := clock.Now()
	var owed time.Duration
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := clock.Now()
			owed += now.Sub(last)
			last = now
			steps := 0
			for owed >= interval && steps < l.config.CatchupMaxTicks {
				l.Advance(ctx)
				owed -= interval
				steps++
			}
			if steps == l.config.CatchupMaxTicks {
				owed = 0
			}
		}
	}
}
