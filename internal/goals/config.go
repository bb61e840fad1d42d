package goals

import "time"

// Config tunes goal arbitration. Durations are wall times of the level clock.
type Config struct {
	LongTermSearchPeriod         time.Duration `toml:"long_term_search_period" json:"long_term_search_period"`
	LongTermReevaluationPeriod   time.Duration `toml:"long_term_reevaluation_period" json:"long_term_reevaluation_period"`
	ShortTermSearchPeriod        time.Duration `toml:"short_term_search_period" json:"short_term_search_period"`
	ShortTermReevaluationPeriod  time.Duration `toml:"short_term_reevaluation_period" json:"short_term_reevaluation_period"`
	MaxWaitDuration              time.Duration `toml:"max_wait_duration" json:"max_wait_duration"`
	ShortTermRoundTrip           time.Duration `toml:"short_term_round_trip" json:"short_term_round_trip"`
	ShortTermRadius              float64       `toml:"short_term_radius" json:"short_term_radius"`
	ShortTermLongTermGoalRadius  float64       `toml:"short_term_long_term_goal_radius" json:"short_term_long_term_goal_radius"`
	ProximityRadius              float64       `toml:"proximity_radius" json:"proximity_radius"`
	CloseToGoalRadius            float64       `toml:"close_to_goal_radius" json:"close_to_goal_radius"`
	CostInfluence                float64       `toml:"cost_influence" json:"cost_influence"`
	MoveTimeWeight               float64       `toml:"move_time_weight" json:"move_time_weight"`
	WaitTimeWeight               float64       `toml:"wait_time_weight" json:"wait_time_weight"`
	LongTermSearchKeepRatio      float64       `toml:"long_term_search_keep_ratio" json:"long_term_search_keep_ratio"`
	LongTermReevaluateKeepRatio  float64       `toml:"long_term_reevaluate_keep_ratio" json:"long_term_reevaluate_keep_ratio"`
	ShortTermSearchKeepRatio     float64       `toml:"short_term_search_keep_ratio" json:"short_term_search_keep_ratio"`
	ShortTermReevaluateKeepRatio float64       `toml:"short_term_reevaluate_keep_ratio" json:"short_term_reevaluate_keep_ratio"`
	// Weights maps nav entity kinds to base weights.
	Weights map[string]float64 `toml:"weights" json:"weights"`
}

func DefaultConfig() Config {
	return Config{
		LongTermSearchPeriod:         1500 * time.Millisecond,
		LongTermReevaluationPeriod:   700 * time.Millisecond,
		ShortTermSearchPeriod:        700 * time.Millisecond,
		ShortTermReevaluationPeriod:  350 * time.Millisecond,
		MaxWaitDuration:              3000 * time.Millisecond,
		ShortTermRoundTrip:           750 * time.Millisecond,
		ShortTermRadius:              200,
		ShortTermLongTermGoalRadius:  600,
		ProximityRadius:              40,
		CloseToGoalRadius:            96,
		CostInfluence:                0.5,
		MoveTimeWeight:               1.0,
		WaitTimeWeight:               3.5,
		LongTermSearchKeepRatio:      0.8,
		LongTermReevaluateKeepRatio:  0.6,
		ShortTermSearchKeepRatio:     0.9,
		ShortTermReevaluateKeepRatio: 0.7,
		Weights: map[string]float64{
			"health_mega":  6,
			"armor_red":    5,
			"armor_yellow": 3,
			"quad":         8,
			"weapon":       2,
			"ammo":         1,
			"health":       1,
		},
	}
}

// Normalized fills zero or negative fields with defaults.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	durations := []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&c.LongTermSearchPeriod, def.LongTermSearchPeriod},
		{&c.LongTermReevaluationPeriod, def.LongTermReevaluationPeriod},
		{&c.ShortTermSearchPeriod, def.ShortTermSearchPeriod},
		{&c.ShortTermReevaluationPeriod, def.ShortTermReevaluationPeriod},
		{&c.MaxWaitDuration, def.MaxWaitDuration},
		{&c.ShortTermRoundTrip, def.ShortTermRoundTrip},
	}
	for _, d := range durations {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}
	floats := []struct {
		v   *float64
		def float64
	}{
		{&c.ShortTermRadius, def.ShortTermRadius},
		{&c.ShortTermLongTermGoalRadius, def.ShortTermLongTermGoalRadius},
		{&c.ProximityRadius, def.ProximityRadius},
		{&c.CloseToGoalRadius, def.CloseToGoalRadius},
		{&c.CostInfluence, def.CostInfluence},
		{&c.MoveTimeWeight, def.MoveTimeWeight},
		{&c.WaitTimeWeight, def.WaitTimeWeight},
		{&c.LongTermSearchKeepRatio, def.LongTermSearchKeepRatio},
		{&c.LongTermReevaluateKeepRatio, def.LongTermReevaluateKeepRatio},
		{&c.ShortTermSearchKeepRatio, def.ShortTermSearchKeepRatio},
		{&c.ShortTermReevaluateKeepRatio, def.ShortTermReevaluateKeepRatio},
	}
	for _, f := range floats {
		if *f.v <= 0 {
			*f.v = f.def
		}
	}
	if c.Weights == nil {
		c.Weights = def.Weights
	}
	return c
}
