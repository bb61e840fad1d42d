// Package config loads the server configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/invopop/jsonschema"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/goals"
	"arena-bots/server/internal/levelgen"
	"arena-bots/server/internal/observability"
	"arena-bots/server/internal/roaming"
	"arena-bots/server/internal/sim"
	"arena-bots/server/internal/tactical"
	"arena-bots/server/logging"
)

// ErrUnknownSink is returned when the logging section names a sink that
// does not exist.
var ErrUnknownSink = errors.New("unknown logging sink")

// ErrUnknownKey is returned when the file sets a key no section defines.
var ErrUnknownKey = errors.New("unknown key")

// Sinks lists the logging sink names the server knows how to build.
var Sinks = []string{"console", "json", "zap", "ws", "memory"}

type Config struct {
	Server     ServerConfig      `toml:"server" json:"server"`
	Logging    LoggingConfig     `toml:"logging" json:"logging"`
	Level      LevelConfig       `toml:"level" json:"level"`
	Bots       BotsConfig        `toml:"bots" json:"bots"`
	Tactical   TacticalConfig    `toml:"tactical" json:"tactical"`
	Clusters   aas.ClusterConfig `toml:"clusters" json:"clusters"`
	Roaming    roaming.Config    `toml:"roaming" json:"roaming"`
	Goals      goals.Config      `toml:"goals" json:"goals"`
	Simulation SimulationConfig  `toml:"simulation" json:"simulation"`
}

type ServerConfig struct {
	ListenAddr      string        `toml:"listen_addr" json:"listen_addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" json:"shutdown_timeout"`
	// StatusInterval is how often bot positions are pushed to debug subscribers.
	StatusInterval time.Duration        `toml:"status_interval" json:"status_interval"`
	Observability  observability.Config `toml:"observability" json:"observability"`
}

type LoggingConfig struct {
	Sinks           []string `toml:"sinks" json:"sinks"`
	BufferSize      int      `toml:"buffer_size" json:"buffer_size"`
	MinimumSeverity string   `toml:"minimum_severity" json:"minimum_severity" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	// Categories raises or lowers the severity floor per event category.
	Categories     map[string]string `toml:"categories" json:"categories"`
	JSONFile       string            `toml:"json_file" json:"json_file"`
	JSONMaxBatch   int               `toml:"json_max_batch" json:"json_max_batch"`
	FlushInterval  time.Duration     `toml:"flush_interval" json:"flush_interval"`
	ConsolePrefix  string            `toml:"console_prefix" json:"console_prefix"`
	ZapDevelopment bool              `toml:"zap_development" json:"zap_development"`
	// MemoryCapacity is how many recent events the memory sink serves at /events.
	MemoryCapacity int            `toml:"memory_capacity" json:"memory_capacity"`
	Fields         map[string]any `toml:"fields" json:"fields"`
}

// LevelConfig selects the level: an AAS file, or a generated level when
// File is empty.
type LevelConfig struct {
	File         string          `toml:"file" json:"file"`
	Name         string          `toml:"name" json:"name"`
	Seed         string          `toml:"seed" json:"seed"`
	LinkPoolSize int             `toml:"link_pool_size" json:"link_pool_size"`
	TraceStep    float64         `toml:"trace_step" json:"trace_step"`
	SpotCache    string          `toml:"spot_cache" json:"spot_cache"`
	Generate     levelgen.Config `toml:"generate" json:"generate"`
}

type BotsConfig struct {
	Count int `toml:"count" json:"count"`
	// FirstID is the entity number of the first bot; items are numbered
	// after the bots.
	FirstID int `toml:"first_id" json:"first_id"`
}

// TacticalConfig tunes tactical spot searches.
type TacticalConfig struct {
	SearchRadius                 float64 `toml:"search_radius" json:"search_radius"`
	MinHeightAdvantageOverOrigin float64 `toml:"min_height_advantage_over_origin" json:"min_height_advantage_over_origin"`
	OriginWeightFalloffRatio     float64 `toml:"origin_weight_falloff_ratio" json:"origin_weight_falloff_ratio"`
	DistanceInfluence            float64 `toml:"distance_influence" json:"distance_influence"`
	TravelTimeInfluence          float64 `toml:"travel_time_influence" json:"travel_time_influence"`
	HeightInfluence              float64 `toml:"height_influence" json:"height_influence"`
	LowestWeightTravelTimeMillis float64 `toml:"lowest_weight_travel_time_millis" json:"lowest_weight_travel_time_millis"`
	LedgePenalty                 float64 `toml:"ledge_penalty" json:"ledge_penalty"`
	WallPenalty                  float64 `toml:"wall_penalty" json:"wall_penalty"`
	SpotProximityThreshold       float64 `toml:"spot_proximity_threshold" json:"spot_proximity_threshold"`
	CheckToAndBackReach          bool    `toml:"check_to_and_back_reach" json:"check_to_and_back_reach"`
}

// Params converts the section into search parameters.
func (t TacticalConfig) Params() tactical.CommonParams {
	p := tactical.DefaultCommonParams()
	p.SearchRadius = t.SearchRadius
	p.MinHeightAdvantageOverOrigin = t.MinHeightAdvantageOverOrigin
	p.OriginWeightFalloffRatio = t.OriginWeightFalloffRatio
	p.DistanceInfluence = t.DistanceInfluence
	p.TravelTimeInfluence = t.TravelTimeInfluence
	p.HeightInfluence = t.HeightInfluence
	p.LowestWeightTravelTimeMillis = t.LowestWeightTravelTimeMillis
	p.LedgePenalty = t.LedgePenalty
	p.WallPenalty = t.WallPenalty
	p.SpotProximityThreshold = t.SpotProximityThreshold
	p.CheckToAndBackReach = t.CheckToAndBackReach
	return p.Normalized()
}

func tacticalSection(p tactical.CommonParams) TacticalConfig {
	return TacticalConfig{
		SearchRadius:                 p.SearchRadius,
		MinHeightAdvantageOverOrigin: p.MinHeightAdvantageOverOrigin,
		OriginWeightFalloffRatio:     p.OriginWeightFalloffRatio,
		DistanceInfluence:            p.DistanceInfluence,
		TravelTimeInfluence:          p.TravelTimeInfluence,
		HeightInfluence:              p.HeightInfluence,
		LowestWeightTravelTimeMillis: p.LowestWeightTravelTimeMillis,
		LedgePenalty:                 p.LedgePenalty,
		WallPenalty:                  p.WallPenalty,
		SpotProximityThreshold:       p.SpotProximityThreshold,
		CheckToAndBackReach:          p.CheckToAndBackReach,
	}
}

type SimulationConfig struct {
	Loop   sim.LoopConfig `toml:"loop" json:"loop"`
	Engine sim.Config     `toml:"engine" json:"engine"`
}

// Default returns a complete configuration.
func Default() *Config {
	logDefaults := logging.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 5 * time.Second,
			StatusInterval:  250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Sinks:           append([]string(nil), logDefaults.EnabledSinks...),
			BufferSize:      logDefaults.BufferSize,
			MinimumSeverity: logDefaults.MinimumSeverity.String(),
			JSONMaxBatch:    logDefaults.JSON.MaxBatch,
			FlushInterval:   logDefaults.JSON.FlushInterval,
			MemoryCapacity:  logDefaults.Memory.Capacity,
		},
		Level: LevelConfig{
			Seed:     "arena",
			Generate: levelgen.DefaultConfig(),
		},
		Bots: BotsConfig{
			Count:   4,
			FirstID: 1,
		},
		Tactical:   tacticalSection(tactical.DefaultCommonParams()),
		Clusters:   aas.DefaultClusterConfig(),
		Roaming:    roaming.DefaultConfig(),
		Goals:      goals.DefaultConfig(),
		Simulation: SimulationConfig{Loop: sim.DefaultLoopConfig(), Engine: sim.DefaultConfig()},
	}
}

// Load reads path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML data on top of the defaults. name labels errors.
func Parse(data []byte, name string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse config %s: %w: %s", name, ErrUnknownKey, undecoded[0])
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	return cfg, nil
}

// normalize fills unusable values and validates the sink list.
func (c *Config) normalize() error {
	def := Default()
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		c.Server.ListenAddr = def.Server.ListenAddr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Server.StatusInterval <= 0 {
		c.Server.StatusInterval = def.Server.StatusInterval
	}
	if err := c.SetSinks(c.Logging.Sinks); err != nil {
		return err
	}
	if c.Logging.BufferSize <= 0 {
		c.Logging.BufferSize = def.Logging.BufferSize
	}
	if c.Logging.JSONMaxBatch <= 0 {
		c.Logging.JSONMaxBatch = def.Logging.JSONMaxBatch
	}
	if c.Logging.FlushInterval <= 0 {
		c.Logging.FlushInterval = def.Logging.FlushInterval
	}
	if c.Logging.MemoryCapacity <= 0 {
		c.Logging.MemoryCapacity = def.Logging.MemoryCapacity
	}
	c.Logging.MinimumSeverity = logging.ParseSeverity(strings.ToLower(c.Logging.MinimumSeverity)).String()
	for category, level := range c.Logging.Categories {
		c.Logging.Categories[category] = logging.ParseSeverity(strings.ToLower(level)).String()
	}
	if c.Bots.Count < 0 {
		c.Bots.Count = 0
	}
	if c.Bots.FirstID <= 0 {
		c.Bots.FirstID = def.Bots.FirstID
	}
	c.Clusters = c.Clusters.Normalized()
	c.Roaming = c.Roaming.Normalized()
	c.Goals = c.Goals.Normalized()
	c.Simulation.Loop = c.Simulation.Loop.Normalized()
	c.Simulation.Engine = c.Simulation.Engine.Normalized()
	return nil
}

// SetSinks replaces the enabled sinks after checking every name. Names are
// trimmed and lower-cased; empty names are skipped.
func (c *Config) SetSinks(names []string) error {
	sinks := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if !knownSink(name) {
			return fmt.Errorf("%w: %q", ErrUnknownSink, name)
		}
		sinks = append(sinks, name)
	}
	c.Logging.Sinks = sinks
	return nil
}

func knownSink(name string) bool {
	for _, s := range Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// RouterConfig converts the logging section into router settings.
func (c *Config) RouterConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	cfg.BufferSize = c.Logging.BufferSize
	cfg.MinimumSeverity = logging.ParseSeverity(c.Logging.MinimumSeverity)
	cfg.Fields = c.Logging.Fields
	if len(c.Logging.Categories) > 0 {
		cfg.CategorySeverity = make(map[string]logging.Severity, len(c.Logging.Categories))
		for category, level := range c.Logging.Categories {
			cfg.CategorySeverity[category] = logging.ParseSeverity(level)
		}
	}
	cfg.JSON.FilePath = c.Logging.JSONFile
	cfg.JSON.MaxBatch = c.Logging.JSONMaxBatch
	cfg.JSON.FlushInterval = c.Logging.FlushInterval
	cfg.Console.Prefix = c.Logging.ConsolePrefix
	cfg.Zap.Development = c.Logging.ZapDevelopment
	cfg.Memory.Capacity = c.Logging.MemoryCapacity
	return cfg
}

// Behaviour returns the per-bot component configs.
func (c *Config) Behaviour() sim.Behaviour {
	return sim.Behaviour{
		Goals:    c.Goals,
		Roaming:  c.Roaming,
		Tactical: c.Tactical.Params(),
	}
}

// Schema reflects the JSON schema of Config.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(Config{}))
	schema.Version = ""
	schema.Title = "Arena bots server configuration"
	schema.Description = "TOML configuration of the bot server."
	return schema
}
