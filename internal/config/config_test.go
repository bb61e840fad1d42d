package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arena-bots/server/logging"
)

func TestDefaultIsNormalized(t *testing.T) {
	cfg := Default()
	before := *cfg
	if err := cfg.normalize(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Server.ListenAddr != before.Server.ListenAddr || cfg.Bots.Count != 4 {
		t.Fatalf("expected defaults to survive normalization, got %+v", cfg.Server)
	}
	if len(cfg.Logging.Sinks) == 0 {
		t.Fatalf("expected default sinks")
	}
}

func TestParseOverrides(t *testing.T) {
	data := []byte(`
[server]
listen_addr = ":9090"
shutdown_timeout = "2s"

[logging]
sinks = [" Console ", "zap"]
minimum_severity = "WARN"

[logging.fields]
region = "eu"

[logging.categories]
goals = "Error"

[bots]
count = 2

[goals]
long_term_search_period = "2s"

[simulation.loop]
tick_rate = 40

[simulation.engine]
bot_speed = 250.0
`)
	cfg, err := Parse(data, "inline")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" || cfg.Server.ShutdownTimeout != 2*time.Second {
		t.Fatalf("unexpected server section %+v", cfg.Server)
	}
	if cfg.Server.StatusInterval != Default().Server.StatusInterval {
		t.Fatalf("expected untouched keys to keep defaults, got %v", cfg.Server.StatusInterval)
	}
	if len(cfg.Logging.Sinks) != 2 || cfg.Logging.Sinks[0] != "console" || cfg.Logging.Sinks[1] != "zap" {
		t.Fatalf("expected normalized sinks, got %v", cfg.Logging.Sinks)
	}
	if cfg.Logging.MinimumSeverity != "warn" {
		t.Fatalf("expected warn severity, got %q", cfg.Logging.MinimumSeverity)
	}
	if cfg.Goals.LongTermSearchPeriod != 2*time.Second {
		t.Fatalf("expected goal period override, got %v", cfg.Goals.LongTermSearchPeriod)
	}
	if cfg.Bots.Count != 2 || cfg.Simulation.Loop.TickRate != 40 || cfg.Simulation.Engine.BotSpeed != 250 {
		t.Fatalf("unexpected overrides %+v %+v", cfg.Bots, cfg.Simulation)
	}

	router := cfg.RouterConfig()
	if router.MinimumSeverity != logging.SeverityWarn {
		t.Fatalf("expected router severity warn, got %v", router.MinimumSeverity)
	}
	if router.CategorySeverity[logging.CategoryGoals] != logging.SeverityError {
		t.Fatalf("expected goals floor error, got %v", router.CategorySeverity)
	}
	if router.Fields["region"] != "eu" {
		t.Fatalf("expected router fields to carry region, got %v", router.Fields)
	}
	if got := cfg.Behaviour().Goals.LongTermSearchPeriod; got != 2*time.Second {
		t.Fatalf("expected behaviour to carry goal config, got %v", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{name: "unknown sink", data: "[logging]\nsinks = [\"syslog\"]\n", want: ErrUnknownSink},
		{name: "unknown key", data: "[server]\nlisten = \":1\"\n", want: ErrUnknownKey},
		{name: "unknown section", data: "[radar]\nrange = 3\n", want: ErrUnknownKey},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.data), tc.name); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := Parse([]byte("[server\n"), "broken"); err == nil {
		t.Fatalf("expected malformed toml to fail")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}

	path := filepath.Join(dir, "bots.toml")
	if err := os.WriteFile(path, []byte("[bots]\ncount = 0\nfirst_id = -3\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bots.Count != 0 || cfg.Bots.FirstID != 1 {
		t.Fatalf("expected count 0 and first id reset to 1, got %+v", cfg.Bots)
	}
}

func TestTacticalParamsRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Tactical.SearchRadius = 640
	p := cfg.Tactical.Params()
	if p.SearchRadius != 640 {
		t.Fatalf("expected search radius 640, got %v", p.SearchRadius)
	}
	if tacticalSection(p).SearchRadius != 640 {
		t.Fatalf("expected section to mirror params")
	}
}

func TestSchema(t *testing.T) {
	schema := Schema()
	if schema == nil || schema.Title == "" {
		t.Fatalf("expected titled schema, got %+v", schema)
	}
	if schema.Properties == nil || len(schema.Properties.Keys()) == 0 {
		t.Fatalf("expected schema properties")
	}
	if _, ok := schema.Properties.Get("goals"); !ok {
		t.Fatalf("expected goals section in schema")
	}
}
