package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"arena-bots/server/internal/config"
	"arena-bots/server/internal/telemetry"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Level.Generate.Size = 3
	cfg.Level.Generate.Levels = 1
	cfg.Level.Generate.Items = 2
	cfg.Bots.Count = 2
	cfg.Logging.Sinks = []string{"console", "ws"}
	return cfg
}

func quietLogger() telemetry.Logger {
	return telemetry.LoggerFunc(func(string, ...any) {})
}

func TestBuildPopulatesLevel(t *testing.T) {
	out := &syncBuffer{}
	s, err := Build(context.Background(), smallConfig(), Options{Stdout: out, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if got := len(s.Engine.Bots()); got != 2 {
		t.Fatalf("expected 2 bots, got %d", got)
	}
	if _, ok := s.Engine.Bot(1); !ok {
		t.Fatalf("expected bots numbered from 1")
	}
	if got := s.Level.NavEntities.Len(); got != 2 {
		t.Fatalf("expected 2 generated items, got %d", got)
	}
	if _, ok := s.Level.NavEntities.ByEntity(3); !ok {
		t.Fatalf("expected items numbered after the bots")
	}

	resp := httptest.NewRecorder()
	s.Handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected healthz to answer, got %d", resp.Code)
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	logged := out.String()
	if !strings.Contains(logged, "[lifecycle.bot_spawned]") || !strings.Contains(logged, "run="+s.ID) {
		t.Fatalf("expected spawn events tagged with the run id, got %q", logged)
	}
}

func TestMemorySinkServesEvents(t *testing.T) {
	withoutMemory, err := Build(context.Background(), smallConfig(), Options{Stdout: &syncBuffer{}, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	resp := httptest.NewRecorder()
	withoutMemory.Handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/events", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected /events to be off without the memory sink, got %d", resp.Code)
	}
	withoutMemory.Close(context.Background())

	cfg := smallConfig()
	cfg.Logging.Sinks = []string{"memory"}
	s, err := Build(context.Background(), cfg, Options{Stdout: &syncBuffer{}, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	// Closing drains the router into the sink.
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	resp = httptest.NewRecorder()
	s.Handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/events?type=lifecycle.bot_spawned", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected /events to answer, got %d", resp.Code)
	}
	if got := strings.Count(resp.Body.String(), `"lifecycle.bot_spawned"`); got != 2 {
		t.Fatalf("expected 2 spawn events, got %d in %s", got, resp.Body.String())
	}
}

func TestBuildRejectsMissingLevelFile(t *testing.T) {
	cfg := smallConfig()
	cfg.Level.File = filepath.Join(t.TempDir(), "missing.aas")
	if _, err := Build(context.Background(), cfg, Options{Stdout: &syncBuffer{}, Logger: quietLogger()}); err == nil {
		t.Fatalf("expected a missing level file to fail")
	}
}

func TestLoadConfigAppliesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bots.toml")
	if err := os.WriteFile(path, []byte("[bots]\ncount = 6\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvListenAddr, "127.0.0.1:9999")
	t.Setenv(EnvLogSinks, "json, zap")
	t.Setenv(EnvPprof, "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bots.Count != 6 {
		t.Fatalf("expected config file from %s, got %d bots", EnvConfig, cfg.Bots.Count)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9999" {
		t.Fatalf("expected listen override, got %q", cfg.Server.ListenAddr)
	}
	if !cfg.Server.Observability.EnablePprof {
		t.Fatalf("expected pprof to be enabled from %s", EnvPprof)
	}
	if len(cfg.Logging.Sinks) != 2 || cfg.Logging.Sinks[1] != "zap" {
		t.Fatalf("expected sinks override, got %v", cfg.Logging.Sinks)
	}

	t.Setenv(EnvLogSinks, "carrier-pigeon")
	if _, err := LoadConfig(""); !errors.Is(err, config.ErrUnknownSink) {
		t.Fatalf("expected unknown sink error, got %v", err)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := smallConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	s, err := Build(context.Background(), cfg, Options{Stdout: &syncBuffer{}, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer s.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}
