package logging_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arena-bots/server/logging"
)

type recordingSink struct {
	mu     sync.Mutex
	events []logging.Event
	err    error
}

func (s *recordingSink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close(context.Context) error { return nil }

func (s *recordingSink) types() []logging.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]logging.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func closeRouter(t *testing.T, router *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestRouterCategorySeverity(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityInfo
	cfg.CategorySeverity = map[string]logging.Severity{logging.CategoryGoals: logging.SeverityWarn}
	sink := &recordingSink{}
	router, err := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "rec", Sink: sink}})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	ctx := context.Background()
	router.Publish(ctx, logging.Event{Type: "goal_set", Category: logging.CategoryGoals, Severity: logging.SeverityInfo})
	router.Publish(ctx, logging.Event{Type: "goal_stuck", Category: logging.CategoryGoals, Severity: logging.SeverityWarn})
	router.Publish(ctx, logging.Event{Type: "aas_loaded", Category: logging.CategoryNavigation, Severity: logging.SeverityInfo})
	router.Publish(ctx, logging.Event{Type: "debug_noise", Category: logging.CategoryNavigation, Severity: logging.SeverityDebug})
	closeRouter(t, router)

	got := sink.types()
	if len(got) != 2 || got[0] != "goal_stuck" || got[1] != "aas_loaded" {
		t.Fatalf("expected [goal_stuck aas_loaded], got %v", got)
	}
	stats := router.Stats()
	if stats.EventsTotal != 2 || stats.FilteredTotal != 2 {
		t.Fatalf("expected 2 forwarded and 2 filtered, got %+v", stats)
	}
	if stats.Sinks["rec"].Written != 2 {
		t.Fatalf("expected rec sink to count 2 writes, got %+v", stats.Sinks["rec"])
	}
}

func TestRouterAddsFieldsWithoutOverwriting(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"region": "eu", "run": "cfg"}
	sink := &recordingSink{}
	router, err := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "rec", Sink: sink}})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "bot_spawned", Extra: map[string]any{"run": "event"}})
	closeRouter(t, router)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	extra := sink.events[0].Extra
	if extra["region"] != "eu" || extra["run"] != "event" {
		t.Fatalf("expected region=eu run=event, got %v", extra)
	}
	if sink.events[0].Time.IsZero() {
		t.Fatalf("expected router to stamp the event time")
	}
}

func TestRouterCountsSinkFailures(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	router, err := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{{Name: "broken", Sink: sink}})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "bot_spawned"})
	closeRouter(t, router)

	if got := router.Stats().Sinks["broken"]; got.Failed != 1 || got.Written != 0 {
		t.Fatalf("expected one failed write, got %+v", got)
	}
}

func TestRouterIgnoresUntypedAndClosed(t *testing.T) {
	sink := &recordingSink{}
	router, err := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{{Name: "rec", Sink: sink}})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	router.Publish(context.Background(), logging.Event{})
	closeRouter(t, router)
	router.Publish(context.Background(), logging.Event{Type: "late"})

	if got := sink.types(); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
}
