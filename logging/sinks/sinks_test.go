package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"arena-bots/server/logging"
)

func TestConsoleSinkLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	event := logging.Event{
		Type:     "goals.goal_set",
		Tick:     12,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGoals,
		Actor:    logging.BotRef(3),
		Targets:  []logging.EntityRef{{ID: "51", Kind: logging.EntityKindNav}},
		Extra:    map[string]any{"zone": "b", "region": "eu"},
		TraceID:  "run-1",
		Payload:  map[string]int{"area": 7},
	}
	if err := sink.Write(event); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := buf.String()
	for _, want := range []string{
		"[goals.goal_set] tick=12 goals/info actor=bot:3",
		"run=run-1",
		"targets=nav_entity:51",
		"extra=region=eu,zone=b",
		`payload={"area":7}`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONSinkBatches(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, logging.JSONConfig{MaxBatch: 2, FlushInterval: time.Hour})
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	write := func(tick uint64) {
		t.Helper()
		if err := sink.Write(logging.Event{Type: "simulation.tick", Tick: tick, Time: at, Severity: logging.SeverityWarn}); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	write(1)
	if buf.Len() != 0 {
		t.Fatalf("expected first event to stay buffered, got %q", buf.String())
	}
	write(2)
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("expected 2 lines after a full batch, got %d", got)
	}
	write(3)
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines after close, got %d", len(lines))
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded["severity"] != "warn" || decoded["tick"] != float64(3) {
		t.Fatalf("expected warn severity at tick 3, got %v", decoded)
	}
	if _, ok := decoded["payload"]; ok {
		t.Fatalf("expected empty payload to be omitted, got %v", decoded)
	}
}

func TestJSONSinkFlushesEveryEventWithoutInterval(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, logging.JSONConfig{MaxBatch: 32})
	if err := sink.Write(logging.Event{Type: "lifecycle.bot_spawned"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"type":"lifecycle.bot_spawned"`) {
		t.Fatalf("expected immediate flush, got %q", buf.String())
	}
}
