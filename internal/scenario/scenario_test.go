package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arena-bots/server/logging"
	"arena-bots/server/logging/lifecycle"
	"arena-bots/server/logging/simulation"
)

type recorder struct {
	events []logging.Event
}

func (r *recorder) Publish(_ context.Context, event logging.Event) {
	r.events = append(r.events, event)
}

const flatArena = `
name: flat
seed: duel
ticks: 40
level:
  generate:
    size: 4
    levels: 1
    items: 2
  generated_items: true
bots:
  - id: 1
    origin: [96, 96, 24]
  - id: 2
    name: wanderer
items:
  - entity_id: 50
    name: mega
    kind: health_mega
    origin: [672, 672, 16]
    respawn: 30s
`

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(flatArena))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if sc.Name != "flat" || sc.Ticks != 40 || len(sc.Bots) != 2 {
		t.Fatalf("unexpected scenario %+v", sc)
	}
	if sc.Level.Generate == nil || sc.Level.Generate.Size != 4 || sc.Level.Generate.CellSide != 192 {
		t.Fatalf("expected generator defaults to fill unset fields, got %+v", sc.Level.Generate)
	}
	if sc.Items[0].Respawn != 30*time.Second {
		t.Fatalf("expected 30s respawn, got %v", sc.Items[0].Respawn)
	}
}

func TestParseDefaults(t *testing.T) {
	sc, err := Parse([]byte("name: empty\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if sc.Ticks != defaultTicks || sc.Seed == "" || sc.Level.Generate == nil {
		t.Fatalf("expected defaults, got %+v", sc)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown field", data: "name: x\nrounds: 3\n"},
		{name: "bot without id", data: "bots:\n  - name: nobody\n"},
		{name: "short origin", data: "bots:\n  - id: 1\n    origin: [1, 2]\n"},
		{name: "item without origin", data: "items:\n  - entity_id: 4\n"},
		{name: "file and generator", data: "level:\n  file: dm1.aas\n  generate:\n    size: 2\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.data)); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
	if _, err := Parse([]byte("bots:\n  - name: nobody\n")); !errors.Is(err, ErrInvalidScenario) {
		t.Fatalf("expected invalid scenario error, got %v", err)
	}
}

func TestLoadResolvesLevelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctf.yaml")
	if err := os.WriteFile(path, []byte("level:\n  file: maps/ctf1.aas\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if sc.Name != "ctf" {
		t.Fatalf("expected name from file, got %q", sc.Name)
	}
	if want := filepath.Join(dir, "maps", "ctf1.aas"); sc.Level.File != want {
		t.Fatalf("expected level file %s, got %s", want, sc.Level.File)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestPlay(t *testing.T) {
	sc, err := Parse([]byte(flatArena))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	pub := &recorder{}
	result, err := Play(context.Background(), sc, Options{Publisher: pub})
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if result.RunID == "" || result.Totals.Ticks != 40 || len(result.Bots) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Bots[1].Name != "wanderer" {
		t.Fatalf("expected named bot, got %+v", result.Bots[1])
	}

	var spawned, summaries int
	for _, e := range pub.events {
		if e.TraceID != result.RunID {
			t.Fatalf("expected every event to carry the run id, got %q on %s", e.TraceID, e.Type)
		}
		switch e.Type {
		case lifecycle.EventBotSpawned:
			spawned++
		case simulation.EventRunCompleted:
			summaries++
		}
	}
	if spawned != 2 || summaries != 1 {
		t.Fatalf("expected 2 spawns and 1 summary, got %d and %d", spawned, summaries)
	}
}

func TestBuildAddsGeneratedItems(t *testing.T) {
	sc, err := Parse([]byte(flatArena))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	run, err := Build(context.Background(), sc, Options{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer run.Close()
	if got := run.Level.NavEntities.Len(); got != 3 {
		t.Fatalf("expected 1 scripted and 2 generated items, got %d", got)
	}
	if _, ok := run.Level.NavEntities.ByEntity(51); !ok {
		t.Fatalf("expected generated items numbered after the scripted ones")
	}
}
