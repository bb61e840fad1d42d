package sinks

import (
	"testing"

	"arena-bots/server/logging"
)

func TestMemorySinkRingKeepsNewest(t *testing.T) {
	sink := NewMemorySink(3)
	for tick := uint64(1); tick <= 5; tick++ {
		sink.Write(logging.Event{Type: "simulation.tick_budget_overrun", Tick: tick})
	}
	events := sink.Events()
	if len(events) != 3 || events[0].Tick != 3 || events[2].Tick != 5 {
		t.Fatalf("expected ticks 3..5 oldest first, got %+v", events)
	}
	if got := sink.Counts()["simulation.tick_budget_overrun"]; got != 5 {
		t.Fatalf("expected counts to include evicted events, got %d", got)
	}

	sink.Reset()
	if len(sink.Events()) != 0 || len(sink.Counts()) != 0 {
		t.Fatalf("expected reset to clear events and counts")
	}
}

func TestMemorySinkFilters(t *testing.T) {
	sink := NewMemorySink(0)
	bot := logging.BotRef(2)
	sink.Write(logging.Event{Type: "navigation.aas_loaded", Category: logging.CategoryNavigation, Tick: 1})
	sink.Write(logging.Event{Type: "navigation.link_pool_exhausted", Category: logging.CategoryNavigation, Severity: logging.SeverityWarn, Tick: 2})
	sink.Write(logging.Event{Type: "goals.goal_set", Category: logging.CategoryGoals, Actor: bot, Tick: 3})
	sink.Write(logging.Event{Type: "goals.goal_set", Category: logging.CategoryGoals, Actor: logging.BotRef(4), Tick: 4})

	cases := []struct {
		name  string
		got   []logging.Event
		ticks []uint64
	}{
		{name: "category", got: sink.OfCategory(logging.CategoryNavigation), ticks: []uint64{1, 2}},
		{name: "type", got: sink.OfType("goals.goal_set", "navigation.aas_loaded"), ticks: []uint64{1, 3, 4}},
		{name: "actor", got: sink.ForActor(bot), ticks: []uint64{3}},
		{name: "warnings", got: sink.Warnings(), ticks: []uint64{2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if len(tc.got) != len(tc.ticks) {
				t.Fatalf("expected ticks %v, got %+v", tc.ticks, tc.got)
			}
			for i, e := range tc.got {
				if e.Tick != tc.ticks[i] {
					t.Fatalf("expected ticks %v, got tick %d at %d", tc.ticks, e.Tick, i)
				}
			}
		})
	}

	last, ok := sink.Last("goals.goal_set")
	if !ok || last.Tick != 4 {
		t.Fatalf("expected last goal_set at tick 4, got %+v %v", last, ok)
	}
	if _, ok := sink.Last("lifecycle.bot_removed"); ok {
		t.Fatalf("expected no bot_removed event")
	}
}

func TestMemorySinkClonesExtra(t *testing.T) {
	sink := NewMemorySink(4)
	extra := map[string]any{"area": 3}
	sink.Write(logging.Event{Type: "goals.goal_set", Extra: extra})
	extra["area"] = 9
	if got := sink.Events()[0].Extra["area"]; got != 3 {
		t.Fatalf("expected stored extra to be isolated, got %v", got)
	}
}
