package sinks

import (
	"context"
	"testing"

	"arena-bots/server/logging"
)

type fakeBroadcaster struct {
	events []logging.Event
}

func (f *fakeBroadcaster) BroadcastEvent(event logging.Event) int {
	f.events = append(f.events, event)
	return 1
}

func TestWebsocketSinkForwardsCopies(t *testing.T) {
	target := &fakeBroadcaster{}
	sink := NewWebsocket(target)
	extra := map[string]any{"map": "dm6"}

	if err := sink.Write(logging.Event{Type: "goals.reached", Extra: extra}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	extra["map"] = "dm4"

	if len(target.events) != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", len(target.events))
	}
	if got := target.events[0].Extra["map"]; got != "dm6" {
		t.Fatalf("expected forwarded extras to be copied, got %v", got)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestWebsocketSinkWithoutTarget(t *testing.T) {
	if err := NewWebsocket(nil).Write(logging.Event{Type: "x"}); err != nil {
		t.Fatalf("expected nil target to be ignored, got %v", err)
	}
}
