package sinks

import (
	"context"

	"arena-bots/server/logging"
)

// EventBroadcaster fans an event out to live subscribers.
type EventBroadcaster interface {
	BroadcastEvent(event logging.Event) int
}

// Websocket forwards events to debug stream subscribers. Events are dropped
// while nobody listens.
type Websocket struct {
	target EventBroadcaster
}

func NewWebsocket(target EventBroadcaster) *Websocket {
	return &Websocket{target: target}
}

func (s *Websocket) Write(event logging.Event) error {
	if s == nil || s.target == nil {
		return nil
	}
	s.target.BroadcastEvent(cloneForMemory(event))
	return nil
}

func (s *Websocket) Close(context.Context) error {
	return nil
}
