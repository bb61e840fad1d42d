package network

import (
	"context"

	"arena-bots/server/logging"
)

const (
	// EventSubscriberConnected is emitted when a debug stream client attaches.
	EventSubscriberConnected logging.EventType = "network.subscriber_connected"
	// EventSubscriberDisconnected is emitted when a debug stream client goes away.
	EventSubscriberDisconnected logging.EventType = "network.subscriber_disconnected"
)

// SubscriberPayload describes a debug stream client.
type SubscriberPayload struct {
	Remote      string `json:"remote"`
	Subscribers int    `json:"subscribers"`
	Reason      string `json:"reason,omitempty"`
}

// SubscriberConnected publishes an info event for a new debug stream client.
func SubscriberConnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SubscriberPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberConnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	})
}

// SubscriberDisconnected publishes an info event when a debug stream client leaves.
func SubscriberDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SubscriberPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	})
}
