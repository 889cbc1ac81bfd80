// Package relay forwards signaling and chat events from one user to the live
// connection of another. Delivery is best effort: an offline recipient is a
// normal outcome, not an error.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
)

// ErrUnknownEvent is returned by Dispatch for events without a route
var ErrUnknownEvent = errors.New("unknown event")

// Directory resolves a user to their live connection
type Directory interface {
	Lookup(userID uuid.UUID) (string, bool)
}

// Sender writes a frame to a connection. It returns false when the
// connection is gone or cannot take more frames.
type Sender interface {
	Deliver(connID string, frame []byte) bool
}

// Frame is the envelope of every websocket message in both directions
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Relay looks recipients up in a Directory and hands frames to a Sender
type Relay struct {
	directory Directory
	sender    Sender
}

// New creates a Relay
func New(directory Directory, sender Sender) *Relay {
	return &Relay{directory: directory, sender: sender}
}

// Relay delivers payload to recipientID tagged with event, or does nothing
// when the recipient has no live connection.
func (r *Relay) Relay(ctx context.Context, event string, senderID, recipientID uuid.UUID, payload interface{}) {
	connID, ok := r.directory.Lookup(recipientID)
	if !ok {
		metrics.RelayDroppedTotal.WithLabelValues(event, "offline").Inc()
		logger.FromContext(ctx).Debug("Recipient offline, event dropped",
			zap.String("event", event),
			zap.String("from", senderID.String()),
			zap.String("to", recipientID.String()))
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to encode relay payload",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return
	}

	if !r.sender.Deliver(connID, frame) {
		metrics.RelayDroppedTotal.WithLabelValues(event, "undeliverable").Inc()
		return
	}
	metrics.RelayDeliveredTotal.WithLabelValues(event).Inc()
}

// Dispatch routes one inbound client event from senderID. It fails only for
// unknown events and payloads without a valid recipient; whether the
// recipient was online is never reported.
func (r *Relay) Dispatch(ctx context.Context, senderID uuid.UUID, event string, raw json.RawMessage) error {
	rt, ok := routes[event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return fmt.Errorf("invalid %s payload: expected an object", event)
	}

	to, _ := data["to"].(string)
	recipientID, err := uuid.Parse(to)
	if err != nil {
		return fmt.Errorf("invalid %s payload: missing or malformed recipient", event)
	}

	r.Relay(ctx, rt.outbound, senderID, recipientID, rt.shape(senderID.String(), data))
	return nil
}
