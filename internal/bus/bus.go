// Package bus defines the broadcast channel shared by all windows of one application instance.
package bus

import (
	"context"
	"errors"
)

// MessageType is the kind of leadership message
type MessageType string

const (
	// RequestLeader is sent once by a starting instance to discover an existing leader
	RequestLeader MessageType = "RequestLeader"
	// LeaderHeartbeat is sent periodically by the current leader
	LeaderHeartbeat MessageType = "LeaderHeartbeat"
	// LeaderClaim is broadcast by an instance asserting leadership
	LeaderClaim MessageType = "LeaderClaim"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus
var ErrClosed = errors.New("bus is closed")

// Message is the only shape carried by the bus
type Message struct {
	Type       MessageType `json:"type"`
	InstanceID string      `json:"instanceId"`
	Timestamp  int64       `json:"timestamp"` // Unix milliseconds
}

// Handler receives messages; it runs on the bus delivery goroutine and must not block for long
type Handler func(Message)

// Subscription is an active subscription
type Subscription interface {
	Close() error
}

// Bus is a publish/subscribe channel. Every subscriber receives every message,
// including messages published by itself. Delivery is best-effort.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, handler Handler) (Subscription, error)
}
