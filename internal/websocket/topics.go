package websocket

import (
	"time"

	"github.com/nfrund/evmarket/internal/pubsub"
)

// ConnectionEvent describes a hub connection lifecycle change.
type ConnectionEvent struct {
	ConnectionID string    `json:"connectionId"`
	UserID       uint      `json:"userId"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

var (
	// EventConnectionOpened is published once a hub connection is registered.
	EventConnectionOpened = pubsub.NewEvent[ConnectionEvent](
		"hub.connection.opened",
		"Published when an authenticated client opens a hub connection",
	)

	// EventConnectionClosed is published after a hub connection is torn down.
	EventConnectionClosed = pubsub.NewEvent[ConnectionEvent](
		"hub.connection.closed",
		"Published when a hub connection closes, with the close reason",
	)
)
