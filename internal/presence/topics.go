package presence

import (
	"time"

	"github.com/nfrund/evmarket/internal/pubsub"
)

// StatusChange is published when a user's online state flips.
type StatusChange struct {
	UserID uint      `json:"userId"`
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

var (
	// EventUserOnline is published when a user opens their first hub connection.
	EventUserOnline = pubsub.NewEvent[StatusChange](
		"presence.user.online",
		"Published when a user comes online",
	)

	// EventUserOffline is published when a user's last hub connection has been
	// gone for the debounce period.
	EventUserOffline = pubsub.NewEvent[StatusChange](
		"presence.user.offline",
		"Published when a user goes offline",
	)
)
