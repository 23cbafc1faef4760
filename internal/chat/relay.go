package chat

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/hub"
	"github.com/nfrund/evmarket/internal/pubsub"
)

// Broadcaster delivers an event to the members of a hub group.
type Broadcaster interface {
	Publish(group, event string, data any) int
}

// Relay forwards stored messages from the bus to the conversation's hub group.
type Relay struct {
	subscriber pubsub.Subscriber
	hub        Broadcaster
	logger     *slog.Logger
}

// NewRelay creates a relay from the bus to hub.
func NewRelay(subscriber pubsub.Subscriber, hub Broadcaster) *Relay {
	return &Relay{
		subscriber: subscriber,
		hub:        hub,
		logger:     slog.Default().With("component", "chat_relay"),
	}
}

// Start subscribes to message events until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	if err := pubsub.Subscribe(ctx, r.subscriber, EventMessageCreated, r.handleMessageCreated); err != nil {
		return err
	}
	r.logger.Info("Chat relay started", "topic", EventMessageCreated.Name())
	return nil
}

// GroupName returns the hub group that carries a conversation's events.
func GroupName(chatID uint) string {
	return strconv.FormatUint(uint64(chatID), 10)
}

func (r *Relay) handleMessageCreated(ctx context.Context, m domain.Message) error {
	group := GroupName(m.ConversationID)
	delivered := r.hub.Publish(group, hub.EventReceiveMessage, m)
	r.logger.Debug("Relayed message to hub group", "group", group, "message_id", m.ID, "delivered", delivered)
	return nil
}
