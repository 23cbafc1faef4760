package chat

import (
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/pubsub"
)

// EventMessageCreated carries a persisted message from the service to the hub relay.
var EventMessageCreated = pubsub.NewEvent[domain.Message](
	"chat.message.created",
	"Published after a chat message is stored; relayed to the conversation's hub group",
)
