package chat

import (
	"time"

	"github.com/nfrund/evmarket/internal/domain"
)

// CreateChatRequest is the payload of POST /chats.
type CreateChatRequest struct {
	User1ID uint `json:"user1Id" validate:"required"`
	User2ID uint `json:"user2Id" validate:"required"`
}

// SendMessageRequest is the payload of POST /messages.
type SendMessageRequest struct {
	ChatID   uint   `json:"chatId" validate:"required"`
	SenderID uint   `json:"senderId" validate:"required"`
	Content  string `json:"content"`
}

// ChatView is a conversation as seen by one of its participants.
type ChatView struct {
	ID          uint             `json:"id"`
	User1ID     uint             `json:"user1Id"`
	User2ID     uint             `json:"user2Id"`
	CreatedAt   time.Time        `json:"createdAt"`
	OtherUserID uint             `json:"otherUserId"`
	Online      bool             `json:"online"`
	UnreadCount int              `json:"unreadCount"`
	LastMessage *domain.Message  `json:"lastMessage,omitempty"`
	Messages    []domain.Message `json:"messages,omitempty"`
}

// MarkAllReadResult reports how many messages a bulk mark-read changed.
type MarkAllReadResult struct {
	ChatID  uint  `json:"chatId"`
	Updated int64 `json:"updated"`
}

// UnreadCount is the body of GET /messages/unread-count.
type UnreadCount struct {
	Count int64 `json:"count"`
}

// newChatView projects c for viewer. Messages are included only when
// withMessages is set.
func newChatView(c *domain.Conversation, viewer uint, online bool, withMessages bool) ChatView {
	v := ChatView{
		ID:          c.ID,
		User1ID:     c.ParticipantA,
		User2ID:     c.ParticipantB,
		CreatedAt:   c.CreatedAt,
		OtherUserID: c.OtherParticipant(viewer),
		Online:      online,
		UnreadCount: c.UnreadCountFor(viewer),
	}
	if last, ok := c.LastMessage(); ok {
		v.LastMessage = &last
	}
	if withMessages {
		v.Messages = c.Messages
	}
	return v
}
