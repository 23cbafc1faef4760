package domain

import (
	"context"
	"time"
)

// Message is a single authored entry in a conversation.
type Message struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	ConversationID uint      `gorm:"column:conversation_id;not null;index" json:"chatId"`
	SenderID       uint      `gorm:"column:sender_id;not null;index" json:"senderId"`
	Content        string    `gorm:"column:content;type:text;not null" json:"content"`
	IsRead         bool      `gorm:"column:is_read;not null;default:false" json:"isRead"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index" json:"createdAt"`
}

// TableName pins the table name used by gorm.
func (Message) TableName() string { return "messages" }

// ConversationRepository defines the storage contract for conversations.
// Lookups that find nothing return an error wrapping ErrNotFound.
type ConversationRepository interface {
	FindAll(ctx context.Context) ([]Conversation, error)
	FindByID(ctx context.Context, id uint) (*Conversation, error)
	FindByParticipants(ctx context.Context, userA, userB uint) (*Conversation, error)
	FindByParticipant(ctx context.Context, userID uint) ([]Conversation, error)
	Create(ctx context.Context, userA, userB uint) (*Conversation, error)
	Delete(ctx context.Context, id uint) (bool, error)
	ExistsByID(ctx context.Context, id uint) (bool, error)
	ExistsBetween(ctx context.Context, userA, userB uint) (bool, error)
}

// MessageRepository defines the storage contract for messages.
type MessageRepository interface {
	FindByID(ctx context.Context, id uint) (*Message, error)
	ListByConversation(ctx context.Context, conversationID uint) ([]Message, error)
	ListBySender(ctx context.Context, senderID uint) ([]Message, error)
	ListUnreadFor(ctx context.Context, userID uint) ([]Message, error)
	Create(ctx context.Context, conversationID, senderID uint, content string) (*Message, error)
	MarkRead(ctx context.Context, id uint) (bool, error)
	MarkAllReadInConversation(ctx context.Context, conversationID, requesterID uint) (int64, error)
	Delete(ctx context.Context, id uint) (bool, error)
	CountUnreadFor(ctx context.Context, userID uint) (int64, error)
	CountUnreadInConversation(ctx context.Context, conversationID, userID uint) (int64, error)
}
