package database

import (
	"context"
	"time"

	"github.com/nfrund/evmarket/internal/domain"
	"gorm.io/gorm"
)

// MessageStore implements domain.MessageRepository on gorm.
type MessageStore struct {
	db  *Database
	now func() time.Time
}

var _ domain.MessageRepository = (*MessageStore)(nil)

// NewMessageStore creates a store backed by db.
func NewMessageStore(db *Database, opts ...StoreOption) *MessageStore {
	o := buildStoreOptions(opts)
	return &MessageStore{db: db, now: o.now}
}

// unreadFor scopes a query to messages in userID's conversations that
// someone else sent and userID has not read.
func unreadFor(userID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Joins("JOIN conversations ON conversations.id = messages.conversation_id").
			Where("(conversations.participant_a = ? OR conversations.participant_b = ?)", userID, userID).
			Where("messages.is_read = ?", false).
			Where("messages.sender_id <> ?", userID)
	}
}

// FindByID returns the message with id.
func (s *MessageStore) FindByID(ctx context.Context, id uint) (*domain.Message, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var m domain.Message
	if err := s.db.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err, "failed to find message")
	}
	return &m, nil
}

// ListByConversation returns the history of a conversation, oldest first.
func (s *MessageStore) ListByConversation(ctx context.Context, conversationID uint) ([]domain.Message, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var out []domain.Message
	err := s.db.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "failed to list conversation messages")
	}
	return out, nil
}

// ListBySender returns messages authored by senderID, newest first.
func (s *MessageStore) ListBySender(ctx context.Context, senderID uint) ([]domain.Message, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var out []domain.Message
	err := s.db.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "failed to list sent messages")
	}
	return out, nil
}

// ListUnreadFor returns the unread messages addressed to userID, newest first.
func (s *MessageStore) ListUnreadFor(ctx context.Context, userID uint) ([]domain.Message, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var out []domain.Message
	err := s.db.db.WithContext(ctx).
		Select("messages.*").
		Scopes(unreadFor(userID)).
		Order("messages.created_at DESC, messages.id DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "failed to list unread messages")
	}
	return out, nil
}

// Create stores a new unread message. The conversation must exist.
func (s *MessageStore) Create(ctx context.Context, conversationID, senderID uint, content string) (*domain.Message, error) {
	ctx, cancel := s.db.executeContext(ctx)
	defer cancel()

	m := domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		IsRead:         false,
		CreatedAt:      s.now(),
	}
	err := s.db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := conversationExists(tx, conversationID); err != nil {
			return err
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return nil, translate(err, "failed to create message")
	}
	return &m, nil
}

// MarkRead flags a message as read. It reports false when no such message exists.
func (s *MessageStore) MarkRead(ctx context.Context, id uint) (bool, error) {
	ctx, cancel := s.db.executeContext(ctx)
	defer cancel()

	var n int64
	err := s.db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Message{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return tx.Model(&domain.Message{}).Where("id = ?", id).Update("is_read", true).Error
	})
	if err != nil {
		return false, translate(err, "failed to mark message read")
	}
	return n > 0, nil
}

// MarkAllReadInConversation marks every unread message in the conversation
// not sent by requesterID as read and returns how many rows changed.
func (s *MessageStore) MarkAllReadInConversation(ctx context.Context, conversationID, requesterID uint) (int64, error) {
	ctx, cancel := s.db.executeContext(ctx)
	defer cancel()

	res := s.db.db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, requesterID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, translate(res.Error, "failed to mark conversation read")
	}
	return res.RowsAffected, nil
}

// Delete removes a message.
func (s *MessageStore) Delete(ctx context.Context, id uint) (bool, error) {
	ctx, cancel := s.db.executeContext(ctx)
	defer cancel()

	res := s.db.db.WithContext(ctx).Delete(&domain.Message{}, id)
	if res.Error != nil {
		return false, translate(res.Error, "failed to delete message")
	}
	return res.RowsAffected > 0, nil
}

// CountUnreadFor counts what ListUnreadFor would return.
func (s *MessageStore) CountUnreadFor(ctx context.Context, userID uint) (int64, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var n int64
	err := s.db.db.WithContext(ctx).Model(&domain.Message{}).
		Scopes(unreadFor(userID)).
		Count(&n).Error
	if err != nil {
		return 0, translate(err, "failed to count unread messages")
	}
	return n, nil
}

// CountUnreadInConversation counts unread messages for userID in one conversation.
func (s *MessageStore) CountUnreadInConversation(ctx context.Context, conversationID, userID uint) (int64, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var n int64
	err := s.db.db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, userID, false).
		Count(&n).Error
	if err != nil {
		return 0, translate(err, "failed to count unread conversation messages")
	}
	return n, nil
}
