package database

import (
	"context"
	"errors"
	"time"

	"github.com/nfrund/evmarket/internal/domain"
	"gorm.io/gorm"
)

// StoreOption configures the chat stores.
type StoreOption func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock replaces the clock used to stamp new rows.
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) { o.now = now }
}

func buildStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ConversationStore implements domain.ConversationRepository on gorm.
type ConversationStore struct {
	db  *Database
	now func() time.Time
}

var _ domain.ConversationRepository = (*ConversationStore)(nil)

// NewConversationStore creates a store backed by db.
func NewConversationStore(db *Database, opts ...StoreOption) *ConversationStore {
	o := buildStoreOptions(opts)
	return &ConversationStore{db: db, now: o.now}
}

func preloadMessages(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
}

// FindAll returns every conversation, newest first.
func (s *ConversationStore) FindAll(ctx context.Context) ([]domain.Conversation, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var out []domain.Conversation
	err := preloadMessages(s.db.db.WithContext(ctx)).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "failed to list conversations")
	}
	return out, nil
}

// FindByID returns the conversation with its messages.
func (s *ConversationStore) FindByID(ctx context.Context, id uint) (*domain.Conversation, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var c domain.Conversation
	if err := preloadMessages(s.db.db.WithContext(ctx)).First(&c, id).Error; err != nil {
		return nil, translate(err, "failed to find conversation")
	}
	return &c, nil
}

// FindByParticipants looks up the conversation for the unordered pair.
func (s *ConversationStore) FindByParticipants(ctx context.Context, userA, userB uint) (*domain.Conversation, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var c domain.Conversation
	err := preloadMessages(s.db.db.WithContext(ctx)).
		Where("pair_key = ?", domain.PairKey(userA, userB)).
		First(&c).Error
	if err != nil {
		return nil, translate(err, "failed to find conversation by participants")
	}
	return &c, nil
}

// FindByParticipant lists the conversations userID takes part in.
func (s *ConversationStore) FindByParticipant(ctx context.Context, userID uint) ([]domain.Conversation, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var out []domain.Conversation
	err := preloadMessages(s.db.db.WithContext(ctx)).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "failed to list conversations by participant")
	}
	return out, nil
}

// Create inserts a conversation for the pair. It does not check for an
// existing one first; the unique pair key turns a duplicate into ErrConflict.
func (s *ConversationStore) Create(ctx context.Context, userA, userB uint) (*domain.Conversation, error) {
	ctx, cancel := s.db.executeContext(ctx)
	defer cancel()

	c := domain.Conversation{
		ParticipantA: userA,
		ParticipantB: userB,
		PairKey:      domain.PairKey(userA, userB),
		CreatedAt:    s.now(),
	}
	if err := s.db.db.WithContext(ctx).Omit("Messages").Create(&c).Error; err != nil {
		return nil, translate(err, "failed to create conversation")
	}
	return &c, nil
}

// Delete removes the conversation and its messages in one transaction.
func (s *ConversationStore) Delete(ctx context.Context, id uint) (bool, error) {
	ctx, cancel := s.db.executeContext(ctx)
	defer cancel()

	var removed bool
	err := s.db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Conversation{}, id)
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, translate(err, "failed to delete conversation")
	}
	return removed, nil
}

// ExistsByID reports whether a conversation with id exists.
func (s *ConversationStore) ExistsByID(ctx context.Context, id uint) (bool, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var n int64
	if err := s.db.db.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, translate(err, "failed to check conversation")
	}
	return n > 0, nil
}

// ExistsBetween reports whether the pair already has a conversation.
func (s *ConversationStore) ExistsBetween(ctx context.Context, userA, userB uint) (bool, error) {
	ctx, cancel := s.db.queryContext(ctx)
	defer cancel()

	var n int64
	err := s.db.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("pair_key = ?", domain.PairKey(userA, userB)).
		Count(&n).Error
	if err != nil {
		return false, translate(err, "failed to check conversation pair")
	}
	return n > 0, nil
}

// conversationExists checks inside an open transaction.
func conversationExists(tx *gorm.DB, id uint) error {
	var c domain.Conversation
	err := tx.Select("id").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Errorf(domain.ErrNotFound, "chat %d not found", id)
	}
	return err
}
