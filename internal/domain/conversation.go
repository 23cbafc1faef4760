package domain

import (
	"fmt"
	"time"
)

// Conversation is a persisted 1:1 chat between two marketplace users. The
// participant ids reference the Users table, which is owned outside this
// service.
type Conversation struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	ParticipantA uint      `gorm:"column:participant_a;not null;index" json:"user1Id"`
	ParticipantB uint      `gorm:"column:participant_b;not null;index" json:"user2Id"`
	PairKey      string    `gorm:"column:pair_key;not null;uniqueIndex" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index" json:"createdAt"`

	// Messages is loaded in chronological order by the store.
	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName pins the table name used by gorm.
func (Conversation) TableName() string { return "conversations" }

// PairKey returns the canonical key for the unordered pair {a, b}.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// LastMessage returns the most recent loaded message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	last := c.Messages[0]
	for _, m := range c.Messages[1:] {
		if m.CreatedAt.After(last.CreatedAt) || (m.CreatedAt.Equal(last.CreatedAt) && m.ID > last.ID) {
			last = m
		}
	}
	return last, true
}

// UnreadCountFor counts loaded messages that userID has not read yet.
func (c *Conversation) UnreadCountFor(userID uint) int {
	n := 0
	for _, m := range c.Messages {
		if !m.IsRead && m.SenderID != userID {
			n++
		}
	}
	return n
}
