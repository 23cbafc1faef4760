package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairKeyIsUnordered(t *testing.T) {
	assert.Equal(t, "3:7", PairKey(3, 7))
	assert.Equal(t, PairKey(3, 7), PairKey(7, 3))
}

func TestConversationHelpers(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &Conversation{
		ID:           1,
		ParticipantA: 10,
		ParticipantB: 20,
		Messages: []Message{
			{ID: 1, SenderID: 10, Content: "hi", CreatedAt: base},
			{ID: 2, SenderID: 20, Content: "hello", CreatedAt: base.Add(time.Second), IsRead: true},
			{ID: 3, SenderID: 10, Content: "still there?", CreatedAt: base.Add(2 * time.Second)},
		},
	}

	assert.True(t, c.HasParticipant(10))
	assert.True(t, c.HasParticipant(20))
	assert.False(t, c.HasParticipant(30))
	assert.Equal(t, uint(20), c.OtherParticipant(10))
	assert.Equal(t, uint(10), c.OtherParticipant(20))

	last, ok := c.LastMessage()
	assert.True(t, ok)
	assert.Equal(t, uint(3), last.ID)

	assert.Equal(t, 2, c.UnreadCountFor(20))
	assert.Equal(t, 0, c.UnreadCountFor(10))

	_, ok = (&Conversation{}).LastMessage()
	assert.False(t, ok)
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(ErrForbidden, "you are not a participant of chat %d", 4)
	assert.Equal(t, "you are not a participant of chat 4", err.Error())
	assert.ErrorIs(t, err, ErrForbidden)

	wrapped := fmt.Errorf("send message: %w", err)
	assert.Equal(t, ErrForbidden, Kind(wrapped))
	assert.Nil(t, Kind(errors.New("boom")))
}
