package chat

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/metrics"
	"github.com/nfrund/evmarket/internal/pubsub"
)

// DefaultMaxMessageLength bounds message content in runes.
const DefaultMaxMessageLength = 2000

// OnlineChecker reports whether a user holds a live hub connection.
type OnlineChecker interface {
	IsOnline(userID uint) bool
}

// Service enforces chat authorization and orchestrates the repositories and
// the message bus. Every method takes the authenticated caller.
type Service struct {
	chats     domain.ConversationRepository
	messages  domain.MessageRepository
	publisher pubsub.Publisher
	presence  OnlineChecker
	maxLength int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxMessageLength overrides DefaultMaxMessageLength.
func WithMaxMessageLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// WithPresence enables the online flag on chat views.
func WithPresence(p OnlineChecker) Option {
	return func(s *Service) { s.presence = p }
}

// NewService creates a chat service.
func NewService(chats domain.ConversationRepository, messages domain.MessageRepository, publisher pubsub.Publisher, opts ...Option) *Service {
	s := &Service{
		chats:     chats,
		messages:  messages,
		publisher: publisher,
		maxLength: DefaultMaxMessageLength,
		logger:    slog.Default().With("service", "chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListChats returns the caller's conversations, newest first.
func (s *Service) ListChats(ctx context.Context, caller domain.Identity) ([]ChatView, error) {
	chats, err := s.chats.FindByParticipant(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]ChatView, 0, len(chats))
	for i := range chats {
		out = append(out, s.view(&chats[i], caller.UserID, false))
	}
	return out, nil
}

// GetChat returns a conversation with its full history.
func (s *Service) GetChat(ctx context.Context, caller domain.Identity, chatID uint) (ChatView, error) {
	c, err := s.participantChat(ctx, caller, chatID)
	if err != nil {
		return ChatView{}, err
	}
	return s.view(c, caller.UserID, true), nil
}

// CreateChat creates a conversation between user1 and user2. The caller must
// be one of them. An existing conversation for the pair is a conflict.
func (s *Service) CreateChat(ctx context.Context, caller domain.Identity, user1, user2 uint) (ChatView, error) {
	if caller.UserID != user1 && caller.UserID != user2 {
		return ChatView{}, domain.Errorf(domain.ErrForbidden, "you can only create chats you take part in")
	}
	if user1 == user2 {
		return ChatView{}, domain.Errorf(domain.ErrInvalidInput, "cannot start a chat with yourself")
	}

	exists, err := s.chats.ExistsBetween(ctx, user1, user2)
	if err != nil {
		return ChatView{}, err
	}
	if exists {
		return ChatView{}, domain.Errorf(domain.ErrConflict, "a chat between users %d and %d already exists", user1, user2)
	}

	c, err := s.chats.Create(ctx, user1, user2)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return ChatView{}, domain.Errorf(domain.ErrConflict, "a chat between users %d and %d already exists", user1, user2)
		}
		return ChatView{}, err
	}
	metrics.ChatsCreated.Inc()
	s.logger.InfoContext(ctx, "Chat created", "chat_id", c.ID, "user1_id", user1, "user2_id", user2)
	return s.view(c, caller.UserID, false), nil
}

// StartChat returns the conversation between the caller and other, creating
// it when it does not exist yet. Repeated calls return the same conversation.
func (s *Service) StartChat(ctx context.Context, caller domain.Identity, other uint) (ChatView, error) {
	if other == 0 {
		return ChatView{}, domain.Errorf(domain.ErrInvalidInput, "a valid user id is required")
	}
	if other == caller.UserID {
		return ChatView{}, domain.Errorf(domain.ErrInvalidInput, "cannot start a chat with yourself")
	}

	c, err := s.chats.FindByParticipants(ctx, caller.UserID, other)
	if err == nil {
		return s.view(c, caller.UserID, false), nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return ChatView{}, err
	}

	c, err = s.chats.Create(ctx, caller.UserID, other)
	switch {
	case err == nil:
		metrics.ChatsCreated.Inc()
		s.logger.InfoContext(ctx, "Chat started", "chat_id", c.ID, "user_id", caller.UserID, "other_user_id", other)
	case errors.Is(err, domain.ErrConflict):
		// Lost a race with a concurrent start for the same pair.
		c, err = s.chats.FindByParticipants(ctx, caller.UserID, other)
		if err != nil {
			return ChatView{}, err
		}
	default:
		return ChatView{}, err
	}
	return s.view(c, caller.UserID, false), nil
}

// DeleteChat removes a conversation and all of its messages.
func (s *Service) DeleteChat(ctx context.Context, caller domain.Identity, chatID uint) error {
	if _, err := s.participantChat(ctx, caller, chatID); err != nil {
		return err
	}
	removed, err := s.chats.Delete(ctx, chatID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.Errorf(domain.ErrNotFound, "chat %d not found", chatID)
	}
	s.logger.InfoContext(ctx, "Chat deleted", "chat_id", chatID, "user_id", caller.UserID)
	return nil
}

// ListMessages returns the messages the caller has sent, newest first.
func (s *Service) ListMessages(ctx context.Context, caller domain.Identity) ([]domain.Message, error) {
	return s.messages.ListBySender(ctx, caller.UserID)
}

// GetMessage returns one message from a conversation the caller takes part in.
func (s *Service) GetMessage(ctx context.Context, caller domain.Identity, messageID uint) (*domain.Message, error) {
	m, _, err := s.participantMessage(ctx, caller, messageID)
	return m, err
}

// ListChatMessages returns a conversation's history, oldest first.
func (s *Service) ListChatMessages(ctx context.Context, caller domain.Identity, chatID uint) ([]domain.Message, error) {
	if _, err := s.participantChat(ctx, caller, chatID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, chatID)
}

// ListUnread returns the messages waiting for the caller, newest first.
func (s *Service) ListUnread(ctx context.Context, caller domain.Identity) ([]domain.Message, error) {
	return s.messages.ListUnreadFor(ctx, caller.UserID)
}

// CountUnread counts the messages waiting for the caller.
func (s *Service) CountUnread(ctx context.Context, caller domain.Identity) (int64, error) {
	return s.messages.CountUnreadFor(ctx, caller.UserID)
}

// SendMessage validates and stores a message, then announces it on the bus
// so that joined hub connections receive it.
func (s *Service) SendMessage(ctx context.Context, caller domain.Identity, req SendMessageRequest) (*domain.Message, error) {
	if req.SenderID != caller.UserID {
		return nil, domain.Errorf(domain.ErrForbidden, "sender does not match the authenticated user")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, domain.Errorf(domain.ErrInvalidInput, "message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, domain.Errorf(domain.ErrInvalidInput, "message content exceeds %d characters", s.maxLength)
	}
	if _, err := s.participantChat(ctx, caller, req.ChatID); err != nil {
		return nil, err
	}

	m, err := s.messages.Create(ctx, req.ChatID, caller.UserID, content)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	if err := pubsub.Publish(ctx, s.publisher, EventMessageCreated, strconv.FormatUint(uint64(caller.UserID), 10), *m); err != nil {
		metrics.BusPublishFailures.WithLabelValues(EventMessageCreated.Name()).Inc()
		s.logger.ErrorContext(ctx, "Failed to publish message", "chat_id", m.ConversationID, "message_id", m.ID, "error", err)
	}
	return m, nil
}

// MarkRead flags a message addressed to the caller as read.
func (s *Service) MarkRead(ctx context.Context, caller domain.Identity, messageID uint) (*domain.Message, error) {
	m, _, err := s.participantMessage(ctx, caller, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID == caller.UserID {
		return nil, domain.Errorf(domain.ErrInvalidInput, "cannot mark your own message as read")
	}

	ok, err := s.messages.MarkRead(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "message %d not found", messageID)
	}
	if !m.IsRead {
		metrics.MessagesMarkedRead.Inc()
	}
	m.IsRead = true
	return m, nil
}

// MarkAllRead flags every message the other participant sent in the
// conversation as read.
func (s *Service) MarkAllRead(ctx context.Context, caller domain.Identity, chatID uint) (MarkAllReadResult, error) {
	if _, err := s.participantChat(ctx, caller, chatID); err != nil {
		return MarkAllReadResult{}, err
	}
	n, err := s.messages.MarkAllReadInConversation(ctx, chatID, caller.UserID)
	if err != nil {
		return MarkAllReadResult{}, err
	}
	metrics.MessagesMarkedRead.Add(float64(n))
	return MarkAllReadResult{ChatID: chatID, Updated: n}, nil
}

// DeleteMessage removes a message. Only its sender may delete it.
func (s *Service) DeleteMessage(ctx context.Context, caller domain.Identity, messageID uint) error {
	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return notFound(err, "message %d not found", messageID)
	}
	if m.SenderID != caller.UserID {
		return domain.Errorf(domain.ErrForbidden, "only the sender can delete a message")
	}
	removed, err := s.messages.Delete(ctx, messageID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.Errorf(domain.ErrNotFound, "message %d not found", messageID)
	}
	return nil
}

// CanonicalGroup maps a client supplied group name to the name the relay
// publishes under. Group names are conversation ids in decimal form.
func (s *Service) CanonicalGroup(group string) (string, error) {
	id, err := strconv.ParseUint(group, 10, 0)
	if err != nil || id == 0 {
		return "", domain.Errorf(domain.ErrInvalidInput, "invalid chat id %q", group)
	}
	return GroupName(uint(id)), nil
}

// AuthorizeGroup allows a hub connection to join the group of a conversation
// the caller takes part in, and returns the canonical group name.
func (s *Service) AuthorizeGroup(ctx context.Context, caller domain.Identity, group string) (string, error) {
	name, err := s.CanonicalGroup(group)
	if err != nil {
		return "", err
	}
	id, _ := strconv.ParseUint(name, 10, 0)
	if _, err := s.participantChat(ctx, caller, uint(id)); err != nil {
		return "", err
	}
	return name, nil
}

// participantChat loads a conversation and checks that the caller takes part
// in it. Absence is reported before access denial.
func (s *Service) participantChat(ctx context.Context, caller domain.Identity, chatID uint) (*domain.Conversation, error) {
	c, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, notFound(err, "chat %d not found", chatID)
	}
	if !c.HasParticipant(caller.UserID) {
		return nil, domain.Errorf(domain.ErrForbidden, "you are not a participant of chat %d", chatID)
	}
	return c, nil
}

// participantMessage loads a message and its conversation and checks that the
// caller takes part in it. A message whose conversation is gone is not found.
func (s *Service) participantMessage(ctx context.Context, caller domain.Identity, messageID uint) (*domain.Message, *domain.Conversation, error) {
	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, nil, notFound(err, "message %d not found", messageID)
	}
	c, err := s.chats.FindByID(ctx, m.ConversationID)
	if err != nil {
		return nil, nil, notFound(err, "chat %d not found", m.ConversationID)
	}
	if !c.HasParticipant(caller.UserID) {
		return nil, nil, domain.Errorf(domain.ErrForbidden, "you are not a participant of chat %d", c.ID)
	}
	return m, c, nil
}

func (s *Service) view(c *domain.Conversation, viewer uint, withMessages bool) ChatView {
	online := false
	if s.presence != nil {
		online = s.presence.IsOnline(c.OtherParticipant(viewer))
	}
	return newChatView(c, viewer, online, withMessages)
}

// notFound replaces store wording with a client-facing message while keeping
// other failures untouched.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, format, args...)
	}
	return err
}
