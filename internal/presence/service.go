package presence

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/nfrund/evmarket/internal/pubsub"
	ws "github.com/nfrund/evmarket/internal/websocket"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// OfflineDebounceDelay is the time to wait before marking a user as offline
// after their last connection closes. It absorbs page reloads and brief
// network drops.
const OfflineDebounceDelay = 5 * time.Second

// Service tracks which users hold live hub connections.
type Service struct {
	mu          sync.RWMutex
	connections map[uint]map[string]time.Time // userID -> connID -> connectedAt
	publisher   pubsub.Publisher
	subscriber  pubsub.Subscriber
	logger      *slog.Logger

	// Debouncing for offline events.
	debounceMu           sync.Mutex
	offlineDebounce      map[uint]*time.Timer
	offlineDebounceDelay time.Duration
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithOfflineDebounce sets a custom debounce delay for offline events.
// Set to 0 to mark users offline immediately.
func WithOfflineDebounce(d time.Duration) Option {
	return func(s *Service) {
		s.offlineDebounceDelay = d
	}
}

// NewService creates a presence service. Call Start to begin tracking.
func NewService(publisher pubsub.Publisher, subscriber pubsub.Subscriber, opts ...Option) *Service {
	svc := &Service{
		connections:          make(map[uint]map[string]time.Time),
		publisher:            publisher,
		subscriber:           subscriber,
		logger:               slog.Default().With("service", "presence"),
		offlineDebounce:      make(map[uint]*time.Timer),
		offlineDebounceDelay: OfflineDebounceDelay,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Start subscribes to hub lifecycle events. Tracking stops when ctx ends.
func (s *Service) Start(ctx context.Context) error {
	if err := pubsub.Subscribe(ctx, s.subscriber, ws.EventConnectionOpened, s.handleConnectionOpened); err != nil {
		return err
	}
	if err := pubsub.Subscribe(ctx, s.subscriber, ws.EventConnectionClosed, s.handleConnectionClosed); err != nil {
		return err
	}
	s.logger.Info("Presence service started")
	return nil
}

func (s *Service) handleConnectionOpened(ctx context.Context, event ws.ConnectionEvent) error {
	s.addConnection(ctx, event.UserID, event.ConnectionID, event.At)
	return nil
}

func (s *Service) handleConnectionClosed(ctx context.Context, event ws.ConnectionEvent) error {
	s.removeConnection(ctx, event.UserID, event.ConnectionID)
	return nil
}

func (s *Service) addConnection(ctx context.Context, userID uint, connID string, at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	// A pending offline timer means the user never looked offline to others.
	s.debounceMu.Lock()
	timer, debounced := s.offlineDebounce[userID]
	if debounced {
		timer.Stop()
		delete(s.offlineDebounce, userID)
	}
	s.debounceMu.Unlock()

	s.mu.Lock()
	conns := s.connections[userID]
	cameOnline := len(conns) == 0 && !debounced
	if conns == nil {
		conns = make(map[string]time.Time)
		s.connections[userID] = conns
	}
	conns[connID] = at
	total := len(conns)
	s.mu.Unlock()

	s.logger.Debug("Connection added", "user_id", userID, "conn_id", connID, "connections", total)
	if cameOnline {
		s.logger.Info("User came online", "user_id", userID)
		s.publish(ctx, EventUserOnline, userID, StatusOnline)
	}
}

func (s *Service) removeConnection(ctx context.Context, userID uint, connID string) {
	s.mu.Lock()
	conns, exists := s.connections[userID]
	if !exists {
		s.mu.Unlock()
		return
	}
	delete(conns, connID)
	remaining := len(conns)
	if remaining == 0 {
		delete(s.connections, userID)
	}
	s.mu.Unlock()

	s.logger.Debug("Connection removed", "user_id", userID, "conn_id", connID, "remaining_connections", remaining)
	if remaining > 0 {
		return
	}

	if s.offlineDebounceDelay == 0 {
		s.logger.Info("User went offline", "user_id", userID)
		s.publish(ctx, EventUserOffline, userID, StatusOffline)
		return
	}

	s.debounceMu.Lock()
	if timer, ok := s.offlineDebounce[userID]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.offlineDebounceDelay, func() {
		s.handleDebouncedOffline(userID, timer)
	})
	s.offlineDebounce[userID] = timer
	s.debounceMu.Unlock()
}

// handleDebouncedOffline runs after the debounce period to mark a user offline.
// A timer that was replaced after it fired does nothing.
func (s *Service) handleDebouncedOffline(userID uint, timer *time.Timer) {
	s.debounceMu.Lock()
	if s.offlineDebounce[userID] != timer {
		s.debounceMu.Unlock()
		return
	}
	delete(s.offlineDebounce, userID)
	s.debounceMu.Unlock()

	if s.IsOnline(userID) {
		return
	}
	s.logger.Info("User went offline after debounce period", "user_id", userID)
	s.publish(context.Background(), EventUserOffline, userID, StatusOffline)
}

func (s *Service) publish(ctx context.Context, event pubsub.Event[StatusChange], userID uint, status Status) {
	payload := StatusChange{UserID: userID, Status: status, At: time.Now().UTC()}
	if err := pubsub.Publish(ctx, s.publisher, event, strconv.FormatUint(uint64(userID), 10), payload); err != nil {
		s.logger.Error("Failed to publish presence update", "topic", event.Name(), "error", err)
	}
}

// IsOnline reports whether userID holds at least one live hub connection.
func (s *Service) IsOnline(userID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections[userID]) > 0
}

// ConnectionCount returns how many hub connections userID holds.
func (s *Service) ConnectionCount(userID uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections[userID])
}

// GetOnlineUsers returns the ids of online users in ascending order.
func (s *Service) GetOnlineUsers() []uint {
	s.mu.RLock()
	result := make([]uint, 0, len(s.connections))
	for userID, conns := range s.connections {
		if len(conns) > 0 {
			result = append(result, userID)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Shutdown stops pending offline timers.
func (s *Service) Shutdown() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	for userID, timer := range s.offlineDebounce {
		timer.Stop()
		delete(s.offlineDebounce, userID)
	}
}
