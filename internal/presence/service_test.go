package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/evmarket/internal/pubsub"
	ws "github.com/nfrund/evmarket/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPublisher implements pubsub.Publisher for testing
type mockPublisher struct {
	messages []pubsub.Message
	mu       sync.Mutex
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

func (m *mockPublisher) getMessages() []pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]pubsub.Message, len(m.messages))
	copy(result, m.messages)
	return result
}

// mockSubscriber implements pubsub.Subscriber for testing
type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string, handler pubsub.Handler) error {
	return nil
}

func (m *mockSubscriber) Close() error {
	return nil
}

func newTestService(opts ...Option) (*Service, *mockPublisher) {
	publisher := &mockPublisher{}
	svc := NewService(publisher, &mockSubscriber{}, opts...)
	return svc, publisher
}

func TestService_AddConnection(t *testing.T) {
	svc, publisher := newTestService()
	defer svc.Shutdown()

	svc.addConnection(context.Background(), 7, "conn-1", time.Time{})

	assert.True(t, svc.IsOnline(7))
	assert.False(t, svc.IsOnline(8))
	assert.Equal(t, []uint{7}, svc.GetOnlineUsers())

	messages := publisher.getMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, EventUserOnline.Name(), messages[0].Topic)

	change, err := EventUserOnline.Decode(messages[0])
	require.NoError(t, err)
	assert.Equal(t, uint(7), change.UserID)
	assert.Equal(t, StatusOnline, change.Status)
}

func TestService_RemoveConnectionImmediate(t *testing.T) {
	svc, publisher := newTestService(WithOfflineDebounce(0))
	defer svc.Shutdown()

	ctx := context.Background()
	svc.addConnection(ctx, 7, "conn-1", time.Now())
	svc.removeConnection(ctx, 7, "conn-1")

	assert.False(t, svc.IsOnline(7))
	assert.Empty(t, svc.GetOnlineUsers())

	messages := publisher.getMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, EventUserOffline.Name(), messages[1].Topic)

	// Unknown connections are ignored.
	svc.removeConnection(ctx, 99, "nope")
	assert.Len(t, publisher.getMessages(), 2)
}

func TestService_MultipleConnections(t *testing.T) {
	svc, publisher := newTestService(WithOfflineDebounce(0))
	defer svc.Shutdown()

	ctx := context.Background()
	svc.addConnection(ctx, 7, "tab-1", time.Now())
	svc.addConnection(ctx, 7, "tab-2", time.Now())
	assert.Equal(t, 2, svc.ConnectionCount(7))

	svc.removeConnection(ctx, 7, "tab-1")
	assert.True(t, svc.IsOnline(7), "user should stay online while a tab is open")

	svc.removeConnection(ctx, 7, "tab-2")
	assert.False(t, svc.IsOnline(7))

	var topics []string
	for _, m := range publisher.getMessages() {
		topics = append(topics, m.Topic)
	}
	assert.Equal(t, []string{EventUserOnline.Name(), EventUserOffline.Name()}, topics)
}

func TestService_ReloadScenario(t *testing.T) {
	svc, publisher := newTestService(WithOfflineDebounce(100 * time.Millisecond))
	defer svc.Shutdown()

	ctx := context.Background()
	svc.addConnection(ctx, 7, "before-reload", time.Now())
	svc.removeConnection(ctx, 7, "before-reload")
	svc.addConnection(ctx, 7, "after-reload", time.Now())

	time.Sleep(200 * time.Millisecond)

	messages := publisher.getMessages()
	require.Len(t, messages, 1, "a reload within the debounce window must not flap presence")
	assert.Equal(t, EventUserOnline.Name(), messages[0].Topic)
	assert.True(t, svc.IsOnline(7))
}

func TestService_DebounceTimeout(t *testing.T) {
	svc, publisher := newTestService(WithOfflineDebounce(50 * time.Millisecond))
	defer svc.Shutdown()

	ctx := context.Background()
	svc.addConnection(ctx, 7, "conn-1", time.Now())
	svc.removeConnection(ctx, 7, "conn-1")

	assert.Len(t, publisher.getMessages(), 1, "offline must wait for the debounce period")

	assert.Eventually(t, func() bool {
		return len(publisher.getMessages()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, EventUserOffline.Name(), publisher.getMessages()[1].Topic)
}

func TestService_StaleDebounceTimerIsIgnored(t *testing.T) {
	svc, publisher := newTestService(WithOfflineDebounce(time.Hour))
	defer svc.Shutdown()

	ctx := context.Background()
	svc.addConnection(ctx, 7, "conn-1", time.Now())
	svc.removeConnection(ctx, 7, "conn-1")

	svc.debounceMu.Lock()
	current := svc.offlineDebounce[7]
	svc.debounceMu.Unlock()
	require.NotNil(t, current)

	// A timer that fired before being replaced must not touch the new entry.
	stale := time.NewTimer(time.Hour)
	defer stale.Stop()
	svc.handleDebouncedOffline(7, stale)
	assert.Len(t, publisher.getMessages(), 1)

	svc.debounceMu.Lock()
	assert.Same(t, current, svc.offlineDebounce[7])
	svc.debounceMu.Unlock()

	svc.handleDebouncedOffline(7, current)
	messages := publisher.getMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, EventUserOffline.Name(), messages[1].Topic)

	svc.handleDebouncedOffline(7, current)
	assert.Len(t, publisher.getMessages(), 2, "offline is published once")
}

func TestService_ConcurrentAccess(t *testing.T) {
	svc, _ := newTestService(WithOfflineDebounce(0))
	defer svc.Shutdown()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				conn := fmt.Sprintf("conn-%d-%d", userID, j)
				svc.addConnection(ctx, userID, conn, time.Now())
				_ = svc.IsOnline(userID)
				svc.removeConnection(ctx, userID, conn)
			}
		}(uint(i))
	}
	wg.Wait()

	assert.Empty(t, svc.GetOnlineUsers())
}

func TestService_TracksHubLifecycleEvents(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := NewService(bridge, bridge, WithOfflineDebounce(0))
	defer svc.Shutdown()
	require.NoError(t, svc.Start(ctx))

	opened := ws.ConnectionEvent{ConnectionID: "c1", UserID: 4, At: time.Now().UTC()}
	require.NoError(t, pubsub.Publish(ctx, bridge, ws.EventConnectionOpened, "4", opened))
	assert.Eventually(t, func() bool { return svc.IsOnline(4) }, time.Second, 10*time.Millisecond)

	closed := ws.ConnectionEvent{ConnectionID: "c1", UserID: 4, Reason: "client_closed", At: time.Now().UTC()}
	require.NoError(t, pubsub.Publish(ctx, bridge, ws.EventConnectionClosed, "4", closed))
	assert.Eventually(t, func() bool { return !svc.IsOnline(4) }, time.Second, 10*time.Millisecond)
}
