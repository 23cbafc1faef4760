package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nfrund/evmarket/internal/chat"
	"github.com/nfrund/evmarket/internal/database"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/hub"
	"github.com/nfrund/evmarket/internal/presence"
	"github.com/nfrund/evmarket/internal/pubsub"
	"github.com/nfrund/evmarket/internal/server"
	"github.com/nfrund/evmarket/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	t       *testing.T
	baseURL string
	token   string
}

func (c *testClient) do(method, path, body string) (int, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func (c *testClient) dialHub() *websocket.Conn {
	c.t.Helper()
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/hub/chat?access_token=" + c.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(c.t, err, "Failed to connect to hub")
	c.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type serverFixture struct {
	srv     *server.Server
	baseURL string
}

// setupIntegrationTest starts a full server on an in-memory database.
func setupIntegrationTest(t *testing.T) *serverFixture {
	t.Helper()
	cfg := testutils.ConfigForTests(t)

	s, err := server.New(context.Background(), cfg,
		server.WithTracing(pubsub.DefaultTracingConfig()),
		server.WithPresenceOptions(presence.WithOfflineDebounce(0)),
		server.WithDatabaseOptions(database.WithMaxOpenConns(1)),
	)
	require.NoError(t, err)

	ts := httptest.NewServer(s.E)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
		ts.Close()
	})
	return &serverFixture{srv: s, baseURL: ts.URL}
}

func (f *serverFixture) client(t *testing.T, userID uint) *testClient {
	return &testClient{t: t, baseURL: f.baseURL, token: testutils.MemberToken(t, f.srv.JWT(), userID)}
}

func readFrame(t *testing.T, conn *websocket.Conn) hub.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame hub.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// readUntil skips informational frames until event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) hub.Frame {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		if frame.Event == event {
			return frame
		}
	}
}

func TestChatScenario_EndToEnd(t *testing.T) {
	f := setupIntegrationTest(t)
	user1 := f.client(t, 1)
	user2 := f.client(t, 2)

	// Start-chat is idempotent.
	status, body := user1.do(http.MethodPost, "/chats/start-chat/2", "")
	require.Equal(t, http.StatusOK, status, string(body))
	var first chat.ChatView
	require.NoError(t, json.Unmarshal(body, &first))

	status, body = user1.do(http.MethodPost, "/chats/start-chat/2", "")
	require.Equal(t, http.StatusOK, status)
	var second chat.ChatView
	require.NoError(t, json.Unmarshal(body, &second))
	assert.Equal(t, first.ID, second.ID)

	status, body = user1.do(http.MethodGet, "/chats", "")
	require.Equal(t, http.StatusOK, status)
	var chats []chat.ChatView
	require.NoError(t, json.Unmarshal(body, &chats))
	require.Len(t, chats, 1, "no duplicate conversation")
	assert.False(t, chats[0].Online)

	// User 2 joins the conversation's group.
	conn := user2.dialHub()
	group := chat.GroupName(first.ID)
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "JoinChat", "groupId": group}))
	joined := readFrame(t, conn)
	assert.Equal(t, hub.EventUserJoined, joined.Event)

	status, body = user1.do(http.MethodGet, "/chats", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &chats))
	assert.True(t, chats[0].Online, "user 2 holds a hub connection")

	// User 1 sends a message; user 2 receives it live.
	status, body = user1.do(http.MethodPost, "/messages", fmt.Sprintf(`{"chatId":%d,"senderId":1,"content":"hello"}`, first.ID))
	require.Equal(t, http.StatusCreated, status, string(body))
	var sent domain.Message
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.False(t, sent.IsRead)

	frame := readUntil(t, conn, hub.EventReceiveMessage)
	raw, err := json.Marshal(frame.Data)
	require.NoError(t, err)
	var received domain.Message
	require.NoError(t, json.Unmarshal(raw, &received))
	assert.Equal(t, sent.ID, received.ID)
	assert.Equal(t, first.ID, received.ConversationID)
	assert.Equal(t, uint(1), received.SenderID)
	assert.Equal(t, "hello", received.Content)
	assert.False(t, received.IsRead)

	// User 2 marks everything read.
	status, body = user2.do(http.MethodPut, fmt.Sprintf("/messages/chat/%d/read-all", first.ID), "")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, fmt.Sprintf(`{"chatId":%d,"updated":1}`, first.ID), string(body))

	status, body = user1.do(http.MethodGet, fmt.Sprintf("/messages/%d", sent.ID), "")
	require.Equal(t, http.StatusOK, status)
	var stored domain.Message
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.True(t, stored.IsRead)

	// The sender cannot mark their own message read.
	status, body = user1.do(http.MethodPut, fmt.Sprintf("/messages/%d/read", sent.ID), "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "cannot mark your own message as read")
}

func TestHub_OutsiderCannotJoin(t *testing.T) {
	f := setupIntegrationTest(t)
	user1 := f.client(t, 1)
	outsider := f.client(t, 3)

	status, body := user1.do(http.MethodPost, "/chats/start-chat/2", "")
	require.Equal(t, http.StatusOK, status)
	var c chat.ChatView
	require.NoError(t, json.Unmarshal(body, &c))

	conn := outsider.dialHub()
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "JoinChat", "groupId": chat.GroupName(c.ID)}))
	frame := readFrame(t, conn)
	assert.Equal(t, hub.EventError, frame.Event)

	status, _ = user1.do(http.MethodPost, "/messages", fmt.Sprintf(`{"chatId":%d,"senderId":1,"content":"private"}`, c.ID))
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var leaked hub.Frame
	assert.Error(t, conn.ReadJSON(&leaked), "outsider must not receive the message")
}

func TestServer_Routes(t *testing.T) {
	f := setupIntegrationTest(t)

	resp, err := http.Get(f.baseURL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.baseURL + "/chats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	user1 := f.client(t, 1)
	status, _ := user1.do(http.MethodGet, "/chats", "")
	assert.Equal(t, http.StatusOK, status)

	resp, err = http.Get(f.baseURL + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(metrics), "requests_total")
	assert.Contains(t, string(metrics), "evmarket_hub_connections")
}

func TestServer_HubRequiresToken(t *testing.T) {
	f := setupIntegrationTest(t)

	url := "ws" + strings.TrimPrefix(f.baseURL, "http") + "/hub/chat"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
