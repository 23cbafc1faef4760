package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/hub"
	"github.com/nfrund/evmarket/internal/middleware"
	"github.com/nfrund/evmarket/internal/pubsub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Interval between keep-alive pings.
	pingPeriod = 30 * time.Second
	// Largest client frame accepted.
	maxFrameSize = 64 << 10
)

// GroupAuthorizer resolves client supplied group names. Both methods return
// the canonical name the group is published under, so "012" and 12 land in
// the same group as "12".
type GroupAuthorizer interface {
	// AuthorizeGroup checks that caller may join group.
	AuthorizeGroup(ctx context.Context, caller domain.Identity, group string) (string, error)
	// CanonicalGroup normalizes group without an access check.
	CanonicalGroup(group string) (string, error)
}

// genericErrorText replaces error messages that are not meant for clients.
const genericErrorText = "unable to process request"

// Bridge serves the hub endpoint: it upgrades authenticated requests, turns
// client frames into hub membership changes and drains each connection's
// queue onto the socket.
type Bridge struct {
	hub            *hub.Hub
	publisher      pubsub.Publisher
	authorizer     GroupAuthorizer
	actions        actionSet
	sendBuffer     int
	originPatterns []string

	// ctx is canceled by Shutdown and bounds every connection.
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Shutdown's wg.Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSendBuffer sets the per-connection queue size.
func WithSendBuffer(n int) Option {
	return func(b *Bridge) { b.sendBuffer = n }
}

// WithOriginPatterns allows cross-origin browser connections from the given hosts.
func WithOriginPatterns(patterns ...string) Option {
	return func(b *Bridge) { b.originPatterns = patterns }
}

// NewBridge creates the hub endpoint.
func NewBridge(h *hub.Hub, pub pubsub.Publisher, authorizer GroupAuthorizer, opts ...Option) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		hub:        h,
		publisher:  pub,
		authorizer: authorizer,
		actions:    chatActions(),
		sendBuffer: hub.DefaultSendBuffer,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handler returns the echo handler for the hub endpoint. It must run behind
// the Auth middleware.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		caller, ok := middleware.IdentityFrom(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		logger := middleware.FromContext(c.Request().Context()).With("user_id", caller.UserID)

		if !b.track() {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			OriginPatterns: b.originPatterns,
		})
		if err != nil {
			b.wg.Done()
			// Accept has already written the failure response.
			logger.Warn("Failed to upgrade connection to WebSocket", "error", err)
			return nil
		}
		conn.SetReadLimit(maxFrameSize)

		hc := hub.NewConn(caller.UserID, b.sendBuffer)
		b.serve(&Client{
			conn:     conn,
			hc:       hc,
			identity: caller,
			logger:   logger.With("conn_id", hc.ID),
		})
		return nil
	}
}

// track registers a connection with the shutdown wait group. It reports
// false once Shutdown has started.
func (b *Bridge) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.wg.Add(1)
	return true
}

// serve runs the connection until the peer goes away or Shutdown is called.
// The caller has already tracked it.
func (b *Bridge) serve(client *Client) {
	defer b.wg.Done()

	ctx, cancel := context.WithCancel(b.ctx)
	defer cancel()

	b.hub.Register(client.hc)
	b.publishLifecycle(ctx, EventConnectionOpened, client, "")
	client.logger.Info("Hub connection opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		b.writePump(ctx, client)
	}()

	reason := b.readPump(ctx, client)

	b.hub.Disconnect(client.hc)
	cancel()
	<-writerDone
	client.conn.Close(websocket.StatusNormalClosure, "connection closed")

	b.publishLifecycle(context.Background(), EventConnectionClosed, client, reason)
	client.logger.Info("Hub connection closed", "reason", reason)
}

// readPump handles client frames until the connection fails. It returns the
// close reason.
func (b *Bridge) readPump(ctx context.Context, client *Client) string {
	for {
		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return closeReason(ctx, err, client.logger)
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			b.hub.SendTo(client.hc, hub.EventError, "malformed frame")
			continue
		}
		if !b.actions.allows(frame.Action) {
			b.hub.SendTo(client.hc, hub.EventError, "unknown action "+strconv.Quote(frame.Action))
			continue
		}
		b.handleFrame(ctx, client, frame)
	}
}

func (b *Bridge) handleFrame(ctx context.Context, client *Client, frame ClientFrame) {
	group := frame.GroupID.String()
	if group == "" {
		b.hub.SendTo(client.hc, hub.EventError, "groupId is required")
		return
	}

	switch frame.Action {
	case ActionJoinChat:
		name, err := b.authorizer.AuthorizeGroup(ctx, client.identity, group)
		if err != nil {
			client.logger.Debug("Join rejected", "group", group, "error", err)
			b.hub.SendTo(client.hc, hub.EventError, clientMessage(err))
			return
		}
		if err := b.hub.Join(client.hc, name); err != nil {
			b.hub.SendTo(client.hc, hub.EventError, clientMessage(err))
		}
	case ActionLeaveChat:
		name, err := b.authorizer.CanonicalGroup(group)
		if err != nil {
			b.hub.SendTo(client.hc, hub.EventError, clientMessage(err))
			return
		}
		b.hub.Leave(client.hc, name)
	}
}

// clientMessage returns err's text when it is a domain error and a generic
// text otherwise.
func clientMessage(err error) string {
	if domain.Kind(err) == nil {
		return genericErrorText
	}
	return err.Error()
}

// writePump drains the connection's queue onto the socket and keeps the
// connection alive with pings.
func (b *Bridge) writePump(ctx context.Context, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := client.hc.Send()
	for {
		select {
		case frame, ok := <-send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := client.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				client.logger.Debug("WebSocket write error", "error", err)
				client.conn.CloseNow()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := client.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				client.logger.Debug("WebSocket ping failed", "error", err)
				client.conn.CloseNow()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) publishLifecycle(ctx context.Context, event pubsub.Event[ConnectionEvent], client *Client, reason string) {
	payload := ConnectionEvent{
		ConnectionID: client.hc.ID,
		UserID:       client.identity.UserID,
		Reason:       reason,
		At:           time.Now().UTC(),
	}
	if err := pubsub.Publish(ctx, b.publisher, event, strconv.FormatUint(uint64(client.identity.UserID), 10), payload); err != nil {
		client.logger.Error("Failed to publish hub lifecycle event", "topic", event.Name(), "error", err)
	}
}

// Shutdown closes every open connection and waits for them to finish.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func closeReason(ctx context.Context, err error, logger *slog.Logger) string {
	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		return "client_closed"
	case ctx.Err() != nil:
		return "server_shutdown"
	case errors.Is(err, io.EOF):
		return "connection_lost"
	case status != -1:
		logger.Debug("WebSocket closed by client", "status", status)
		return "client_closed"
	default:
		logger.Warn("WebSocket read error", "error", err)
		return "read_error"
	}
}
