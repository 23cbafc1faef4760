package websocket

import (
	"log/slog"

	"github.com/coder/websocket"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/hub"
)

// Client is one accepted hub socket.
type Client struct {
	conn     *websocket.Conn
	hc       *hub.Conn
	identity domain.Identity
	logger   *slog.Logger
}
