package chat

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/config"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/hub"
	"github.com/nfrund/evmarket/internal/middleware"
	"github.com/nfrund/evmarket/internal/module"
	"github.com/nfrund/evmarket/internal/presence"
	"github.com/nfrund/evmarket/internal/pubsub"
	"github.com/samber/do/v2"
)

// Module wires the chat service, its HTTP routes and the hub relay.
type Module struct {
	module.BaseModule
}

var _ module.Module = (*Module)(nil)

// New creates the chat module.
func New() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Register provides the chat service, handler and relay. It expects the
// config, stores, bus, hub and presence service in the injector.
func (m *Module) Register(i do.Injector) error {
	do.Provide(i, func(i do.Injector) (*Service, error) {
		cfg := do.MustInvoke[config.Provider](i)
		return NewService(
			do.MustInvoke[domain.ConversationRepository](i),
			do.MustInvoke[domain.MessageRepository](i),
			do.MustInvoke[pubsub.Publisher](i),
			WithMaxMessageLength(cfg.GetMaxMessageLength()),
			WithPresence(do.MustInvoke[*presence.Service](i)),
		), nil
	})
	do.Provide(i, func(i do.Injector) (*Handler, error) {
		return NewHandler(do.MustInvoke[*Service](i)), nil
	})
	do.Provide(i, func(i do.Injector) (*Relay, error) {
		return NewRelay(do.MustInvoke[pubsub.Subscriber](i), do.MustInvoke[*hub.Hub](i)), nil
	})
	return nil
}

// Boot starts the relay and mounts the chat routes on g.
func (m *Module) Boot(ctx context.Context, g *echo.Group, i do.Injector) error {
	relay, err := do.Invoke[*Relay](i)
	if err != nil {
		return err
	}
	if err := relay.Start(ctx); err != nil {
		return err
	}

	handler, err := do.Invoke[*Handler](i)
	if err != nil {
		return err
	}
	RegisterRoutes(g, handler, middleware.RateLimiter(middleware.DefaultRateLimit))

	slog.Info("Chat module booted")
	return nil
}

// RegisterRoutes mounts the chat API on g. Writes pass through limiter.
func RegisterRoutes(g *echo.Group, h *Handler, limiter echo.MiddlewareFunc) {
	chats := g.Group("/chats")
	chats.GET("", h.ListChats)
	chats.POST("", h.CreateChat, limiter)
	chats.POST("/start-chat/:otherUserId", h.StartChat, limiter)
	chats.GET("/:id", h.GetChat)
	chats.DELETE("/:id", h.DeleteChat)

	messages := g.Group("/messages")
	messages.GET("", h.ListMessages)
	messages.POST("", h.SendMessage, limiter)
	messages.GET("/unread", h.ListUnread)
	messages.GET("/unread-count", h.CountUnread)
	messages.GET("/chat/:chatId", h.ListChatMessages)
	messages.PUT("/chat/:chatId/read-all", h.MarkAllRead)
	messages.GET("/:id", h.GetMessage)
	messages.PUT("/:id/read", h.MarkRead)
	messages.DELETE("/:id", h.DeleteMessage)
}
