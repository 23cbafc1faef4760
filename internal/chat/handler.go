package chat

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/middleware"
)

// Handler exposes the chat service over HTTP. Errors are returned as domain
// errors and rendered by the server's error handler.
type Handler struct {
	service *Service
}

// NewHandler creates a new Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// callerFrom is a helper to retrieve the authenticated caller from the context.
func callerFrom(c echo.Context) (domain.Identity, error) {
	caller, ok := middleware.IdentityFrom(c)
	if !ok || caller.UserID == 0 {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return caller, nil
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, domain.Errorf(domain.ErrInvalidInput, "invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// ListChats handles GET /chats.
func (h *Handler) ListChats(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	chats, err := h.service.ListChats(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chats)
}

// GetChat handles GET /chats/:id.
func (h *Handler) GetChat(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	chat, err := h.service.GetChat(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chat)
}

// CreateChat handles POST /chats.
func (h *Handler) CreateChat(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req CreateChatRequest
	if err := c.Bind(&req); err != nil {
		return domain.Errorf(domain.ErrInvalidInput, "invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return domain.Errorf(domain.ErrInvalidInput, "%s", err.Error())
	}
	chat, err := h.service.CreateChat(c.Request().Context(), caller, req.User1ID, req.User2ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, chat)
}

// StartChat handles POST /chats/start-chat/:otherUserId.
func (h *Handler) StartChat(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	other, err := idParam(c, "otherUserId")
	if err != nil {
		return err
	}
	chat, err := h.service.StartChat(c.Request().Context(), caller, other)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chat)
}

// DeleteChat handles DELETE /chats/:id.
func (h *Handler) DeleteChat(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteChat(c.Request().Context(), caller, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMessages handles GET /messages.
func (h *Handler) ListMessages(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

// ListUnread handles GET /messages/unread.
func (h *Handler) ListUnread(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListUnread(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

// CountUnread handles GET /messages/unread-count.
func (h *Handler) CountUnread(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	n, err := h.service.CountUnread(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UnreadCount{Count: n})
}

// ListChatMessages handles GET /messages/chat/:chatId.
func (h *Handler) ListChatMessages(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	chatID, err := idParam(c, "chatId")
	if err != nil {
		return err
	}
	msgs, err := h.service.ListChatMessages(c.Request().Context(), caller, chatID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

// GetMessage handles GET /messages/:id.
func (h *Handler) GetMessage(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	m, err := h.service.GetMessage(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// SendMessage handles POST /messages.
func (h *Handler) SendMessage(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return domain.Errorf(domain.ErrInvalidInput, "invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return domain.Errorf(domain.ErrInvalidInput, "%s", err.Error())
	}
	m, err := h.service.SendMessage(c.Request().Context(), caller, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

// MarkRead handles PUT /messages/:id/read.
func (h *Handler) MarkRead(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	m, err := h.service.MarkRead(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// MarkAllRead handles PUT /messages/chat/:chatId/read-all.
func (h *Handler) MarkAllRead(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	chatID, err := idParam(c, "chatId")
	if err != nil {
		return err
	}
	res, err := h.service.MarkAllRead(c.Request().Context(), caller, chatID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// DeleteMessage handles DELETE /messages/:id.
func (h *Handler) DeleteMessage(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteMessage(c.Request().Context(), caller, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
