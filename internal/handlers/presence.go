package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/domain"
)

// PresenceReader is the read side of the presence service.
type PresenceReader interface {
	IsOnline(userID uint) bool
	GetOnlineUsers() []uint
}

// PresenceHandler handles presence-related HTTP requests
type PresenceHandler struct {
	presenceService PresenceReader
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(presenceService PresenceReader) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

// UserPresence is the presence of a single user.
type UserPresence struct {
	UserID uint `json:"userId"`
	Online bool `json:"online"`
}

// GetPresence returns the current online users as JSON
func (h *PresenceHandler) GetPresence(c echo.Context) error {
	onlineUsers := h.presenceService.GetOnlineUsers()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"onlineUsers": onlineUsers,
		"count":       len(onlineUsers),
	})
}

// GetUserPresence returns the presence status for a specific user
func (h *PresenceHandler) GetUserPresence(c echo.Context) error {
	raw := c.Param("userId")
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return domain.Errorf(domain.ErrInvalidInput, "invalid userId %q", raw)
	}
	return c.JSON(http.StatusOK, UserPresence{
		UserID: uint(id),
		Online: h.presenceService.IsOnline(uint(id)),
	})
}
