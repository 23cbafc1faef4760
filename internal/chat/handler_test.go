package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/auth"
	"github.com/nfrund/evmarket/internal/database"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/handlers"
	"github.com/nfrund/evmarket/internal/middleware"
	"github.com/nfrund/evmarket/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	e   *echo.Echo
	jwt *auth.JWT
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	cfg := testutils.ConfigForTests(t)
	db := testutils.NewTestDB(t, cfg)
	svc := NewService(database.NewConversationStore(db), database.NewMessageStore(db), &mockPublisher{})
	jwt := testutils.NewTestJWT(cfg)

	e := echo.New()
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler
	g := e.Group("", middleware.Auth(jwt), middleware.RequireRole(domain.RoleMember, domain.RoleAdmin))
	RegisterRoutes(g, NewHandler(svc), func(next echo.HandlerFunc) echo.HandlerFunc { return next })

	return &handlerFixture{e: e, jwt: jwt}
}

func (f *handlerFixture) do(t *testing.T, userID uint, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != 0 {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+testutils.MemberToken(t, f.jwt, userID))
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RequiresToken(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, 0, http.MethodGet, "/chats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_ChatAndMessageFlow(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, 1, http.MethodPost, "/chats/start-chat/2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var chat ChatView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = f.do(t, 1, http.MethodPost, "/chats", `{"user1Id":1,"user2Id":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, 1, http.MethodPost, "/chats/start-chat/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, 1, http.MethodPost, "/messages", fmt.Sprintf(`{"chatId":%d,"senderId":1,"content":"hello"}`, chat.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.False(t, msg.IsRead)

	rec = f.do(t, 1, http.MethodPost, "/messages", `{"chatId":0,"senderId":1,"content":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, 3, http.MethodGet, fmt.Sprintf("/chats/%d", chat.ID), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, 2, http.MethodGet, "/messages/unread-count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())

	rec = f.do(t, 1, http.MethodPut, fmt.Sprintf("/messages/%d/read", msg.ID), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, 2, http.MethodPut, fmt.Sprintf("/messages/chat/%d/read-all", chat.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"chatId":%d,"updated":1}`, chat.ID), rec.Body.String())

	rec = f.do(t, 2, http.MethodDelete, fmt.Sprintf("/messages/%d", msg.ID), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, 1, http.MethodDelete, fmt.Sprintf("/messages/%d", msg.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, 1, http.MethodGet, fmt.Sprintf("/messages/%d", msg.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, 1, http.MethodGet, "/messages/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
