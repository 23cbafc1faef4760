package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler
	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorHandler_MapsDomainKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", domain.Errorf(domain.ErrNotFound, "chat 4 not found"), http.StatusNotFound},
		{"forbidden", domain.Errorf(domain.ErrForbidden, "not yours"), http.StatusForbidden},
		{"bad request", domain.Errorf(domain.ErrInvalidInput, "empty"), http.StatusBadRequest},
		{"conflict", domain.Errorf(domain.ErrConflict, "exists"), http.StatusConflict},
		{"unauthorized", domain.Errorf(domain.ErrUnauthorized, "who are you"), http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("store: %w", domain.Errorf(domain.ErrNotFound, "gone")), http.StatusNotFound},
		{"echo error", echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			e.GET("/", func(c echo.Context) error { return tt.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, http.StatusText(tt.status), resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	e := newEcho()
	e.GET("/", func(c echo.Context) error { return errors.New("pq: connection refused on 10.0.0.3") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Internal Server Error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeError(t, rec).Code)
}

func TestCustomValidator(t *testing.T) {
	type payload struct {
		ChatID uint `validate:"required"`
	}
	v := handlers.NewValidator()
	assert.Error(t, v.Validate(&payload{}))
	assert.NoError(t, v.Validate(&payload{ChatID: 3}))
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		e := newEcho()
		e.GET("/health", handlers.NewHealthHandler(fakePinger{}).HealthGet)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","database":"ok"}`, rec.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		e := newEcho()
		e.GET("/health", handlers.NewHealthHandler(fakePinger{err: assert.AnError}).HealthGet)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

type fakePresence struct{ online map[uint]bool }

func (f fakePresence) IsOnline(userID uint) bool { return f.online[userID] }

func (f fakePresence) GetOnlineUsers() []uint {
	var out []uint
	for id, ok := range f.online {
		if ok {
			out = append(out, id)
		}
	}
	return out
}

func TestPresenceHandler(t *testing.T) {
	h := handlers.NewPresenceHandler(fakePresence{online: map[uint]bool{2: true}})
	e := newEcho()
	e.GET("/presence", h.GetPresence)
	e.GET("/presence/:userId", h.GetUserPresence)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presence", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"onlineUsers":[2],"count":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presence/2", nil))
	assert.JSONEq(t, `{"userId":2,"online":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presence/3", nil))
	assert.JSONEq(t, `{"userId":3,"online":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presence/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
