package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/eventsphere/internal/middleware"
	"github.com/iliyamo/eventsphere/internal/model"
	"github.com/iliyamo/eventsphere/internal/repository"
	"github.com/iliyamo/eventsphere/internal/ticket"
)

type purchaseFunc func(ctx context.Context, userID, eventID string) (*ticket.Result, error)

func (f purchaseFunc) Purchase(ctx context.Context, userID, eventID string) (*ticket.Result, error) {
	return f(ctx, userID, eventID)
}

type eventFinderFunc func(ctx context.Context, id string) (*model.Event, error)

func (f eventFinderFunc) FindByID(ctx context.Context, id string) (*model.Event, error) {
	return f(ctx, id)
}

type stubStats struct {
	online  int64
	viewers map[string]int64
	err     error
}

func (s stubStats) OnlineCount(context.Context) (int64, error) { return s.online, s.err }

func (s stubStats) EventViewerCount(_ context.Context, id string) (int64, error) {
	return s.viewers[id], s.err
}

func newEcho(log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(log)
	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTicketHandler_PurchaseCreated(t *testing.T) {
	e := newEcho(zap.NewNop())
	var gotUser, gotEvent string
	h := NewTicketHandler(purchaseFunc(func(_ context.Context, userID, eventID string) (*ticket.Result, error) {
		gotUser, gotEvent = userID, eventID
		return &ticket.Result{
			Success: true,
			Message: "Ticket purchased successfully",
			Ticket:  &model.Ticket{ID: "t1", UserID: userID, EventID: eventID, Status: model.TicketPaid},
		}, nil
	}))
	e.POST("/v1/tickets/purchase/:eventId", h.Purchase, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxUserID, "u1")
			return next(c)
		}
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tickets/purchase/e1", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "e1", gotEvent)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Ticket purchased successfully", body["message"])
	assert.Equal(t, "t1", body["ticket"].(map[string]any)["id"])
}

func TestTicketHandler_PurchaseAnonymous(t *testing.T) {
	e := newEcho(zap.NewNop())
	called := false
	h := NewTicketHandler(purchaseFunc(func(context.Context, string, string) (*ticket.Result, error) {
		called = true
		return nil, nil
	}))
	e.POST("/v1/tickets/purchase/:eventId", h.Purchase)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tickets/purchase/e1", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
}

func TestTicketHandler_DomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", ticket.EventNotFound("e1"), http.StatusNotFound, ticket.CodeEventNotFound},
		{"past", ticket.ErrEventAlreadyPast, http.StatusBadRequest, ticket.CodeEventAlreadyPast},
		{"duplicate", ticket.ErrTicketAlreadyExists, http.StatusConflict, ticket.CodeTicketAlreadyExists},
		{"declined", ticket.ErrPaymentFailed, http.StatusBadRequest, ticket.CodePaymentFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEcho(zap.NewNop())
			h := NewTicketHandler(purchaseFunc(func(context.Context, string, string) (*ticket.Result, error) {
				return nil, tc.err
			}))
			e.POST("/v1/tickets/purchase/:eventId", h.Purchase, func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					c.Set(middleware.CtxUserID, "u1")
					return next(c)
				}
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tickets/purchase/e1", nil))

			assert.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.status, body.StatusCode)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, "/v1/tickets/purchase/e1", body.Path)
			assert.Equal(t, http.MethodPost, body.Method)
			assert.False(t, body.Timestamp.IsZero())
		})
	}
}

func TestEventHandler_Get(t *testing.T) {
	date := time.Date(2030, 5, 1, 20, 0, 0, 0, time.UTC)
	finder := eventFinderFunc(func(_ context.Context, id string) (*model.Event, error) {
		if id != "e1" {
			return nil, repository.ErrNotFound
		}
		return &model.Event{ID: "e1", Title: "Concert", Date: date,
			Price: decimal.RequireFromString("49.90"), OwnerEmail: "owner@example.com"}, nil
	})
	e := newEcho(zap.NewNop())
	e.GET("/v1/events/:id", NewEventHandler(finder).Get)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/e1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Concert"`)
	assert.Contains(t, rec.Body.String(), `"price":"49.9"`)
	assert.NotContains(t, rec.Body.String(), "owner@example.com")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, ticket.CodeEventNotFound, body.Code)
	assert.Equal(t, "Event with ID missing not found", body.Message)
}

func TestRealtimeHandler_Counts(t *testing.T) {
	e := newEcho(zap.NewNop())
	h := NewRealtimeHandler(stubStats{online: 3, viewers: map[string]int64{"e1": 2}})
	e.GET("/v1/realtime/online", h.Online)
	e.GET("/v1/events/:id/viewers", h.Viewers)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/realtime/online", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/e1/viewers", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"eventId":"e1","viewers":2}`, rec.Body.String())
}

func TestErrorHandler_UnknownErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	e := newEcho(zap.New(core))
	h := NewRealtimeHandler(stubStats{err: errors.New("redis down")})
	e.GET("/v1/realtime/online", h.Online)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/realtime/online", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, "Internal server error", body.Message)
	assert.NotContains(t, rec.Body.String(), "redis down")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request failed", logs.All()[0].Message)
}

func TestErrorHandler_HTTPErrors(t *testing.T) {
	e := newEcho(zap.NewNop())
	e.GET("/limited", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/limited", nil))
	body := decodeError(t, rec)
	assert.Equal(t, http.StatusTooManyRequests, body.StatusCode)
	assert.Equal(t, "TOO_MANY_REQUESTS", body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	body = decodeError(t, rec)
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	require.NoError(t, Health(c))
	assert.Equal(t, "ok", rec.Body.String())
}
