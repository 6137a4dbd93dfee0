package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuongbtq/onprem-bridge/internal/tools"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestRequestHandler_WriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        &tools.ValidationError{Field: "customerId", Rule: "is required"},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid_request","message":"invalid customerId: is required"}`,
		},
		{
			name:       "forbidden",
			err:        fmt.Errorf("%w: missing scope bridge:read", tools.ErrForbidden),
			wantStatus: http.StatusForbidden,
			wantBody:   `{"error":"forbidden","message":"forbidden: missing scope bridge:read"}`,
		},
		{
			name:       "not found",
			err:        fmt.Errorf("%w: req_x", tools.ErrRequestNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"request_not_found","requestId":"req_x"}`,
		},
		{
			name:       "unexpected",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal_error"}`,
		},
	}

	h := &RequestHandler{logger: slog.New(slog.DiscardHandler)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()

			h.writeError(c, tt.err, "req_x")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	h := NewHealthHandler(&Dependencies{ReadinessChecks: map[string]ReadinessCheck{
		"state_file": func(context.Context) error { return nil },
		"audit_broker": func(context.Context) error {
			return errors.New("not connected to RabbitMQ")
		},
	}})

	c, w := newTestContext()
	h.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"audit_broker":"not connected to RabbitMQ"}}`, w.Body.String())

	c, w = newTestContext()
	h.Live(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallerFrom(t *testing.T) {
	c, _ := newTestContext()
	assert.Equal(t, tools.Caller{}, callerFrom(c))

	c.Set(CallerKey, tools.Caller{ClientID: "client-a", Scopes: []string{tools.ScopeRead}})
	assert.Equal(t, "client-a", callerFrom(c).ClientID)
}

func TestBindStrictJSON(t *testing.T) {
	type body struct {
		Name string `json:"name" binding:"required"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "valid", payload: `{"name":"a"}`},
		{name: "unknown field", payload: `{"name":"a","extra":1}`, wantErr: true},
		{name: "trailing value", payload: `{"name":"a"} {"name":"b"}`, wantErr: true},
		{name: "empty body", payload: ``, wantErr: true},
		{name: "failed binding rule", payload: `{"name":""}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext()
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))

			var got body
			err := bindStrictJSON(c, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", got.Name)
		})
	}
}
