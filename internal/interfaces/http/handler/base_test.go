package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subtrack/backend/internal/domain/shared"
)

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"wrapped domain error", fmt.Errorf("load: %w", shared.ErrInvalidState), http.StatusUnprocessableEntity, "INVALID_STATE"},
		{"validation", shared.NewDomainError(shared.CodeInvalidAmount, "amount must not be negative"), http.StatusBadRequest, "INVALID_AMOUNT"},
		{"conversion", shared.ErrConversionUnavailable, http.StatusServiceUnavailable, "CONVERSION_UNAVAILABLE"},
		{"credentials", shared.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"disabled", shared.ErrAccountDisabled, http.StatusForbidden, "ACCOUNT_DISABLED"},
		{"conflict", shared.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{"plain error", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			r := newTestEngine("")
			r.GET("/err", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := performRequest(r, http.MethodGet, "/err", nil, "X-Request-ID", "req-9")

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Equal(t, "req-9", env.Error.RequestID)
		})
	}

	t.Run("internal errors hide the cause", func(t *testing.T) {
		h := &BaseHandler{}
		r := newTestEngine("")
		r.GET("/err", func(c *gin.Context) { h.HandleError(c, errors.New("pq: password authentication failed")) })

		w := performRequest(r, http.MethodGet, "/err", nil)
		assert.NotContains(t, w.Body.String(), "pq:")
	})
}

func TestBaseHandler_Responses(t *testing.T) {
	h := &BaseHandler{}
	r := newTestEngine("")
	r.GET("/ok", func(c *gin.Context) { h.Success(c, gin.H{"n": 1}) })
	r.POST("/created", func(c *gin.Context) { h.Created(c, gin.H{"n": 2}) })
	r.DELETE("/gone", func(c *gin.Context) { h.NoContent(c) })

	w := performRequest(r, http.MethodGet, "/ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"n":1}}`, w.Body.String())

	w = performRequest(r, http.MethodPost, "/created", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(r, http.MethodDelete, "/gone", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
