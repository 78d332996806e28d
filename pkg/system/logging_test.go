// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetReqLoggerFallbackWhenContextNil(t *testing.T) {
	fallback := zap.NewNop().Sugar()
	require.Same(t, fallback, GetReqLogger(nil, fallback))
}

func TestGetReqLoggerFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	stored := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, stored)
	require.Same(t, stored, GetReqLogger(ctx, fallback))
}

func TestGetReqLoggerIgnoresInvalidTypes(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, "not-a-logger")
	require.Same(t, fallback, GetReqLogger(ctx, fallback))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.DebugLevel)
	base := zap.New(core).Sugar()

	r := gin.New()
	r.Use(RequestLogger(base))
	r.GET("/api/stats", func(c *gin.Context) {
		GetReqLogger(c, nil).Infow("handled")
		c.Status(http.StatusNoContent)
	})

	t.Run("generates request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.NotEmpty(t, w.Header().Get(RequestIDHeader))

		entries := recorded.TakeAll()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		require.Equal(t, w.Header().Get(RequestIDHeader), fields["requestID"])
		require.Equal(t, "/api/stats", fields["path"])
	})

	t.Run("reuses incoming request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		r.ServeHTTP(w, req)
		require.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
		require.Equal(t, "req-42", recorded.TakeAll()[0].ContextMap()["requestID"])
	})
}

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		l, err := NewLogger(debug)
		require.NoError(t, err)
		require.Equal(t, debug, l.Core().Enabled(zap.DebugLevel))
	}
}

func TestEscalationFields(t *testing.T) {
	require.Equal(t, []interface{}{"escalation", "e-1", "sessionID", "s-1"}, EscalationFields("e-1", "s-1"))
	require.Equal(t, []interface{}{"escalation", "e-1"}, EscalationFields("e-1", ""))
}
