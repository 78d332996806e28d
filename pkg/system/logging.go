// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-ID"

// NewLogger builds the process logger: development config with debug enabled,
// production JSON otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// RequestLogger stores a request-scoped logger tagged with a request id. An
// incoming X-Request-ID header is reused.
func RequestLogger(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Set(ReqLoggerKey, base.With("requestID", id, "method", c.Request.Method, "path", c.FullPath()))
		c.Next()
	}
}

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise returns the fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// EscalationFields returns key/value pairs for SugaredLogger.With or Infow calls.
// The session id is only included when set.
func EscalationFields(id, sessionID string) []interface{} {
	if sessionID == "" {
		return []interface{}{"escalation", id}
	}
	return []interface{}{"escalation", id, "sessionID", sessionID}
}
