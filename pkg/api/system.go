package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/telekom/frontdesk/pkg/apiresponses"
	"github.com/telekom/frontdesk/pkg/callback"
	"github.com/telekom/frontdesk/pkg/metrics"
	"github.com/telekom/frontdesk/pkg/system"
	"github.com/telekom/frontdesk/pkg/version"
)

const healthTimeout = 2 * time.Second

// instrument counts every request by method, matched route and status code.
func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.APIRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Connections int    `json:"connections"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{Status: "healthy", Store: "ok"}
	if s.deps.Hub != nil {
		resp.Connections = s.deps.Hub.Count()
	}
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			system.GetReqLogger(c, s.log).Warnw("Health check failed", "error", err)
			resp.Status = "unhealthy"
			resp.Store = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	apiresponses.RespondOK(c, resp)
}

func (s *Server) handleVersion(c *gin.Context) {
	apiresponses.RespondOK(c, version.GetBuildInfo())
}

func (s *Server) handleCallbacks(c *gin.Context) {
	msgs := s.deps.Callbacks.Recent()
	if msgs == nil {
		msgs = []callback.Message{}
	}
	apiresponses.RespondOK(c, msgs)
}
