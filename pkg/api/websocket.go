// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/telekom/frontdesk/pkg/notify"
	"github.com/telekom/frontdesk/pkg/system"
)

// The operator UI is served from the same origin or, in debug mode, from the
// vite dev server, so origins are not checked here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleSupervisorSocket(c *gin.Context) {
	reqLog := system.GetReqLogger(c, s.log)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		reqLog.Debugw("Websocket upgrade failed", "error", err)
		return
	}

	wc := notify.NewWSConnection(conn)
	reqLog.Infow("Operator connected", "connection", wc.ID(), "remote", c.ClientIP())
	if err := notify.Serve(s.ctx, s.deps.Hub, wc, reqLog); err != nil {
		reqLog.Debugw("Operator connection ended with error", "connection", wc.ID(), "error", err)
	}
	reqLog.Infow("Operator disconnected", "connection", wc.ID())
}
