// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/apiresponses"
	"github.com/telekom/frontdesk/pkg/escalation"
	"github.com/telekom/frontdesk/pkg/system"
)

// CreateHelpRequest is the body of POST /api/help-requests.
type CreateHelpRequest struct {
	Question   string `json:"question"`
	CallerInfo string `json:"caller_info"`
	SessionID  string `json:"session_id"`
}

// AnswerHelpRequest is the body of PUT /api/help-requests/:id/answer. Without a body
// the same fields are read from the query string.
// answered_by is accepted as an alias for supervisor_name.
type AnswerHelpRequest struct {
	Answer         string `json:"answer" form:"answer"`
	SupervisorName string `json:"supervisor_name" form:"supervisor_name"`
	AnsweredBy     string `json:"answered_by" form:"answered_by"`
}

func (r AnswerHelpRequest) operator() string {
	if r.SupervisorName != "" {
		return r.SupervisorName
	}
	return r.AnsweredBy
}

// HelpRequestController exposes escalations to operators and to the voice agent.
type HelpRequestController struct {
	log     *zap.SugaredLogger
	manager *escalation.Manager
}

func NewHelpRequestController(log *zap.SugaredLogger, manager *escalation.Manager) *HelpRequestController {
	return &HelpRequestController{log: log, manager: manager}
}

func (hc *HelpRequestController) BasePath() string {
	return "help-requests"
}

func (hc *HelpRequestController) Handlers() []gin.HandlerFunc {
	return nil
}

func (hc *HelpRequestController) Register(rg *gin.RouterGroup) error {
	rg.GET("", hc.handleList)
	rg.POST("", hc.handleCreate)
	rg.GET(":id", hc.handleGet)
	rg.PUT(":id/answer", hc.handleAnswer)
	return nil
}

func (hc *HelpRequestController) handleList(c *gin.Context) {
	reqLog := system.GetReqLogger(c, hc.log)

	var opts escalation.ListOptions
	if raw := c.Query("status"); raw != "" {
		status, err := frontdeskv1.ParseEscalationStatus(raw)
		if err != nil {
			apiresponses.RespondBadRequest(c, err.Error())
			return
		}
		opts.Status = status
	}

	list, err := hc.manager.List(c.Request.Context(), opts)
	if err != nil {
		apiresponses.RespondError(c, err, "help request", "", "list help requests", reqLog)
		return
	}
	if list == nil {
		list = []*frontdeskv1.Escalation{}
	}
	apiresponses.RespondOK(c, list)
}

func (hc *HelpRequestController) handleGet(c *gin.Context) {
	id := c.Param("id")
	e, err := hc.manager.Get(c.Request.Context(), id)
	if err != nil {
		apiresponses.RespondError(c, err, "help request", id, "get help request", system.GetReqLogger(c, hc.log))
		return
	}
	apiresponses.RespondOK(c, e)
}

func (hc *HelpRequestController) handleCreate(c *gin.Context) {
	reqLog := system.GetReqLogger(c, hc.log)

	var req CreateHelpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "malformed request body", err.Error())
		return
	}

	e, err := hc.manager.Create(c.Request.Context(), req.Question, req.CallerInfo, req.SessionID)
	if err != nil {
		apiresponses.RespondError(c, err, "help request", "", "create help request", reqLog)
		return
	}
	reqLog.Infow("Help request created", system.EscalationFields(e.ID, e.SessionID)...)
	apiresponses.RespondCreated(c, e)
}

func (hc *HelpRequestController) handleAnswer(c *gin.Context) {
	id := c.Param("id")
	reqLog := system.GetReqLogger(c, hc.log).With("escalation", id)

	var req AnswerHelpRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apiresponses.RespondBadRequestWithDetails(c, "malformed request body", err.Error())
			return
		}
	} else if err := c.ShouldBindQuery(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "malformed query", err.Error())
		return
	}

	e, err := hc.manager.Resolve(c.Request.Context(), id, req.Answer, req.operator())
	if err != nil {
		reqLog.Debugw("Answer rejected", "error", err)
		apiresponses.RespondError(c, err, "help request", id, "answer help request", reqLog)
		return
	}
	apiresponses.RespondOK(c, e)
}

// HandleStats serves the per-status breakdown. It is mounted at /api/stats.
func (hc *HelpRequestController) HandleStats(c *gin.Context) {
	st, err := hc.manager.Stats(c.Request.Context())
	if err != nil {
		apiresponses.RespondError(c, err, "stats", "", "compute stats", system.GetReqLogger(c, hc.log))
		return
	}
	apiresponses.RespondOK(c, st)
}
