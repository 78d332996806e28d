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

// CreateKnowledgeRequest is the body of POST /api/knowledge-base. Older agents
// send question and answer as query parameters, which are accepted as well.
type CreateKnowledgeRequest struct {
	Question string `json:"question" form:"question"`
	Answer   string `json:"answer" form:"answer"`
}

type KnowledgeController struct {
	log       *zap.SugaredLogger
	knowledge *escalation.KnowledgeBase
}

func NewKnowledgeController(log *zap.SugaredLogger, knowledge *escalation.KnowledgeBase) *KnowledgeController {
	return &KnowledgeController{log: log, knowledge: knowledge}
}

func (kc *KnowledgeController) BasePath() string {
	return "knowledge-base"
}

func (kc *KnowledgeController) Handlers() []gin.HandlerFunc {
	return nil
}

func (kc *KnowledgeController) Register(rg *gin.RouterGroup) error {
	rg.GET("", kc.handleList)
	rg.POST("", kc.handleCreate)
	rg.GET("export", kc.handleExport)
	rg.GET("entries/:id", kc.handleGet)
	rg.POST("entries/:id/use", kc.handleUse)
	return nil
}

func (kc *KnowledgeController) handleList(c *gin.Context) {
	entries, err := kc.knowledge.List(c.Request.Context())
	if err != nil {
		apiresponses.RespondError(c, err, "knowledge entry", "", "list knowledge entries", system.GetReqLogger(c, kc.log))
		return
	}
	if entries == nil {
		entries = []*frontdeskv1.KnowledgeEntry{}
	}
	apiresponses.RespondOK(c, entries)
}

func (kc *KnowledgeController) handleCreate(c *gin.Context) {
	reqLog := system.GetReqLogger(c, kc.log)

	var req CreateKnowledgeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apiresponses.RespondBadRequestWithDetails(c, "malformed request body", err.Error())
			return
		}
	} else if err := c.ShouldBindQuery(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "malformed query", err.Error())
		return
	}

	k, err := kc.knowledge.CreateManual(c.Request.Context(), req.Question, req.Answer)
	if err != nil {
		apiresponses.RespondError(c, err, "knowledge entry", "", "create knowledge entry", reqLog)
		return
	}
	reqLog.Infow("Knowledge entry created", "knowledge", k.ID)
	apiresponses.RespondCreated(c, k)
}

func (kc *KnowledgeController) handleGet(c *gin.Context) {
	id := c.Param("id")
	k, err := kc.knowledge.Get(c.Request.Context(), id)
	if err != nil {
		apiresponses.RespondError(c, err, "knowledge entry", id, "get knowledge entry", system.GetReqLogger(c, kc.log))
		return
	}
	apiresponses.RespondOK(c, k)
}

func (kc *KnowledgeController) handleUse(c *gin.Context) {
	id := c.Param("id")
	k, err := kc.knowledge.IncrementUseCount(c.Request.Context(), id)
	if err != nil {
		apiresponses.RespondError(c, err, "knowledge entry", id, "record knowledge use", system.GetReqLogger(c, kc.log))
		return
	}
	apiresponses.RespondOK(c, k)
}

func (kc *KnowledgeController) handleExport(c *gin.Context) {
	m, err := kc.knowledge.ExportAsMap(c.Request.Context())
	if err != nil {
		apiresponses.RespondError(c, err, "knowledge base", "", "export knowledge base", system.GetReqLogger(c, kc.log))
		return
	}
	apiresponses.RespondOK(c, m)
}
