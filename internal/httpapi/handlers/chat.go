package handlers

import (
	"net/http"

	"github.com/devedd/neurochat/internal/chat"
	"github.com/devedd/neurochat/internal/common"
	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateChatSession(c *gin.Context) {
	var req chat.CreateSessionInput
	// an empty body takes every default
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}
	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), identity(c).UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Created(c, sess)
}

func (h *Handler) GetChatSession(c *gin.Context) {
	sess, src, err := h.ChatSvc.GetSession(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), sess)
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	p, err := bindPage(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	page, src, err := h.ChatSvc.ListSessions(c.Request.Context(), identity(c).UserID, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), page)
}

func (h *Handler) UpdateChatSession(c *gin.Context) {
	var req chat.UpdateSessionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	sess, err := h.ChatSvc.UpdateSession(c.Request.Context(), identity(c).UserID, c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, sess)
}

func (h *Handler) DeleteChatSession(c *gin.Context) {
	if err := h.ChatSvc.DeleteSession(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateChatMessage(c *gin.Context) {
	var req chat.CreateMessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	msg, err := h.ChatSvc.CreateMessage(c.Request.Context(), identity(c).UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Created(c, msg)
}

func (h *Handler) GetChatMessage(c *gin.Context) {
	msg, src, err := h.ChatSvc.GetMessage(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), msg)
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	p, err := bindPage(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	page, src, err := h.ChatSvc.ListMessages(c.Request.Context(), identity(c).UserID, c.Param("session_id"), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), page)
}

func (h *Handler) DeleteChatMessage(c *gin.Context) {
	if err := h.ChatSvc.DeleteMessage(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
