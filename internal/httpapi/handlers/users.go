package handlers

import (
	"net/http"

	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/users"
	"github.com/gin-gonic/gin"
)

// CreateUser is public registration.
func (h *Handler) CreateUser(c *gin.Context) {
	var req users.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	v, err := h.Users.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Created(c, v)
}

func (h *Handler) Me(c *gin.Context) {
	id := identity(c)
	v, src, err := h.Users.Get(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), v)
}

func (h *Handler) GetUserByID(c *gin.Context) {
	v, src, err := h.Users.GetOwn(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), v)
}

func (h *Handler) ListUsers(c *gin.Context) {
	p, err := bindPage(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	page, src, err := h.Users.List(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), page)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var req users.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	v, err := h.Users.Update(c.Request.Context(), identity(c).UserID, c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, v)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.Users.Delete(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetMemory(c *gin.Context) {
	m, src, err := h.Users.GetMemory(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), m)
}

type memoryReq struct {
	MemorySummary string `json:"memory_summary" binding:"required"`
}

func (h *Handler) PutMemory(c *gin.Context) {
	var req memoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	m, err := h.Users.PutMemory(c.Request.Context(), identity(c).UserID, req.MemorySummary)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, m)
}
