package handlers

import (
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/rbac"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) AdminListUsers(c *gin.Context) {
	p, err := bindPage(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	page, src, err := h.Users.AdminList(c.Request.Context(), identity(c).UserID, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OKFrom(c, string(src), page)
}

func (h *Handler) ActivateUser(c *gin.Context)   { h.setActive(c, true) }
func (h *Handler) DeactivateUser(c *gin.Context) { h.setActive(c, false) }

func (h *Handler) setActive(c *gin.Context, active bool) {
	v, err := h.Users.SetActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !active {
		if err := h.Auth.RevokeUserSessions(c.Request.Context(), v.ID); err != nil {
			h.Log.Warn("revoke sessions failed", zap.String("user_id", v.ID), zap.Error(err))
		}
	}
	common.OK(c, v)
}

func (h *Handler) PromoteUser(c *gin.Context) {
	v, promoted, err := h.Users.Promote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"user": v, "promoted": promoted})
}

func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := rbac.Catalog(c.Request.Context(), h.DB)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, roles)
}
