package handlers

import (
	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/cache"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/httpapi/middleware"
	"github.com/gin-gonic/gin"
)

type loginReq struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	ident := req.Email
	if ident == "" {
		ident = req.Username
	}

	res, err := h.Auth.Login(c.Request.Context(), auth.LoginInput{
		Identifier: ident,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{
		"session_key": res.SessionKey,
		"user_id":     res.UserID,
		"expires_in":  int64(res.ExpiresIn.Seconds()),
		"source":      string(cache.SourcePrimary),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context(), c.GetString(middleware.SessionKeyKey)); err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"message": "logged out"})
}
