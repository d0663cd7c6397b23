package handlers

import (
	"errors"
	"net/http"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/chat"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/httpapi/middleware"
	"github.com/devedd/neurochat/internal/pagination"
	"github.com/devedd/neurochat/internal/store/redisstore"
	"github.com/devedd/neurochat/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	DB      *gorm.DB
	Cache   *redisstore.Store
	Auth    *auth.Authenticator
	Users   *users.Service
	ChatSvc *chat.Service
	Log     *zap.Logger
}

func NewHandler(db *gorm.DB, store *redisstore.Store, a *auth.Authenticator, log *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Cache:   store,
		Auth:    a,
		Users:   users.NewService(db, store, a.Verifier(), log),
		ChatSvc: chat.NewService(db, store, log),
		Log:     log.Named("http"),
	}
}

// fail writes err as an envelope. Anything that is not an *AppError is logged
// and reported as an internal error.
func (h *Handler) fail(c *gin.Context, err error) {
	var ae *common.AppError
	if errors.As(err, &ae) {
		if ae.Status >= http.StatusInternalServerError {
			h.Log.Error("request failed", zap.String("request_id", c.GetString(middleware.RequestIDKey)), zap.Error(err))
		}
		common.FailErr(c, ae)
		return
	}
	h.Log.Error("unexpected error",
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	common.FailErr(c, common.ErrInternal)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	common.FailErr(c, common.ErrValidation.WithMessage("invalid request: "+err.Error()))
}

func identity(c *gin.Context) *auth.Identity {
	id, _ := auth.IdentityFrom(c)
	return id
}

func bindPage(c *gin.Context) (pagination.Params, error) {
	var p pagination.Params
	err := c.ShouldBindQuery(&p)
	return p, err
}
