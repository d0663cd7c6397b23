package httpapi

import (
	"net/http"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/httpapi/handlers"
	"github.com/devedd/neurochat/internal/httpapi/middleware"
	"github.com/devedd/neurochat/internal/rbac"
	"github.com/devedd/neurochat/internal/store/redisstore"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, rds *redisstore.Store, a *auth.Authenticator, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log.Named("recovery")))
	r.Use(middleware.Logger(log.Named("access")))
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, rds, a, log)
	engine := rbac.NewEngine(db, log)
	authed := middleware.AuthRequired(a, log.Named("auth"))

	r.GET("/ping", h.Ping)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	// public
	v1.POST("/auth/login", h.Login)
	v1.POST("/users", h.CreateUser)

	// session required
	authGroup := v1.Group("/")
	authGroup.Use(authed)
	authGroup.POST("/auth/logout", h.Logout)

	authGroup.GET("/users", h.ListUsers)
	authGroup.GET("/users/me", h.Me)
	authGroup.GET("/users/me/memory", h.GetMemory)
	authGroup.PUT("/users/me/memory", h.PutMemory)
	authGroup.GET("/users/:id", h.GetUserByID)
	authGroup.PATCH("/users/:id", h.UpdateUser)
	authGroup.DELETE("/users/:id", h.DeleteUser)

	authGroup.POST("/sessions", h.CreateChatSession)
	authGroup.GET("/sessions", h.ListChatSessions)
	authGroup.GET("/sessions/:id", h.GetChatSession)
	authGroup.PATCH("/sessions/:id", h.UpdateChatSession)
	authGroup.DELETE("/sessions/:id", h.DeleteChatSession)

	authGroup.POST("/messages", h.CreateChatMessage)
	authGroup.GET("/messages/session/:session_id", h.ListChatMessages)
	authGroup.GET("/messages/:id", h.GetChatMessage)
	authGroup.DELETE("/messages/:id", h.DeleteChatMessage)

	// admin: mutating and list actions are permission-gated, the role catalog
	// only needs the admin flag
	admin := authGroup.Group("/admin")
	admin.GET("/users", engine.RequirePermission(rbac.PermUsersRead), h.AdminListUsers)
	admin.PATCH("/users/:id/activate", engine.RequirePermission(rbac.PermUsersActivate), h.ActivateUser)
	admin.PATCH("/users/:id/deactivate", engine.RequirePermission(rbac.PermUsersActivate), h.DeactivateUser)
	admin.PATCH("/users/:id/promote", engine.RequirePermission(rbac.PermUsersPromote), h.PromoteUser)
	admin.GET("/roles", rbac.RequireAdmin(), h.ListRoles)

	return r
}
