package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	RequestIDHeader  = "X-Request-ID"
	SessionKeyHeader = "Session-Key"

	RequestIDKey  = "request_id"
	SessionKeyKey = "session_key"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 64 {
			id, err := common.NewULID()
			if err == nil {
				rid = id
			}
		}
		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("request_id", c.GetString(RequestIDKey)),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				common.FailErr(c, common.ErrInternal)
			}
		}()
		c.Next()
	}
}

// Logger writes one line per request.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// AuthRequired resolves the Session-Key header into an identity for the rest
// of the chain.
func AuthRequired(a *auth.Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(SessionKeyHeader)
		id, err := a.Resolve(c.Request.Context(), key)
		if err != nil {
			metrics.AuthFailures.WithLabelValues(auth.FailureReason(err)).Inc()
			var ae *common.AppError
			if errors.As(err, &ae) {
				common.FailErr(c, ae)
				return
			}
			log.Error("authentication failed", zap.String("request_id", c.GetString(RequestIDKey)), zap.Error(err))
			common.FailErr(c, common.ErrInternal)
			return
		}
		auth.SetIdentity(c, id)
		c.Set(SessionKeyKey, key)
		c.Next()
	}
}
