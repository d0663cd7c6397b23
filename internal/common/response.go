package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// FailErr writes the envelope for an *AppError and aborts the chain.
func FailErr(c *gin.Context, e *AppError) {
	Fail(c, e.Status, e.Code, e.Message)
	c.Abort()
}

// OKFrom is OK for cache-aside reads: source says where data was served from.
func OKFrom(c *gin.Context, source string, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"source":  source,
		"data":    data,
	})
}
