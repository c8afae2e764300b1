package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionUserKey  = "uid"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	currentUserKey  = "__current_user"
	unmatchedRoute  = "unmatched"
)

// RequestLogger 为每个请求分配 request id，结束后写访问日志并记录指标。
func (a *API) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		cost := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		a.metrics.Request(c.Request.Method, route, status, cost)

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("request_id", requestID),
			zap.Duration("cost", cost),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if status >= http.StatusInternalServerError {
			a.log.Error("request", fields...)
			return
		}
		a.log.Info("request", fields...)
	}
}

// currentUserID 返回会话中的用户 id，未登录时为空。
func currentUserID(c *gin.Context) string {
	if cached, ok := c.Get(currentUserKey); ok {
		if uid, ok := cached.(string); ok {
			return uid
		}
	}
	uid, _ := sessions.Default(c).Get(sessionUserKey).(string)
	return uid
}

// AuthRequired rejects requests without a signed-in session.
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUserID(c)
		if uid == "" {
			respondError(c, http.StatusUnauthorized, locale.MsgUnauthorized)
			c.Abort()
			return
		}
		c.Set(currentUserKey, uid)
		c.Next()
	}
}

// AdminRequired 只放行配置的管理员账号。
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUserID(c)
		if uid == "" {
			respondError(c, http.StatusUnauthorized, locale.MsgUnauthorized)
			c.Abort()
			return
		}
		account, err := a.auth.Get(c.Request.Context(), uid)
		if err != nil || a.adminEmail == "" || account.Email != a.adminEmail {
			respondError(c, http.StatusForbidden, locale.MsgForbidden)
			c.Abort()
			return
		}
		c.Set(currentUserKey, uid)
		c.Next()
	}
}
