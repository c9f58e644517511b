package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/pkg/logger"
)

const auditBodyLimit = 2000

// AuditLog writes every mutating request to system_logs once it completes.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPatch && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = auditBody(raw)
		}

		c.Next()

		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}
		status := c.Writer.Status()
		path := logger.RoutePath(c)
		module, action := routeAction(c.FullPath(), method)
		outcome := "ok"
		if status >= http.StatusBadRequest {
			outcome = "failed"
		}

		services.RecordAudit(services.AuditEntry{
			Module:    module,
			Action:    action,
			Message:   fmt.Sprintf("%s %s %s -> %d %s", GetUsername(c), method, path, status, outcome),
			Status:    status,
			UserID:    uid,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method":    method,
				"path":      path,
				"status":    status,
				"body":      body,
				"requestId": c.GetString(ContextRequestID),
			},
		})
	}
}

// routeAction maps "/api/meridians/:id/members" + POST to ("members", "create").
func routeAction(fullPath, method string) (module, action string) {
	if strings.HasSuffix(fullPath, "/accept") {
		return "invitations", "accept"
	}
	segments := strings.Split(strings.TrimPrefix(fullPath, "/api/"), "/")
	module = "unknown"
	for i := len(segments) - 1; i >= 0; i-- {
		if s := segments[i]; s != "" && !strings.HasPrefix(s, ":") {
			module = s
			break
		}
	}

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return module, action
}

// auditBody trims the payload and hides invitation tokens and secrets.
func auditBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err == nil {
		for k := range fields {
			switch strings.ToLower(k) {
			case "token", "secret", "password":
				fields[k] = "***"
			}
		}
		if masked, err := json.Marshal(fields); err == nil {
			raw = masked
		}
	}
	s := string(raw)
	if len(s) > auditBodyLimit {
		s = s[:auditBodyLimit] + "...[truncated]"
	}
	return s
}
