package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/workspace"
)

const workspaceKey = "workspace"

// WorkspaceMiddleware 按设备 id 取出（或恢复）工作区并注入上下文。
// 必须在 DeviceIDMiddleware 之后注册。
func WorkspaceMiddleware(registry *workspace.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := GetDeviceID(c)
		if deviceID == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "device id missing"})
			return
		}
		c.Set(workspaceKey, registry.Get(c.Request.Context(), deviceID))
		c.Next()
	}
}

// GetWorkspace 返回当前请求的工作区。
func GetWorkspace(c *gin.Context) (*workspace.Workspace, bool) {
	value, ok := c.Get(workspaceKey)
	if !ok {
		return nil, false
	}
	ws, ok := value.(*workspace.Workspace)
	return ws, ok && ws != nil
}
