package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/assistant"
	"resumeBuilder/internal/editor"
	"resumeBuilder/internal/remote"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/workspace"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }
func BadGateway(c *gin.Context, msg string) { Error(c, http.StatusBadGateway, msg) }

// respondError 把领域错误翻译为 HTTP 响应。校验类错误直接返回原因，
// 其余错误只记录日志，对外给出笼统的提示。
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, resume.ErrInvalidTemplate),
		errors.Is(err, resume.ErrUnknownSection),
		errors.Is(err, resume.ErrMalformedDocument),
		errors.Is(err, editor.ErrIndexOutOfRange),
		errors.Is(err, assistant.ErrEmptySeed),
		errors.Is(err, assistant.ErrInvalidMode):
		BadRequest(c, err.Error())
	case errors.Is(err, remote.ErrNotSignedIn):
		Error(c, http.StatusUnauthorized, remote.ErrNotSignedIn.Error())
	case errors.Is(err, remote.ErrNotFound):
		NotFound(c, remote.ErrNotFound.Error())
	case errors.Is(err, remote.ErrOtherOwner):
		Conflict(c, remote.ErrOtherOwner.Error())
	default:
		_ = c.Error(err)
		middleware.LoggerFromContext(c).Error("request failed", slog.Any("error", err))
		BadGateway(c, "remote service unavailable, please try again")
	}
}

// workspaceFrom 取出当前请求的工作区，缺失时直接返回 500。
func workspaceFrom(c *gin.Context) (*workspace.Workspace, bool) {
	ws, ok := middleware.GetWorkspace(c)
	if !ok {
		Internal(c, "workspace unavailable")
		return nil, false
	}
	return ws, true
}
