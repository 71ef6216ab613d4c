package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/resume"
)

// ResumeHandler 负责活动文档与远端存储之间的保存、列表与加载。
type ResumeHandler struct{}

func NewResumeHandler() *ResumeHandler {
	return &ResumeHandler{}
}

// Save 保存活动文档；未登录返回 401 并提示先登录。
func (h *ResumeHandler) Save(c *gin.Context) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	doc, err := ws.Remote.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEditorResponse(doc))
}

type savedListResponse struct {
	Items []resume.Document `json:"items"`
	Stale bool              `json:"stale"`
}

// List 返回当前身份保存过的简历。查询失败时返回上一次的列表并标记 stale。
func (h *ResumeHandler) List(c *gin.Context) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	docs, err := ws.Remote.ListSaved(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusOK, savedListResponse{Items: docs, Stale: true})
		return
	}
	c.JSON(http.StatusOK, savedListResponse{Items: docs})
}

// Load 用 :id 对应的远端简历替换活动文档。
func (h *ResumeHandler) Load(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid resume id")
		return
	}
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	doc, err := ws.Remote.Load(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEditorResponse(doc))
}
