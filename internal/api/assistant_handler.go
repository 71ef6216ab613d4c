package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/assistant"
)

// Suggester 生成文本建议。
type Suggester interface {
	Suggest(ctx context.Context, seed string, mode assistant.Mode) (assistant.Suggestion, error)
}

type AssistantHandler struct {
	assistant Suggester
}

func NewAssistantHandler(a Suggester) *AssistantHandler {
	return &AssistantHandler{assistant: a}
}

type suggestRequest struct {
	Seed string `json:"seed"`
	Mode string `json:"mode" binding:"required"`
}

// Suggest 返回建议文本；模型不可用时返回兜底文案并附带提示。
func (h *AssistantHandler) Suggest(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	mode, err := assistant.ParseMode(req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}
	suggestion, err := h.assistant.Suggest(c.Request.Context(), req.Seed, mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}
