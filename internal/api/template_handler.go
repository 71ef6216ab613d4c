package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/storage"
	"resumeBuilder/internal/tasks"
)

// PreviewStorage 读取模板缩略图。
type PreviewStorage interface {
	Stat(ctx context.Context, objectKey string) (storage.ObjectMeta, error)
	PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// TemplateHandler 提供模板目录，以及运维侧的缩略图重建入口。
type TemplateHandler struct {
	storage PreviewStorage
	queue   TaskEnqueuer
}

func NewTemplateHandler(storageClient PreviewStorage, queue TaskEnqueuer) *TemplateHandler {
	return &TemplateHandler{storage: storageClient, queue: queue}
}

type templateItem struct {
	resume.TemplateInfo
	PreviewURL string `json:"preview_url,omitempty"`
}

// List 返回固定的模板目录。缩略图缺失不影响目录本身。
func (h *TemplateHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	catalogue := resume.Templates()
	items := make([]templateItem, 0, len(catalogue))
	for _, info := range catalogue {
		item := templateItem{TemplateInfo: info}
		if h.storage != nil {
			key := tasks.TemplatePreviewKey(info.ID)
			if _, err := h.storage.Stat(ctx, key); err == nil {
				if url, err := h.storage.PresignedURL(ctx, key, time.Hour); err == nil {
					item.PreviewURL = url
				}
			} else if !storage.IsNoSuchKey(err) {
				logger.Warn("stat template preview failed", slog.String("template", string(info.ID)), slog.Any("error", err))
			}
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// RefreshPreviews 为每个模板投递一次缩略图生成任务。
func (h *TemplateHandler) RefreshPreviews(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	queued := make([]resume.Template, 0)
	for _, info := range resume.Templates() {
		task, err := tasks.NewTemplatePreviewTask(tasks.TemplatePreviewPayload{
			Template:      info.ID,
			CorrelationID: middleware.GetCorrelationID(c),
		})
		if err != nil {
			logger.Error("build template preview task failed", slog.Any("error", err))
			continue
		}
		if _, err := h.queue.EnqueueContext(ctx, task); err != nil {
			logger.Error("enqueue template preview failed", slog.String("template", string(info.ID)), slog.Any("error", err))
			continue
		}
		queued = append(queued, info.ID)
	}
	if len(queued) == 0 {
		Internal(c, "failed to enqueue template previews")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}
