package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/storage"
	"resumeBuilder/internal/tasks"
)

// TaskEnqueuer 把任务投递到队列。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExportStorage 是导出接口需要的对象存储能力。
type ExportStorage interface {
	Stat(ctx context.Context, objectKey string) (storage.ObjectMeta, error)
	DownloadURL(ctx context.Context, objectKey string, ttl time.Duration, filename string) (string, error)
	PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error)
}

// ExportHandler 负责导出任务的提交与下载链接签发。
type ExportHandler struct {
	queue    TaskEnqueuer
	storage  ExportStorage
	maxRetry int
	linkTTL  time.Duration
}

func NewExportHandler(queue TaskEnqueuer, storageClient ExportStorage, maxRetry int, linkTTL time.Duration) *ExportHandler {
	if linkTTL <= 0 {
		linkTTL = 5 * time.Minute
	}
	return &ExportHandler{queue: queue, storage: storageClient, maxRetry: maxRetry, linkTTL: linkTTL}
}

// Create 以请求时刻的活动文档提交导出任务，完成结果通过 WebSocket 推送。
func (h *ExportHandler) Create(c *gin.Context) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}

	payload := tasks.ExportPDFPayload{
		ExportID:      uuid.NewString(),
		DeviceID:      ws.DeviceID,
		CorrelationID: middleware.GetCorrelationID(c),
		Document:      ws.Editor.Document(),
	}
	logger := middleware.LoggerFromContext(c).With(slog.String("export_id", payload.ExportID))

	task, err := tasks.NewExportPDFTask(payload)
	if err != nil {
		logger.Error("build export task failed", slog.Any("error", err))
		Internal(c, "failed to create export task")
		return
	}
	info, err := h.queue.EnqueueContext(c.Request.Context(), task, asynq.MaxRetry(h.maxRetry))
	if err != nil {
		logger.Error("enqueue export task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue export task")
		return
	}

	logger.Info("export task enqueued", slog.String("task_id", info.ID))
	c.JSON(http.StatusAccepted, gin.H{
		"export_id":  payload.ExportID,
		"object_key": payload.ObjectKey(),
		"status":     "pending",
	})
}

type exportItem struct {
	ObjectKey    string    `json:"object_key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	PreviewURL   string    `json:"preview_url,omitempty"`
}

// List 列出当前设备已完成的导出文件，最新的在前。
func (h *ExportHandler) List(c *gin.Context) {
	deviceID := middleware.GetDeviceID(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	// 每个导出对应 PDF 与缩略图两个对象。
	objects, err := h.storage.ListObjects(ctx, tasks.ExportPrefix(deviceID), limit*2)
	if err != nil {
		logger.Error("list exports failed", slog.Any("error", err))
		Internal(c, "failed to list exports")
		return
	}

	previews := make(map[string]bool, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, ".jpg") {
			previews[obj.Key] = true
		}
	}

	items := make([]exportItem, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".pdf") {
			continue
		}
		item := exportItem{ObjectKey: obj.Key, Size: obj.Size, LastModified: obj.LastModified}
		if previewKey := tasks.PreviewObjectKey(obj.Key); previews[previewKey] {
			url, err := h.storage.PresignedURL(ctx, previewKey, h.linkTTL)
			if err != nil {
				logger.Warn("presign export preview failed", slog.String("object_key", previewKey), slog.Any("error", err))
			} else {
				item.PreviewURL = url
			}
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastModified.After(items[j].LastModified)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// DownloadLink 为当前设备的导出文件签发限时下载链接。
func (h *ExportHandler) DownloadLink(c *gin.Context) {
	deviceID := middleware.GetDeviceID(c)
	objectKey := strings.TrimSpace(c.Query("key"))
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if !isValidExportObjectKey(deviceID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.String("object_key", objectKey))

	if _, err := h.storage.Stat(ctx, objectKey); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			NotFound(c, "export not ready")
			return
		}
		logger.Error("stat export failed", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}

	url, err := h.storage.DownloadURL(ctx, objectKey, h.linkTTL, exportFilename(objectKey))
	if err != nil {
		logger.Error("generate download url failed", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(h.linkTTL.Seconds())})
}

func exportFilename(objectKey string) string {
	return "resume-" + strings.TrimSuffix(path.Base(objectKey), ".pdf") + ".pdf"
}
