package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/pdf"
	"resumeBuilder/internal/render"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/tasks"
)

// Printer 把 HTML 打印为 PDF。
type Printer interface {
	Print(ctx context.Context, html string) (pdf.Output, error)
}

// Uploader 上传对象到私有 Bucket。
type Uploader interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// ExportHandler 消费 PDF 导出任务：渲染、打印、上传，然后通知设备。
type ExportHandler struct {
	printer   Printer
	storage   Uploader
	publisher Publisher
	logger    *slog.Logger

	finalAttempt func(ctx context.Context) bool
}

func NewExportHandler(printer Printer, storage Uploader, publisher Publisher, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{
		printer:      printer,
		storage:      storage,
		publisher:    publisher,
		logger:       logger,
		finalAttempt: isFinalAsynqAttempt,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.ExportPDFPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("decode export payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("device_id", payload.DeviceID),
		slog.String("export_id", payload.ExportID),
	)
	log.Info("starting pdf export")

	defer func() {
		if retErr == nil {
			return
		}
		// 不可重试的错误立即通知；其余错误只在最后一次尝试后通知。
		if !errors.Is(retErr, asynq.SkipRetry) && !h.finalAttempt(ctx) {
			return
		}
		notify := ExportNotifyMessage{
			Status:        StatusError,
			ExportID:      payload.ExportID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishNotify(ctx, h.publisher, payload.DeviceID, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	html, err := render.Render(payload.Document)
	if err != nil {
		log.Error("render resume failed", slog.Any("error", err))
		if errors.Is(err, resume.ErrInvalidTemplate) {
			return fmt.Errorf("render: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	out, err := h.printer.Print(ctx, string(html))
	if err != nil {
		log.Error("print pdf failed", slog.Any("error", err))
		return err
	}

	objectKey := payload.ObjectKey()
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(out.PDF), int64(len(out.PDF)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	notify := ExportNotifyMessage{
		Status:        StatusCompleted,
		ExportID:      payload.ExportID,
		ObjectKey:     objectKey,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}

	// 缩略图缺失不影响导出结果，只在通知里标记。
	if len(out.Preview) == 0 {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "preview unavailable"
	} else {
		previewKey := tasks.PreviewObjectKey(objectKey)
		if _, err := h.storage.UploadFile(ctx, previewKey, bytes.NewReader(out.Preview), int64(len(out.Preview)), "image/jpeg"); err != nil {
			log.Warn("upload export preview failed", slog.Any("error", err))
			notify.ErrorCode = errcode.ResourceMissing
			notify.ErrorMessage = "preview unavailable"
		}
	}
	if err := publishNotify(ctx, h.publisher, payload.DeviceID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("pdf export completed", slog.String("object_key", objectKey), slog.Int("bytes", len(out.PDF)))
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
