package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"resumeBuilder/internal/render"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/tasks"
)

// TemplatePreviewHandler 用示例简历渲染模板并上传缩略图，供模板目录展示。
type TemplatePreviewHandler struct {
	printer Printer
	storage Uploader
	logger  *slog.Logger
}

func NewTemplatePreviewHandler(printer Printer, storage Uploader, logger *slog.Logger) *TemplatePreviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplatePreviewHandler{printer: printer, storage: storage, logger: logger}
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return fmt.Errorf("decode template preview payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("template", string(payload.Template)),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("starting template preview generation")

	doc := render.Sample()
	doc.SelectedTemplate = payload.Template
	html, err := render.Render(doc)
	if err != nil {
		if errors.Is(err, resume.ErrInvalidTemplate) {
			log.Warn("unknown template, skipping task")
			return nil
		}
		return err
	}

	out, err := h.printer.Print(ctx, string(html))
	if err != nil {
		log.Error("render template page failed", slog.Any("error", err))
		return err
	}
	if len(out.Preview) == 0 {
		return errors.New("template preview screenshot is empty")
	}

	objectName := tasks.TemplatePreviewKey(payload.Template)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(out.Preview), int64(len(out.Preview)), "image/jpeg"); err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		return err
	}

	log.Info("template preview generation completed", slog.String("object_key", objectName))
	return nil
}
