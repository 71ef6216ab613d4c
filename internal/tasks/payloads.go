package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"resumeBuilder/internal/resume"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeExportPDF       = "export:pdf"
	TypeTemplatePreview = "template:preview"
)

// ExportPDFPayload 携带入队时刻的文档快照，导出内容与点击导出时的预览一致。
type ExportPDFPayload struct {
	ExportID      string          `json:"export_id"`
	DeviceID      string          `json:"device_id"`
	CorrelationID string          `json:"correlation_id"`
	Document      resume.Document `json:"document"`
}

// ObjectKey 返回导出文件在对象存储中的位置。
func (p ExportPDFPayload) ObjectKey() string {
	return ExportObjectKey(p.DeviceID, p.ExportID)
}

// NewExportPDFTask 构造一个 PDF 导出任务。
func NewExportPDFTask(p ExportPDFPayload) (*asynq.Task, error) {
	if p.DeviceID == "" || p.ExportID == "" {
		return nil, fmt.Errorf("export task requires device id and export id")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExportPDF, payload), nil
}

// TemplatePreviewPayload 请求为某个模板重新生成目录缩略图。
type TemplatePreviewPayload struct {
	Template      resume.Template `json:"template"`
	CorrelationID string          `json:"correlation_id"`
}

func NewTemplatePreviewTask(p TemplatePreviewPayload) (*asynq.Task, error) {
	if !p.Template.Valid() {
		return nil, fmt.Errorf("%w: %q", resume.ErrInvalidTemplate, p.Template)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTemplatePreview, payload), nil
}

// TemplatePreviewKey 返回模板缩略图的对象位置。
func TemplatePreviewKey(t resume.Template) string {
	return "templates/" + string(t) + ".jpg"
}

// ExportPrefix 是某个设备全部导出文件的前缀。
func ExportPrefix(deviceID string) string {
	return "exports/" + deviceID + "/"
}

func ExportObjectKey(deviceID, exportID string) string {
	return ExportPrefix(deviceID) + exportID + ".pdf"
}

// PreviewObjectKey 返回与 PDF 同名的缩略图位置。
func PreviewObjectKey(pdfKey string) string {
	return strings.TrimSuffix(pdfKey, ".pdf") + ".jpg"
}

// NotifyChannel 是设备接收导出结果的 Redis 频道。
func NotifyChannel(deviceID string) string {
	return "device_notify:" + deviceID
}
