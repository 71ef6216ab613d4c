package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/pdf"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/tasks"
)

type fakePrinter struct {
	out   pdf.Output
	err   error
	html  []string
	calls int
}

func (f *fakePrinter) Print(_ context.Context, html string) (pdf.Output, error) {
	f.calls++
	f.html = append(f.html, html)
	return f.out, f.err
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failOn  string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) UploadFile(_ context.Context, name string, r io.Reader, _ int64, contentType string) (*minio.UploadInfo, error) {
	if name == f.failOn {
		return nil, errors.New("minio unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = data
	f.types[name] = contentType
	return &minio.UploadInfo{Key: name, Size: int64(len(data))}, nil
}

type published struct {
	channel string
	msg     ExportNotifyMessage
}

type fakePublisher struct {
	messages []published
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	var msg ExportNotifyMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	f.messages = append(f.messages, published{channel: channel, msg: msg})
	return redis.NewIntResult(1, nil)
}

func exportTask(t *testing.T, doc resume.Document) *asynq.Task {
	t.Helper()
	task, err := tasks.NewExportPDFTask(tasks.ExportPDFPayload{
		ExportID:      "exp-1",
		DeviceID:      "dev-1",
		CorrelationID: "corr-1",
		Document:      doc,
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestExportHandlerSuccess(t *testing.T) {
	printer := &fakePrinter{out: pdf.Output{PDF: []byte("%PDF-1.7"), Preview: []byte("jpeg")}}
	store := newFakeStorage()
	pub := &fakePublisher{}
	h := NewExportHandler(printer, store, pub, nil)

	doc := resume.NewDocument()
	doc.PersonalInfo.FullName = "Ada Lovelace"
	if err := h.ProcessTask(context.Background(), exportTask(t, doc)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if string(store.objects["exports/dev-1/exp-1.pdf"]) != "%PDF-1.7" {
		t.Fatalf("pdf not uploaded: %v", store.objects)
	}
	if store.types["exports/dev-1/exp-1.jpg"] != "image/jpeg" {
		t.Fatalf("preview not uploaded: %v", store.types)
	}
	if len(printer.html) != 1 || !strings.Contains(printer.html[0], "Ada Lovelace") {
		t.Fatal("printer did not receive the rendered document")
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(pub.messages))
	}
	got := pub.messages[0]
	if got.channel != "device_notify:dev-1" {
		t.Fatalf("unexpected channel %q", got.channel)
	}
	if got.msg.Status != StatusCompleted || got.msg.ObjectKey != "exports/dev-1/exp-1.pdf" || got.msg.CorrelationID != "corr-1" || got.msg.ErrorCode != errcode.OK {
		t.Fatalf("unexpected notification %+v", got.msg)
	}
}

func TestExportHandlerPreviewFailureIsNotFatal(t *testing.T) {
	printer := &fakePrinter{out: pdf.Output{PDF: []byte("%PDF"), Preview: []byte("jpeg")}}
	store := newFakeStorage()
	store.failOn = "exports/dev-1/exp-1.jpg"
	pub := &fakePublisher{}

	if err := NewExportHandler(printer, store, pub, nil).ProcessTask(context.Background(), exportTask(t, resume.NewDocument())); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(pub.messages) != 1 || pub.messages[0].msg.Status != StatusCompleted {
		t.Fatalf("unexpected notifications %+v", pub.messages)
	}
	if pub.messages[0].msg.ErrorCode != errcode.ResourceMissing {
		t.Fatalf("missing preview should be flagged, got code %d", pub.messages[0].msg.ErrorCode)
	}
}

func TestExportHandlerInvalidTemplateSkipsRetry(t *testing.T) {
	printer := &fakePrinter{}
	pub := &fakePublisher{}
	h := NewExportHandler(printer, newFakeStorage(), pub, nil)

	doc := resume.NewDocument()
	doc.SelectedTemplate = "fancy"
	err := h.ProcessTask(context.Background(), exportTask(t, doc))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if printer.calls != 0 {
		t.Fatal("printer must not run for an invalid template")
	}
	if len(pub.messages) != 1 || pub.messages[0].msg.Status != StatusError || pub.messages[0].msg.ErrorCode != errcode.SystemError {
		t.Fatalf("expected error notification, got %+v", pub.messages)
	}
}

func TestExportHandlerNotifiesOnlyOnFinalAttempt(t *testing.T) {
	printer := &fakePrinter{err: errors.New("chromium crashed")}
	pub := &fakePublisher{}
	h := NewExportHandler(printer, newFakeStorage(), pub, nil)

	final := false
	h.finalAttempt = func(context.Context) bool { return final }

	task := exportTask(t, resume.NewDocument())
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected error")
	}
	if len(pub.messages) != 0 {
		t.Fatalf("retryable failure should not notify, got %+v", pub.messages)
	}

	final = true
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected error")
	}
	if len(pub.messages) != 1 || pub.messages[0].msg.ErrorMessage != "chromium crashed" {
		t.Fatalf("expected final error notification, got %+v", pub.messages)
	}
}

func TestExportHandlerRejectsMalformedPayload(t *testing.T) {
	h := NewExportHandler(&fakePrinter{}, newFakeStorage(), &fakePublisher{}, nil)
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeExportPDF, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestTemplatePreviewHandler(t *testing.T) {
	printer := &fakePrinter{out: pdf.Output{Preview: []byte("jpeg")}}
	store := newFakeStorage()
	h := NewTemplatePreviewHandler(printer, store, nil)

	task, err := tasks.NewTemplatePreviewTask(tasks.TemplatePreviewPayload{Template: resume.TemplateCreative})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if string(store.objects["templates/creative.jpg"]) != "jpeg" {
		t.Fatalf("thumbnail not uploaded: %v", store.objects)
	}
	if !strings.Contains(printer.html[0], "template-creative") {
		t.Fatal("sample was not rendered with the requested template")
	}

	printer.out.Preview = nil
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected error for empty screenshot")
	}
}
