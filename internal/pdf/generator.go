package pdf

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// PageOptions 描述纸张尺寸与页边距，单位为英寸。
type PageOptions struct {
	WidthIn  float64
	HeightIn float64
	MarginIn float64
	Timeout  time.Duration
}

// Letter 是导出使用的固定纸张：US Letter 纵向，四边 0.5 英寸。
func Letter() PageOptions {
	return PageOptions{WidthIn: 8.5, HeightIn: 11, MarginIn: 0.5, Timeout: 30 * time.Second}
}

// Output 是一次打印的结果，Preview 为首屏 JPEG 缩略图（可能为空）。
type Output struct {
	PDF     []byte
	Preview []byte
}

// Printer 使用 go-rod 在无头 Chromium 中打印 HTML。每次调用启动独立的浏览器进程。
type Printer struct {
	opts       PageOptions
	previewJPG int
}

func NewPrinter(opts PageOptions) *Printer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Printer{opts: opts, previewJPG: 80}
}

// Print 渲染 HTML 并返回 PDF 字节。缩略图截取失败不影响 PDF。
func (p *Printer) Print(ctx context.Context, html string) (Output, error) {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Context(ctx).Launch()
	if err != nil {
		return Output{}, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(browserURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return Output{}, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(p.opts.Timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return Output{}, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(p.opts.Timeout)
	if err := page.SetDocumentContent(html); err != nil {
		return Output{}, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return Output{}, fmt.Errorf("wait load: %w", err)
	}

	var out Output
	if shot, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &p.previewJPG,
	}); err == nil {
		out.Preview = shot
	}

	reader, err := page.PDF(p.printRequest())
	if err != nil {
		return Output{}, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	out.PDF, err = io.ReadAll(reader)
	if err != nil {
		return Output{}, fmt.Errorf("read pdf bytes: %w", err)
	}
	return out, nil
}

func (p *Printer) printRequest() *proto.PagePrintToPDF {
	width, height, margin := p.opts.WidthIn, p.opts.HeightIn, p.opts.MarginIn
	return &proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      &width,
		PaperHeight:     &height,
		MarginTop:       &margin,
		MarginBottom:    &margin,
		MarginLeft:      &margin,
		MarginRight:     &margin,
	}
}
