package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/editor"
	"resumeBuilder/internal/render"
	"resumeBuilder/internal/resume"
)

const maxImportBytes = 1 << 20

var errMaliciousFile = errors.New("malicious file detected")

// Scanner 扫描上传内容，发现威胁时返回 errMaliciousFile。
type Scanner interface {
	Scan(r io.Reader) error
}

// EditorHandler 暴露活动文档的读取与编辑操作。
type EditorHandler struct {
	scanner Scanner
}

func NewEditorHandler(scanner Scanner) *EditorHandler {
	return &EditorHandler{scanner: scanner}
}

type editorResponse struct {
	Document resume.Document `json:"document"`
	Skills   []string        `json:"skills"`
	Template resume.Template `json:"template"`
}

func newEditorResponse(doc resume.Document) editorResponse {
	return editorResponse{
		Document: doc,
		Skills:   doc.SkillList(),
		Template: doc.SelectedTemplate,
	}
}

// Get 返回活动文档、派生的技能列表与当前模板。
func (h *EditorHandler) Get(c *gin.Context) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newEditorResponse(ws.Editor.Document()))
}

// Preview 以当前模板渲染活动文档。
func (h *EditorHandler) Preview(c *gin.Context) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	html, err := render.Render(ws.Editor.Document())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *EditorHandler) UpdatePersonalInfo(c *gin.Context) {
	var patch editor.PersonalInfoPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.apply(c, func(ws *editor.Store) error {
		return ws.UpdatePersonalInfo(c.Request.Context(), patch)
	})
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *EditorHandler) UpdateSkills(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.apply(c, func(ws *editor.Store) error {
		return ws.UpdateSkills(c.Request.Context(), req.Text)
	})
}

func (h *EditorHandler) UpdateHobbies(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.apply(c, func(ws *editor.Store) error {
		return ws.UpdateHobbies(c.Request.Context(), req.Text)
	})
}

type templateRequest struct {
	Template string `json:"template" binding:"required"`
}

func (h *EditorHandler) UpdateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.apply(c, func(ws *editor.Store) error {
		return ws.UpdateTemplate(c.Request.Context(), resume.Template(req.Template))
	})
}

// AddEntry 在 :section 末尾追加空白条目。
func (h *EditorHandler) AddEntry(c *gin.Context) {
	section, err := resume.ParseSection(c.Param("section"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.apply(c, func(ws *editor.Store) error {
		return ws.Add(c.Request.Context(), section)
	})
}

// UpdateEntry 把请求体浅合并到 :section[:index]。
func (h *EditorHandler) UpdateEntry(c *gin.Context) {
	section, index, ok := sectionAndIndex(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var update func(ws *editor.Store) error
	switch section {
	case resume.SectionEducation:
		var patch editor.EducationPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			BadRequest(c, err.Error())
			return
		}
		update = func(ws *editor.Store) error { return ws.UpdateEducation(ctx, index, patch) }
	case resume.SectionProjects:
		var patch editor.ProjectPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			BadRequest(c, err.Error())
			return
		}
		update = func(ws *editor.Store) error { return ws.UpdateProject(ctx, index, patch) }
	case resume.SectionWorkExperience:
		var patch editor.WorkExperiencePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			BadRequest(c, err.Error())
			return
		}
		update = func(ws *editor.Store) error { return ws.UpdateWorkExperience(ctx, index, patch) }
	case resume.SectionCertifications:
		var patch editor.CertificationPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			BadRequest(c, err.Error())
			return
		}
		update = func(ws *editor.Store) error { return ws.UpdateCertification(ctx, index, patch) }
	}
	h.apply(c, update)
}

// RemoveEntry 删除 :section[:index]，后续条目前移。
func (h *EditorHandler) RemoveEntry(c *gin.Context) {
	section, index, ok := sectionAndIndex(c)
	if !ok {
		return
	}
	h.apply(c, func(ws *editor.Store) error {
		return ws.Remove(c.Request.Context(), section, index)
	})
}

// Import 用上传的 JSON 文档替换活动文档。远端元数据会被丢弃。
func (h *EditorHandler) Import(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxImportBytes {
		Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxImportBytes+1))
	if err != nil {
		Internal(c, "failed to read file")
		return
	}
	if len(raw) > maxImportBytes {
		Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	logger := middleware.LoggerFromContext(c).With(slog.String("filename", file.Filename))
	if h.scanner != nil {
		if err := h.scanner.Scan(bytes.NewReader(raw)); err != nil {
			if errors.Is(err, errMaliciousFile) {
				logger.Warn("import rejected by scanner", slog.Any("error", err))
				BadRequest(c, errMaliciousFile.Error())
				return
			}
			logger.Error("scan import failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	doc, err := resume.Decode(raw)
	if err != nil {
		respondError(c, err)
		return
	}
	h.apply(c, func(ws *editor.Store) error {
		return ws.Replace(c.Request.Context(), doc.Content())
	})
}

// apply 执行一次变更并返回变更后的文档。
func (h *EditorHandler) apply(c *gin.Context, mutate func(ws *editor.Store) error) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	if err := mutate(ws.Editor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEditorResponse(ws.Editor.Document()))
}

func sectionAndIndex(c *gin.Context) (resume.Section, int, bool) {
	section, err := resume.ParseSection(c.Param("section"))
	if err != nil {
		respondError(c, err)
		return "", 0, false
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		BadRequest(c, fmt.Sprintf("invalid index %q", c.Param("index")))
		return "", 0, false
	}
	return section, index, true
}

// ClamdScanner 通过 clamd 扫描上传内容。
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 在 addr 为空时返回 nil，表示不扫描。
func NewClamdScanner(addr string) Scanner {
	if addr == "" {
		return nil
	}
	return &ClamdScanner{client: clamd.NewClamd(addr)}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("clamd scan stream: %w", err)
	}
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			return fmt.Errorf("%w: %s", errMaliciousFile, result.Description)
		default:
			return fmt.Errorf("clamd scan: %s %s", result.Status, result.Description)
		}
	}
	return nil
}
