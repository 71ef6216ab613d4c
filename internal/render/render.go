package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"resumeBuilder/internal/resume"
)

//go:embed layout.html.tmpl
var templateFS embed.FS

var page = template.Must(template.ParseFS(templateFS, "layout.html.tmpl"))

type item struct {
	Title    string
	Subtitle string
	Meta     string
	Body     string
}

type section struct {
	Kind    blockKind
	Heading string
	Items   []item
	Tags    []string
	AsTags  bool
	Text    string
}

type view struct {
	Template    resume.Template
	Name        string
	Email       string
	Phone       string
	Font        template.CSS
	BaseSize    template.CSS
	Accent      template.CSS
	Header      template.CSS
	HeaderText  template.CSS
	HeaderAlign template.CSS
	Main        []section
	Side        []section
}

// Render 按文档选择的模板生成独立的 HTML 页面。空字段显示占位文字。
func Render(doc resume.Document) ([]byte, error) {
	th, ok := themes[doc.SelectedTemplate]
	if !ok {
		return nil, fmt.Errorf("%w: %q", resume.ErrInvalidTemplate, doc.SelectedTemplate)
	}

	v := view{
		Template:    doc.SelectedTemplate,
		Name:        orDefault(doc.PersonalInfo.FullName, "Your Name"),
		Email:       doc.PersonalInfo.Email,
		Phone:       doc.PersonalInfo.Phone,
		Font:        template.CSS(th.Font),
		BaseSize:    template.CSS(th.BaseSize),
		Accent:      template.CSS(th.Accent),
		Header:      template.CSS(orDefault(th.Header, "transparent")),
		HeaderText:  template.CSS(orDefault(th.HeaderText, "inherit")),
		HeaderAlign: template.CSS(th.HeaderAlign),
		Main:        buildSections(doc, th, th.Main),
		Side:        buildSections(doc, th, th.Side),
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.SelectedTemplate, err)
	}
	return buf.Bytes(), nil
}

func buildSections(doc resume.Document, th theme, kinds []blockKind) []section {
	out := make([]section, 0, len(kinds))
	for _, kind := range kinds {
		s, visible := buildSection(doc, th, kind)
		if visible {
			out = append(out, s)
		}
	}
	return out
}

// buildSection 返回区块内容，以及该区块是否需要显示。
func buildSection(doc resume.Document, th theme, kind blockKind) (section, bool) {
	s := section{Kind: kind, Heading: th.Headings[kind]}

	switch kind {
	case blockSkills:
		s.Tags = doc.SkillList()
		s.AsTags = th.SkillsAsTag
		return s, len(s.Tags) > 0
	case blockExperience:
		for _, e := range doc.WorkExperience {
			s.Items = append(s.Items, item{
				Title: orDefault(e.JobTitle, "Position"),
				Meta:  orDefault(e.Duration, "Duration"),
				Body:  orDefault(e.Description, "Job description"),
			})
		}
		return s, len(s.Items) > 0
	case blockProjects:
		for _, p := range doc.Projects {
			s.Items = append(s.Items, item{
				Title: orDefault(p.Title, "Project Title"),
				Body:  orDefault(p.Description, "Project description"),
			})
		}
		return s, len(s.Items) > 0
	case blockEducation:
		for _, e := range doc.Education {
			s.Items = append(s.Items, item{
				Title:    orDefault(e.Degree, "Degree"),
				Subtitle: orDefault(e.Institute, "Institute"),
				Meta:     orDefault(e.Year, "Year"),
			})
		}
		return s, len(s.Items) > 0
	case blockCertifications:
		// 第一条证书没有名称时整个区块隐藏。
		if len(doc.Certifications) == 0 || doc.Certifications[0].Name == "" {
			return s, false
		}
		for _, c := range doc.Certifications {
			s.Items = append(s.Items, item{
				Title:    orDefault(c.Name, orDefault(th.CertPlaceholder, "Certification")),
				Subtitle: c.Issuer,
				Meta:     c.Year,
			})
		}
		return s, true
	case blockInterests:
		s.Text = doc.Hobbies
		return s, doc.Hobbies != ""
	default:
		return s, false
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
