package resume

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTemplate 表示模板标识不在固定集合内。
var ErrInvalidTemplate = errors.New("invalid template")

// Template 选择用于渲染的外部模板。
type Template string

const (
	TemplateSimple       Template = "simple"
	TemplateModern       Template = "modern"
	TemplateMinimalist   Template = "minimalist"
	TemplateProfessional Template = "professional"
	TemplateCompact      Template = "compact"
	TemplateCreative     Template = "creative"
	TemplateExecutive    Template = "executive"
	TemplateATS          Template = "ats"
)

// TemplateInfo 是模板目录中的一项。
type TemplateInfo struct {
	ID          Template `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
}

var catalogue = []TemplateInfo{
	{ID: TemplateSimple, Name: "Simple", Description: "Clean and straightforward layout"},
	{ID: TemplateModern, Name: "Modern", Description: "Contemporary design with bold accents"},
	{ID: TemplateMinimalist, Name: "Minimalist", Description: "Elegant and spacious layout"},
	{ID: TemplateProfessional, Name: "Professional", Description: "Traditional corporate style"},
	{ID: TemplateCompact, Name: "Compact", Description: "Space-efficient design for more content"},
	{ID: TemplateCreative, Name: "Creative", Description: "Colorful and unique presentation"},
	{ID: TemplateExecutive, Name: "Executive", Description: "Senior leadership layout with core competencies"},
	{ID: TemplateATS, Name: "ATS Friendly", Description: "Plain single-column layout for applicant tracking systems"},
}

// Templates 返回模板目录的副本。
func Templates() []TemplateInfo {
	out := make([]TemplateInfo, len(catalogue))
	copy(out, catalogue)
	return out
}

// Valid 判断模板是否属于固定集合。
func (t Template) Valid() bool {
	for _, info := range catalogue {
		if info.ID == t {
			return true
		}
	}
	return false
}

// ParseTemplate 校验并返回模板标识。
func ParseTemplate(value string) (Template, error) {
	t := Template(strings.TrimSpace(value))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTemplate, value)
	}
	return t, nil
}
