package resume

import (
	"errors"
	"fmt"
)

// ErrUnknownSection 表示列表名不在可编辑的四个有序序列之中。
var ErrUnknownSection = errors.New("unknown section")

// Section 标识文档中的有序序列。
type Section string

const (
	SectionEducation      Section = "education"
	SectionProjects       Section = "projects"
	SectionWorkExperience Section = "workExperience"
	SectionCertifications Section = "certifications"
)

// Sections 按文档顺序列出全部序列。
func Sections() []Section {
	return []Section{SectionEducation, SectionProjects, SectionWorkExperience, SectionCertifications}
}

// ParseSection 兼容 URL 中常见的 kebab-case 写法。
func ParseSection(value string) (Section, error) {
	switch value {
	case "education":
		return SectionEducation, nil
	case "projects", "project":
		return SectionProjects, nil
	case "workExperience", "work-experience", "work_experience":
		return SectionWorkExperience, nil
	case "certifications", "certification":
		return SectionCertifications, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, value)
	}
}

// Len 返回指定序列当前的条目数。
func (d Document) Len(section Section) int {
	switch section {
	case SectionEducation:
		return len(d.Education)
	case SectionProjects:
		return len(d.Projects)
	case SectionWorkExperience:
		return len(d.WorkExperience)
	case SectionCertifications:
		return len(d.Certifications)
	default:
		return 0
	}
}
