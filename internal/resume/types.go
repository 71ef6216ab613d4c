package resume

import (
	"strings"
	"time"
)

// Document 表示一份完整的简历内容，以及模板选择与可选的远端元数据。
// JSON 结构与浏览器端快照保持一致，本地快照与远端 payload 可以互通。
type Document struct {
	PersonalInfo     PersonalInfo     `json:"personalInfo"`
	Education        []Education      `json:"education"`
	Skills           string           `json:"skills"`
	Projects         []Project        `json:"projects"`
	WorkExperience   []WorkExperience `json:"workExperience"`
	Certifications   []Certification  `json:"certifications"`
	Hobbies          string           `json:"hobbies"`
	SelectedTemplate Template         `json:"selectedTemplate"`

	// 以下字段仅在远端同步后存在。
	ID        uint       `json:"id,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// PersonalInfo 描述联系人信息。
type PersonalInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Education 表示一条教育经历。
type Education struct {
	Degree    string `json:"degree"`
	Year      string `json:"year"`
	Institute string `json:"institute"`
}

// Project 表示一条项目经历。
type Project struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// WorkExperience 表示一条工作经历。
type WorkExperience struct {
	JobTitle    string `json:"jobTitle"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

// Certification 表示一条证书。
type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Year   string `json:"year"`
}

// NewDocument 返回会话开始时的默认文档：标量为空，每个列表各含一条空白条目。
func NewDocument() Document {
	return Document{
		Education:        []Education{{}},
		Projects:         []Project{{}},
		WorkExperience:   []WorkExperience{{}},
		Certifications:   []Certification{{}},
		SelectedTemplate: TemplateSimple,
	}
}

// SkillList 按逗号切分技能文本，去除首尾空白并丢弃空项，保持原有顺序。
func (d Document) SkillList() []string {
	return SplitSkills(d.Skills)
}

// SplitSkills 是 SkillList 的纯函数形式。
func SplitSkills(text string) []string {
	parts := strings.Split(text, ",")
	skills := make([]string, 0, len(parts))
	for _, part := range parts {
		if token := strings.TrimSpace(part); token != "" {
			skills = append(skills, token)
		}
	}
	return skills
}

// Synced 表示文档是否已经拥有远端 ID。
func (d Document) Synced() bool {
	return d.ID != 0
}

// Clone 返回深拷贝，调用方可以自由修改而不影响原文档。
func (d Document) Clone() Document {
	out := d
	out.Education = cloneSlice(d.Education)
	out.Projects = cloneSlice(d.Projects)
	out.WorkExperience = cloneSlice(d.WorkExperience)
	out.Certifications = cloneSlice(d.Certifications)
	out.CreatedAt = cloneTime(d.CreatedAt)
	out.UpdatedAt = cloneTime(d.UpdatedAt)
	return out
}

// Content 返回去掉远端元数据后的副本，即远端 resumes.data 中保存的内容。
func (d Document) Content() Document {
	out := d.Clone()
	out.ID = 0
	out.UserID = ""
	out.CreatedAt = nil
	out.UpdatedAt = nil
	return out
}

// normalize 把 nil 列表替换为空列表，保证序列化结果稳定。
func (d *Document) normalize() {
	if d.Education == nil {
		d.Education = []Education{}
	}
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	if d.WorkExperience == nil {
		d.WorkExperience = []WorkExperience{}
	}
	if d.Certifications == nil {
		d.Certifications = []Certification{}
	}
}

func cloneSlice[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
