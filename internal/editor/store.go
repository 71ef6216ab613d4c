package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"resumeBuilder/internal/resume"
)

// ErrIndexOutOfRange 表示对有序序列的定位超出当前范围。
var ErrIndexOutOfRange = errors.New("index out of range")

// IndexError 携带越界的序列名、下标与当前长度。
type IndexError struct {
	Section resume.Section
	Index   int
	Len     int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s[%d]: index out of range (len %d)", e.Section, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// Persister 接收每次变更后的完整文档。写入失败由实现自行吞掉并记录。
type Persister interface {
	Write(ctx context.Context, doc resume.Document)
}

// RemoteMeta 是远端保存成功后需要回写到活动文档的元数据。
type RemoteMeta struct {
	ID        uint
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store 持有一个工作区唯一的活动文档。
// 所有变更串行执行，并在同一把锁内同步写入本地快照。
type Store struct {
	mu        sync.Mutex
	doc       resume.Document
	persister Persister
}

// New 以给定文档（默认文档或已恢复的快照）构造 Store。
func New(initial resume.Document, persister Persister) *Store {
	return &Store{doc: initial.Clone(), persister: persister}
}

// Document 返回活动文档的深拷贝。
func (s *Store) Document() resume.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// mutate 在锁内执行 fn；fn 成功后把新文档写入快照。
func (s *Store) mutate(ctx context.Context, fn func(doc *resume.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.doc = next

	if s.persister != nil {
		s.persister.Write(ctx, s.doc.Clone())
	}
	return nil
}

// PersonalInfoPatch 中为 nil 的字段保持不变。
type PersonalInfoPatch struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
}

// UpdatePersonalInfo 浅合并联系人信息，不做校验，空字符串同样写入。
func (s *Store) UpdatePersonalInfo(ctx context.Context, patch PersonalInfoPatch) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		assign(&doc.PersonalInfo.FullName, patch.FullName)
		assign(&doc.PersonalInfo.Email, patch.Email)
		assign(&doc.PersonalInfo.Phone, patch.Phone)
		return nil
	})
}

// UpdateSkills 整体替换技能文本。
func (s *Store) UpdateSkills(ctx context.Context, text string) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		doc.Skills = text
		return nil
	})
}

// UpdateHobbies 整体替换兴趣爱好文本。
func (s *Store) UpdateHobbies(ctx context.Context, text string) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		doc.Hobbies = text
		return nil
	})
}

// UpdateTemplate 切换模板，拒绝固定集合之外的值。
func (s *Store) UpdateTemplate(ctx context.Context, tmpl resume.Template) error {
	if !tmpl.Valid() {
		return fmt.Errorf("%w: %q", resume.ErrInvalidTemplate, tmpl)
	}
	return s.mutate(ctx, func(doc *resume.Document) error {
		doc.SelectedTemplate = tmpl
		return nil
	})
}

// Replace 用给定文档整体替换活动文档（远端加载、导入）。
func (s *Store) Replace(ctx context.Context, doc resume.Document) error {
	if !doc.SelectedTemplate.Valid() {
		return fmt.Errorf("%w: %q", resume.ErrInvalidTemplate, doc.SelectedTemplate)
	}
	return s.mutate(ctx, func(current *resume.Document) error {
		*current = doc.Clone()
		return nil
	})
}

// AdoptRemote 只回写远端元数据，保存期间发生的内容编辑不受影响。
func (s *Store) AdoptRemote(ctx context.Context, meta RemoteMeta) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		created := meta.CreatedAt
		updated := meta.UpdatedAt
		doc.ID = meta.ID
		doc.UserID = meta.UserID
		doc.CreatedAt = &created
		doc.UpdatedAt = &updated
		return nil
	})
}

// Add 在指定序列末尾追加一条空白条目。
func (s *Store) Add(ctx context.Context, section resume.Section) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		switch section {
		case resume.SectionEducation:
			doc.Education = append(doc.Education, resume.Education{})
		case resume.SectionProjects:
			doc.Projects = append(doc.Projects, resume.Project{})
		case resume.SectionWorkExperience:
			doc.WorkExperience = append(doc.WorkExperience, resume.WorkExperience{})
		case resume.SectionCertifications:
			doc.Certifications = append(doc.Certifications, resume.Certification{})
		default:
			return fmt.Errorf("%w: %q", resume.ErrUnknownSection, section)
		}
		return nil
	})
}

// Remove 删除指定下标的条目，后续条目依次前移。
func (s *Store) Remove(ctx context.Context, section resume.Section, index int) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		var err error
		switch section {
		case resume.SectionEducation:
			doc.Education, err = removeAt(section, doc.Education, index)
		case resume.SectionProjects:
			doc.Projects, err = removeAt(section, doc.Projects, index)
		case resume.SectionWorkExperience:
			doc.WorkExperience, err = removeAt(section, doc.WorkExperience, index)
		case resume.SectionCertifications:
			doc.Certifications, err = removeAt(section, doc.Certifications, index)
		default:
			err = fmt.Errorf("%w: %q", resume.ErrUnknownSection, section)
		}
		return err
	})
}

func removeAt[T any](section resume.Section, items []T, index int) ([]T, error) {
	if index < 0 || index >= len(items) {
		return items, &IndexError{Section: section, Index: index, Len: len(items)}
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:index]...)
	return append(out, items[index+1:]...), nil
}

func entryAt[T any](section resume.Section, items []T, index int) (*T, error) {
	if index < 0 || index >= len(items) {
		return nil, &IndexError{Section: section, Index: index, Len: len(items)}
	}
	return &items[index], nil
}

func assign(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}
