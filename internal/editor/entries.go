package editor

import (
	"context"

	"resumeBuilder/internal/resume"
)

// EducationPatch 中为 nil 的字段保持不变。
type EducationPatch struct {
	Degree    *string `json:"degree"`
	Year      *string `json:"year"`
	Institute *string `json:"institute"`
}

type ProjectPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type WorkExperiencePatch struct {
	JobTitle    *string `json:"jobTitle"`
	Duration    *string `json:"duration"`
	Description *string `json:"description"`
}

type CertificationPatch struct {
	Name   *string `json:"name"`
	Issuer *string `json:"issuer"`
	Year   *string `json:"year"`
}

func (s *Store) AddEducation(ctx context.Context) error {
	return s.Add(ctx, resume.SectionEducation)
}

// UpdateEducation 浅合并 patch 到 index 处的教育经历。
func (s *Store) UpdateEducation(ctx context.Context, index int, patch EducationPatch) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		entry, err := entryAt(resume.SectionEducation, doc.Education, index)
		if err != nil {
			return err
		}
		assign(&entry.Degree, patch.Degree)
		assign(&entry.Year, patch.Year)
		assign(&entry.Institute, patch.Institute)
		return nil
	})
}

func (s *Store) RemoveEducation(ctx context.Context, index int) error {
	return s.Remove(ctx, resume.SectionEducation, index)
}

func (s *Store) AddProject(ctx context.Context) error {
	return s.Add(ctx, resume.SectionProjects)
}

// UpdateProject 浅合并 patch 到 index 处的项目经历。
func (s *Store) UpdateProject(ctx context.Context, index int, patch ProjectPatch) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		entry, err := entryAt(resume.SectionProjects, doc.Projects, index)
		if err != nil {
			return err
		}
		assign(&entry.Title, patch.Title)
		assign(&entry.Description, patch.Description)
		return nil
	})
}

func (s *Store) RemoveProject(ctx context.Context, index int) error {
	return s.Remove(ctx, resume.SectionProjects, index)
}

func (s *Store) AddWorkExperience(ctx context.Context) error {
	return s.Add(ctx, resume.SectionWorkExperience)
}

// UpdateWorkExperience 浅合并 patch 到 index 处的工作经历。
func (s *Store) UpdateWorkExperience(ctx context.Context, index int, patch WorkExperiencePatch) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		entry, err := entryAt(resume.SectionWorkExperience, doc.WorkExperience, index)
		if err != nil {
			return err
		}
		assign(&entry.JobTitle, patch.JobTitle)
		assign(&entry.Duration, patch.Duration)
		assign(&entry.Description, patch.Description)
		return nil
	})
}

func (s *Store) RemoveWorkExperience(ctx context.Context, index int) error {
	return s.Remove(ctx, resume.SectionWorkExperience, index)
}

func (s *Store) AddCertification(ctx context.Context) error {
	return s.Add(ctx, resume.SectionCertifications)
}

// UpdateCertification 浅合并 patch 到 index 处的证书。
func (s *Store) UpdateCertification(ctx context.Context, index int, patch CertificationPatch) error {
	return s.mutate(ctx, func(doc *resume.Document) error {
		entry, err := entryAt(resume.SectionCertifications, doc.Certifications, index)
		if err != nil {
			return err
		}
		assign(&entry.Name, patch.Name)
		assign(&entry.Issuer, patch.Issuer)
		assign(&entry.Year, patch.Year)
		return nil
	})
}

func (s *Store) RemoveCertification(ctx context.Context, index int) error {
	return s.Remove(ctx, resume.SectionCertifications, index)
}
