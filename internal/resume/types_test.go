package resume

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSplitSkills(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"React, Node.js ,  , Go", []string{"React", "Node.js", "Go"}},
		{"", []string{}},
		{" , ,", []string{}},
		{"Go", []string{"Go"}},
		{"a,,b", []string{"a", "b"}},
	}
	for _, tc := range cases {
		got := SplitSkills(tc.in)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("SplitSkills(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
		again := SplitSkills(tc.in)
		if diff := cmp.Diff(got, again); diff != "" {
			t.Errorf("SplitSkills(%q) not idempotent:\n%s", tc.in, diff)
		}
	}
}

func TestNewDocumentSeeded(t *testing.T) {
	doc := NewDocument()
	if doc.SelectedTemplate != TemplateSimple {
		t.Fatalf("expected simple template, got %q", doc.SelectedTemplate)
	}
	for _, section := range Sections() {
		if n := doc.Len(section); n != 1 {
			t.Errorf("section %s: expected one blank entry, got %d", section, n)
		}
	}
	if doc.PersonalInfo != (PersonalInfo{}) || doc.Skills != "" || doc.Hobbies != "" {
		t.Fatalf("expected blank scalars, got %+v", doc)
	}
	if doc.Synced() {
		t.Fatal("fresh document must not carry a remote id")
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	doc := NewDocument()
	doc.UpdatedAt = &now

	clone := doc.Clone()
	clone.Education[0].Degree = "BSc"
	*clone.UpdatedAt = now.Add(time.Hour)

	if doc.Education[0].Degree != "" {
		t.Fatal("clone shares education slice with original")
	}
	if !doc.UpdatedAt.Equal(now) {
		t.Fatal("clone shares timestamp with original")
	}
}

func TestContentStripsRemoteMetadata(t *testing.T) {
	now := time.Now()
	doc := NewDocument()
	doc.ID = 7
	doc.UserID = "u-1"
	doc.CreatedAt = &now
	doc.UpdatedAt = &now

	raw, err := json.Marshal(doc.Content())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "userId", "createdAt", "updatedAt"} {
		if _, ok := fields[key]; ok {
			t.Errorf("content still carries %q", key)
		}
	}
}

func TestParseTemplate(t *testing.T) {
	for _, info := range Templates() {
		if _, err := ParseTemplate(string(info.ID)); err != nil {
			t.Errorf("ParseTemplate(%q): %v", info.ID, err)
		}
	}
	if len(Templates()) != 8 {
		t.Fatalf("expected 8 templates, got %d", len(Templates()))
	}
	if _, err := ParseTemplate("fancy"); !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	doc := NewDocument()
	doc.PersonalInfo.FullName = "Ada Lovelace"
	doc.Skills = "Math, Engines"
	doc.SelectedTemplate = TemplateATS
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	inputs := map[string]string{
		"not json":        `{"personalInfo":`,
		"bad template":    `{"personalInfo":{},"education":[],"skills":"","projects":[],"workExperience":[],"certifications":[],"hobbies":"","selectedTemplate":"fancy"}`,
		"missing lists":   `{"personalInfo":{},"skills":"","hobbies":"","selectedTemplate":"simple"}`,
		"wrong item type": `{"personalInfo":{},"education":[{"degree":3}],"skills":"","projects":[],"workExperience":[],"certifications":[],"hobbies":"","selectedTemplate":"simple"}`,
	}
	for name, raw := range inputs {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("%s: expected ErrMalformedDocument, got %v", name, err)
		}
	}
}

func TestParseSection(t *testing.T) {
	for in, want := range map[string]Section{
		"education":       SectionEducation,
		"projects":        SectionProjects,
		"work-experience": SectionWorkExperience,
		"certifications":  SectionCertifications,
	} {
		got, err := ParseSection(in)
		if err != nil || got != want {
			t.Errorf("ParseSection(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSection("hobbies"); !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("expected ErrUnknownSection, got %v", err)
	}
}
