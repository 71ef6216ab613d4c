package render

import "resumeBuilder/internal/resume"

type blockKind string

const (
	blockSkills         blockKind = "skills"
	blockExperience     blockKind = "experience"
	blockProjects       blockKind = "projects"
	blockEducation      blockKind = "education"
	blockCertifications blockKind = "certifications"
	blockInterests      blockKind = "interests"
)

// theme 描述一个模板的版式：区块顺序、标题文字与配色。
// Side 非空时使用左侧栏布局。
type theme struct {
	Font        string
	BaseSize    string
	Accent      string
	Header      string
	HeaderText  string
	HeaderAlign string
	SkillsAsTag bool
	Main        []blockKind
	Side        []blockKind
	Headings    map[blockKind]string
	// CertPlaceholder 是证书名称为空时显示的文字。
	CertPlaceholder string
}

const (
	fontSans  = `"Helvetica Neue", Arial, sans-serif`
	fontSerif = `Georgia, "Times New Roman", serif`
)

var upperHeadings = map[blockKind]string{
	blockSkills:         "SKILLS",
	blockExperience:     "WORK EXPERIENCE",
	blockProjects:       "PROJECTS",
	blockEducation:      "EDUCATION",
	blockCertifications: "CERTIFICATIONS",
	blockInterests:      "INTERESTS",
}

var themes = map[resume.Template]theme{
	resume.TemplateSimple: {
		Font: fontSans, BaseSize: "12px", Accent: "#1f2937", HeaderAlign: "left", SkillsAsTag: true,
		Main: []blockKind{blockSkills, blockExperience, blockEducation, blockProjects, blockCertifications, blockInterests},
		Headings: map[blockKind]string{
			blockSkills:         "Skills",
			blockExperience:     "Work Experience",
			blockEducation:      "Education",
			blockProjects:       "Projects",
			blockCertifications: "Certifications",
			blockInterests:      "Hobbies & Interests",
		},
		CertPlaceholder: "Certification Name",
	},
	resume.TemplateModern: {
		Font: fontSans, BaseSize: "12px", Accent: "#1e40af", Header: "#1e40af", HeaderText: "#ffffff", HeaderAlign: "left",
		Side:     []blockKind{blockSkills, blockEducation, blockCertifications, blockInterests},
		Main:     []blockKind{blockExperience, blockProjects},
		Headings: upperHeadings,
	},
	resume.TemplateMinimalist: {
		Font: fontSans, BaseSize: "13px", Accent: "#9ca3af", HeaderAlign: "left",
		Main: []blockKind{blockExperience, blockProjects, blockEducation, blockSkills, blockCertifications, blockInterests},
		Headings: map[blockKind]string{
			blockExperience:     "EXPERIENCE",
			blockProjects:       "PROJECTS",
			blockEducation:      "EDUCATION",
			blockSkills:         "SKILLS",
			blockCertifications: "CERTIFICATIONS",
			blockInterests:      "INTERESTS",
		},
	},
	resume.TemplateProfessional: {
		Font: fontSerif, BaseSize: "12px", Accent: "#b45309", Header: "#1f2937", HeaderText: "#ffffff", HeaderAlign: "center",
		Main: []blockKind{blockSkills, blockExperience, blockProjects, blockEducation, blockCertifications, blockInterests},
		Headings: map[blockKind]string{
			blockSkills:         "PROFESSIONAL SKILLS",
			blockExperience:     "WORK EXPERIENCE",
			blockProjects:       "KEY PROJECTS",
			blockEducation:      "EDUCATION",
			blockCertifications: "CERTIFICATIONS",
			blockInterests:      "INTERESTS",
		},
	},
	resume.TemplateCompact: {
		Font: fontSans, BaseSize: "10px", Accent: "#374151", HeaderAlign: "left",
		Side: []blockKind{blockSkills, blockEducation, blockCertifications, blockInterests},
		Main: []blockKind{blockExperience, blockProjects},
		Headings: map[blockKind]string{
			blockSkills:         "Skills",
			blockEducation:      "Education",
			blockCertifications: "Certifications",
			blockInterests:      "Interests",
			blockExperience:     "Work Experience",
			blockProjects:       "Projects",
		},
	},
	resume.TemplateCreative: {
		Font: fontSans, BaseSize: "11px", Accent: "#9333ea", Header: "linear-gradient(90deg, #9333ea, #ec4899)", HeaderText: "#ffffff", HeaderAlign: "left", SkillsAsTag: true,
		Side: []blockKind{blockSkills, blockEducation, blockCertifications, blockInterests},
		Main: []blockKind{blockExperience, blockProjects},
		Headings: map[blockKind]string{
			blockSkills:         "SKILLS",
			blockEducation:      "EDUCATION",
			blockCertifications: "CERTIFICATIONS",
			blockInterests:      "INTERESTS",
			blockExperience:     "EXPERIENCE",
			blockProjects:       "PROJECTS",
		},
	},
	resume.TemplateExecutive: {
		Font: fontSerif, BaseSize: "12px", Accent: "#111827", Header: "linear-gradient(90deg, #1f2937, #111827)", HeaderText: "#ffffff", HeaderAlign: "left",
		Main: []blockKind{blockSkills, blockExperience, blockProjects, blockEducation, blockCertifications, blockInterests},
		Headings: map[blockKind]string{
			blockSkills:         "CORE COMPETENCIES",
			blockExperience:     "PROFESSIONAL EXPERIENCE",
			blockProjects:       "KEY INITIATIVES",
			blockEducation:      "EDUCATION",
			blockCertifications: "CERTIFICATIONS",
			blockInterests:      "INTERESTS",
		},
	},
	resume.TemplateATS: {
		Font: `Arial, sans-serif`, BaseSize: "12px", Accent: "#000000", HeaderAlign: "left",
		Main: []blockKind{blockSkills, blockExperience, blockProjects, blockEducation, blockCertifications, blockInterests},
		Headings: map[blockKind]string{
			blockSkills:         "Skills",
			blockExperience:     "Professional Experience",
			blockProjects:       "Projects",
			blockEducation:      "Education",
			blockCertifications: "Certifications",
			blockInterests:      "Interests",
		},
	},
}
