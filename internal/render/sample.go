package render

import "resumeBuilder/internal/resume"

// Sample 返回用于模板缩略图的示例简历，每个区块都有内容。
func Sample() resume.Document {
	return resume.Document{
		PersonalInfo: resume.PersonalInfo{
			FullName: "Jordan Lee",
			Email:    "jordan.lee@example.com",
			Phone:    "+1 555 0100",
		},
		Education: []resume.Education{
			{Degree: "B.Sc. Computer Science", Year: "2018", Institute: "State University"},
		},
		Skills: "Go, PostgreSQL, Redis, Kubernetes, TypeScript",
		Projects: []resume.Project{
			{Title: "Invoice Pipeline", Description: "Event-driven billing pipeline processing two million invoices a month."},
		},
		WorkExperience: []resume.WorkExperience{
			{JobTitle: "Senior Backend Engineer", Duration: "2021 - Present", Description: "Led the payments platform team and cut p99 latency by 40%."},
			{JobTitle: "Software Engineer", Duration: "2018 - 2021", Description: "Built internal tooling for release automation."},
		},
		Certifications: []resume.Certification{
			{Name: "Certified Kubernetes Administrator", Issuer: "CNCF", Year: "2022"},
		},
		Hobbies:          "Climbing, Chess",
		SelectedTemplate: resume.TemplateSimple,
	}
}
