package assistant

import (
	"fmt"
	"hash/fnv"
)

var projectTemplates = []string{
	"Developed a %s using modern web technologies including React, TypeScript, and Node.js. Implemented responsive design principles to ensure optimal user experience across all devices. Integrated with third-party APIs to enhance functionality and user experience.",
	"Created a feature-rich %s that streamlines workflow processes and improves productivity. Architected with scalability in mind, utilizing cloud infrastructure for deployment. Incorporated user feedback through multiple iterations to refine the user interface and experience.",
	"Designed and implemented a comprehensive %s solution that addresses key business needs. Applied best practices in code organization and documentation. Collaborated with stakeholders to ensure the final product met all requirements and exceeded expectations.",
}

var experienceTemplates = []string{
	"As a %s, led cross-functional teams in developing and maintaining enterprise-level applications. Collaborated with product managers to define project requirements and timelines. Mentored junior developers and conducted code reviews to ensure code quality and consistency.",
	"Working as a %s, spearheaded the adoption of agile methodologies resulting in a 30%% increase in team productivity. Designed and implemented microservices architecture to improve system scalability and maintainability. Participated in client meetings to gather requirements and provide technical expertise.",
	"In my role as %s, managed full software development lifecycle from planning to deployment. Reduced system downtime by 40%% through implementation of robust testing strategies. Collaborated with UI/UX designers to create intuitive and user-friendly interfaces.",
}

// Fallback 返回离线兜底文案。同一 seed 总是得到同一个变体。
func Fallback(mode Mode, seed string) string {
	switch mode {
	case ModeProject:
		return fmt.Sprintf(pick(projectTemplates, seed), seed)
	case ModeExperience:
		return fmt.Sprintf(pick(experienceTemplates, seed), seed)
	default:
		return "Enhanced and professionally reworded: " + seed
	}
}

func pick(templates []string, seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return templates[h.Sum32()%uint32(len(templates))]
}
