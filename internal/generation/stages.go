package generation

import (
	"fmt"
	"strings"
)

// Stage keys of the fixed project pipeline.
const (
	StageProductPlan           = "productPlan"
	StageTechnicalArchitecture = "technicalArchitecture"
	StageUXWireframes          = "uxWireframes"
	StageDesignSystem          = "designSystem"
	StageBackendScaffold       = "backendScaffold"
	StageDeploymentConfig      = "deploymentConfig"
)

// DefaultStages returns the six-stage project pipeline. Every stage is
// required and each prompt depends only on the input.
func DefaultStages() []Stage {
	return []Stage{
		{
			Key: StageProductPlan, Title: "Product Plan", Required: true,
			Prompt: sectionPrompt("a product plan",
				"Vision and problem statement",
				"Target users and personas",
				"Core features prioritised as MVP, next and later",
				"Success metrics",
				"Milestones with rough timeline",
				"Risks and mitigations"),
		},
		{
			Key: StageTechnicalArchitecture, Title: "Technical Architecture", Required: true,
			Prompt: sectionPrompt("a technical architecture document",
				"System overview and component diagram (as a text list)",
				"Technology choices with one-line rationale each",
				"Data model with main entities and relationships",
				"API surface",
				"Security and scalability considerations"),
		},
		{
			Key: StageUXWireframes, Title: "UX Wireframes", Required: true,
			Prompt: sectionPrompt("textual UX wireframe descriptions",
				"Primary user flows",
				"Screen-by-screen layout descriptions",
				"Navigation structure",
				"Empty, loading and error states",
				"Accessibility notes"),
		},
		{
			Key: StageDesignSystem, Title: "Design System", Required: true,
			Prompt: sectionPrompt("a design system",
				"Color palette with hex values and usage",
				"Typography scale",
				"Spacing and layout grid",
				"Core components and their variants",
				"Tone of voice"),
		},
		{
			Key: StageBackendScaffold, Title: "Backend Scaffold", Required: true,
			Prompt: sectionPrompt("a backend scaffold",
				"Directory layout",
				"Entry point and routing skeleton as code blocks",
				"Data access layer outline",
				"Configuration and environment variables",
				"Testing approach"),
		},
		{
			Key: StageDeploymentConfig, Title: "Deployment Configuration", Required: true,
			Prompt: sectionPrompt("a deployment configuration",
				"Container build file",
				"Local development compose file",
				"CI pipeline definition",
				"Production hosting recommendation",
				"Monitoring and backup plan"),
		},
	}
}

func sectionPrompt(artifact string, sections ...string) PromptBuilder {
	return func(in ProjectInput) string {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Write %s for the project below.\n\n", artifact)
		writeProjectContext(&sb, in)
		sb.WriteString("\nCover the following sections, using Markdown headings:\n")
		for i, s := range sections {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
		}
		sb.WriteString("\nBe concrete and specific to this project. Do not ask follow-up questions.\n")
		return sb.String()
	}
}

func writeProjectContext(sb *strings.Builder, in ProjectInput) {
	sb.WriteString("## Project\n")
	if in.Name != "" {
		fmt.Fprintf(sb, "Name: %s\n", in.Name)
	}
	fmt.Fprintf(sb, "Description: %s\n", strings.TrimSpace(in.Description))
	if in.TargetAudience != "" {
		fmt.Fprintf(sb, "Target audience: %s\n", in.TargetAudience)
	}
	writeList(sb, "Preferred tech stack", in.TechStack)
	writeList(sb, "Key features", in.Features)
	writeList(sb, "Constraints", in.Constraints)
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", label)
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			fmt.Fprintf(sb, "- %s\n", it)
		}
	}
}
