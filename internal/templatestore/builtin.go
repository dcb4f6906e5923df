package templatestore

import "blueprint/internal/generation"

// Builtin returns the templates seeded into an empty store.
func Builtin() []generation.ProjectTemplate {
	return []generation.ProjectTemplate{
		{
			ID:          "saas-starter",
			Name:        "SaaS Starter",
			Category:    "web",
			Description: "Subscription web product with auth, billing and an admin area.",
			Structure:   []string{"cmd/server", "internal/billing", "internal/auth", "web/"},
			Dependencies: map[string]string{
				"stripe":   "billing",
				"postgres": "primary store",
			},
			Config: map[string]string{"auth": "email+oauth", "billing": "monthly"},
			Prompts: []generation.SectionPrompt{
				{SectionKey: "productPlan", Title: "Product Plan",
					PromptTemplate: "Write a product plan for {{name}}, a {{category}} SaaS: {{description}}. Include pricing tiers and an MVP feature list."},
				{SectionKey: "dataModel", Title: "Data Model",
					PromptTemplate: "Design the relational data model (tables, keys, indexes) for this SaaS: {{description}}."},
				{SectionKey: "billingFlow", Title: "Billing Flow",
					PromptTemplate: "Describe subscription billing flows (trial, upgrade, dunning, cancellation) for: {{description}}."},
			},
			RecommendedModels: []string{"gpt-4o", "claude-3-5-sonnet"},
		},
		{
			ID:          "mobile-app",
			Name:        "Mobile App",
			Category:    "mobile",
			Description: "Cross-platform mobile client backed by a small API.",
			Structure:   []string{"app/", "api/"},
			Prompts: []generation.SectionPrompt{
				{SectionKey: "screens", Title: "Screens",
					PromptTemplate: "List every screen of the mobile app with its purpose and main components: {{description}}."},
				{SectionKey: "offlineSync", Title: "Offline Sync",
					PromptTemplate: "Propose an offline-first sync strategy with conflict resolution for: {{description}}."},
				{SectionKey: "releasePlan", Title: "Release Plan",
					PromptTemplate: "Write an app-store release checklist and beta testing plan."},
			},
			RecommendedModels: []string{"gemini-2.5-flash", "gpt-4o-mini"},
		},
		{
			ID:          "data-api",
			Name:        "Data API",
			Category:    "backend",
			Description: "Read-heavy HTTP API over an analytical dataset.",
			Structure:   []string{"cmd/api", "internal/query", "internal/cache"},
			Prompts: []generation.SectionPrompt{
				{SectionKey: "apiDesign", Title: "API Design",
					PromptTemplate: "Design REST endpoints with request and response examples for {{name}}: {{description}}."},
				{SectionKey: "caching", Title: "Caching",
					PromptTemplate: "Describe a caching and invalidation strategy for: {{description}}."},
			},
			RecommendedModels: []string{"llama-3.3-70b", "gpt-4o-mini"},
		},
	}
}
