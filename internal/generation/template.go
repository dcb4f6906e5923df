package generation

import (
	"context"
	"errors"
	"strings"
)

var ErrTemplateNotFound = errors.New("template not found")

// SectionPrompt is one section of a template.
type SectionPrompt struct {
	SectionKey     string `json:"sectionKey" yaml:"section_key"`
	Title          string `json:"title,omitempty" yaml:"title"`
	PromptTemplate string `json:"promptTemplate" yaml:"prompt_template"`
}

// ProjectTemplate is a stored, reusable project blueprint. The engine
// treats it as immutable input.
type ProjectTemplate struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Category          string            `json:"category" yaml:"category"`
	Description       string            `json:"description,omitempty" yaml:"description"`
	Structure         []string          `json:"structure,omitempty" yaml:"structure"`
	Dependencies      map[string]string `json:"dependencies,omitempty" yaml:"dependencies"`
	Config            map[string]string `json:"config,omitempty" yaml:"config"`
	Prompts           []SectionPrompt   `json:"prompts" yaml:"prompts"`
	RecommendedModels []string          `json:"recommendedModels,omitempty" yaml:"recommended_models"`
}

// TemplateSource is the template store port. GetTemplate returns an error
// wrapping ErrTemplateNotFound for unknown ids; an empty category lists all.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (ProjectTemplate, error)
	ListTemplates(ctx context.Context, category string) ([]ProjectTemplate, error)
}

// Placeholders recognised in prompt templates.
const (
	PlaceholderDescription = "{{description}}"
	PlaceholderName        = "{{name}}"
	PlaceholderCategory    = "{{category}}"
)

// RenderSectionPrompt substitutes placeholders. A template without any
// placeholder gets the description appended.
func RenderSectionPrompt(tpl ProjectTemplate, promptTemplate, description string) string {
	description = strings.TrimSpace(description)
	if !strings.Contains(promptTemplate, PlaceholderDescription) &&
		!strings.Contains(promptTemplate, PlaceholderName) &&
		!strings.Contains(promptTemplate, PlaceholderCategory) {
		return strings.TrimRight(promptTemplate, "\n") + "\n\nProject description: " + description
	}
	r := strings.NewReplacer(
		PlaceholderDescription, description,
		PlaceholderName, tpl.Name,
		PlaceholderCategory, tpl.Category,
	)
	return r.Replace(promptTemplate)
}

// Validate reports structural defects of a template.
func (t ProjectTemplate) Validate() error {
	verr := validationError()
	if strings.TrimSpace(t.ID) == "" {
		verr.Add("template id is required")
	}
	if len(t.Prompts) == 0 {
		verr.Add("template %q defines no prompt sections", t.ID)
	}
	seen := map[string]struct{}{}
	for i, p := range t.Prompts {
		key := strings.TrimSpace(p.SectionKey)
		if key == "" {
			verr.Add("template %q section #%d: sectionKey is required", t.ID, i)
			continue
		}
		if _, dup := seen[key]; dup {
			verr.Add("template %q: duplicate sectionKey %q", t.ID, key)
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(p.PromptTemplate) == "" {
			verr.Add("template %q section %q: promptTemplate is required", t.ID, key)
		}
	}
	return verr.OrNil()
}
