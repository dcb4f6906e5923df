// Package templatestore holds project templates for the template-driven
// generation path.
package templatestore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"blueprint/internal/generation"
)

// Store is a writable template source.
type Store interface {
	generation.TemplateSource
	PutTemplate(ctx context.Context, t generation.ProjectTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", generation.ErrTemplateNotFound, id)
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func normalize(t generation.ProjectTemplate) generation.ProjectTemplate {
	t.ID = strings.TrimSpace(t.ID)
	t.Category = normalizeCategory(t.Category)
	if t.Name == "" {
		t.Name = t.ID
	}
	return t
}

func sortByID(ts []generation.ProjectTemplate) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}

// Seed writes templates into s, replacing existing ids.
func Seed(ctx context.Context, s Store, templates []generation.ProjectTemplate) error {
	for _, t := range templates {
		if err := s.PutTemplate(ctx, t); err != nil {
			return fmt.Errorf("seed template %s: %w", t.ID, err)
		}
	}
	return nil
}
