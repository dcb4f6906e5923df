package templatestore

import (
	"context"
	"strings"
	"sync"

	"blueprint/internal/generation"
)

// MemoryStore keeps templates in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]generation.ProjectTemplate
}

func NewMemoryStore(templates ...generation.ProjectTemplate) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]generation.ProjectTemplate, len(templates))}
	for _, t := range templates {
		t = normalize(t)
		s.byID[t.ID] = t
	}
	return s
}

func (s *MemoryStore) GetTemplate(_ context.Context, id string) (generation.ProjectTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return generation.ProjectTemplate{}, notFound(id)
	}
	return t, nil
}

func (s *MemoryStore) ListTemplates(_ context.Context, category string) ([]generation.ProjectTemplate, error) {
	category = normalizeCategory(category)
	s.mu.RLock()
	out := make([]generation.ProjectTemplate, 0, len(s.byID))
	for _, t := range s.byID {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()
	sortByID(out)
	return out, nil
}

func (s *MemoryStore) PutTemplate(_ context.Context, t generation.ProjectTemplate) error {
	t = normalize(t)
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[t.ID] = t
	return nil
}

func (s *MemoryStore) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	if _, ok := s.byID[id]; !ok {
		return notFound(id)
	}
	delete(s.byID, id)
	return nil
}
