package templatestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"blueprint/internal/generation"
)

// LoadDir reads every *.yaml / *.yml file in dir. A file holds either one
// template or a "templates:" list.
func LoadDir(dir string) ([]generation.ProjectTemplate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("templates: read dir %s: %w", dir, err)
	}
	var out []generation.ProjectTemplate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		ts, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	return out, nil
}

// LoadFile decodes and validates the templates in one YAML file.
func LoadFile(path string) ([]generation.ProjectTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: read %s: %w", path, err)
	}
	ts, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("templates: %s: %w", path, err)
	}
	return ts, nil
}

// ParseYAML decodes one template or a templates list.
func ParseYAML(data []byte) ([]generation.ProjectTemplate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	var list struct {
		Templates []generation.ProjectTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	ts := list.Templates
	if len(ts) == 0 {
		var one generation.ProjectTemplate
		if err := yaml.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		ts = []generation.ProjectTemplate{one}
	}
	for i := range ts {
		ts[i] = normalize(ts[i])
		if err := ts[i].Validate(); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// NewFileStore loads dir into a MemoryStore; writes stay in memory.
func NewFileStore(ctx context.Context, dir string) (*MemoryStore, error) {
	ts, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	s := NewMemoryStore()
	if err := Seed(ctx, s, ts); err != nil {
		return nil, err
	}
	return s, nil
}
