package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Catalog is the immutable registry of known models. It is built once at
// start-up and is safe for concurrent reads without locking.
type Catalog struct {
	models   map[string]AIModel
	order    []string
	defModel string
	defFall  string
}

// CatalogDefaults names the default primary and fallback models.
type CatalogDefaults struct {
	Model    string
	Fallback string
}

// NewCatalog validates models and builds a Catalog. Every defect is
// reported in the returned ValidationError.
func NewCatalog(models []AIModel, defaults CatalogDefaults) (*Catalog, error) {
	c := &Catalog{
		models: make(map[string]AIModel, len(models)),
		order:  make([]string, 0, len(models)),
	}
	verr := &ValidationError{}
	for i, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		m.Provider = normalizeProvider(m.Provider)
		if m.ID == "" {
			verr.Add("model #%d: id is required", i)
			continue
		}
		if _, dup := c.models[m.ID]; dup {
			verr.Add("model %q: duplicate id", m.ID)
			continue
		}
		if _, ok := knownProviders[m.Provider]; !ok {
			verr.Add("model %q: unknown provider %q", m.ID, m.Provider)
		}
		if m.MaxTokens <= 0 {
			verr.Add("model %q: maxTokens must be positive", m.ID)
		}
		if m.Transport == "" {
			m.Transport = defaultTransport(m.Provider)
		}
		if m.DisplayName == "" {
			m.DisplayName = m.ID
		}
		c.models[m.ID] = m.clone()
		c.order = append(c.order, m.ID)
	}

	c.defModel = strings.TrimSpace(defaults.Model)
	if c.defModel == "" && len(c.order) > 0 {
		c.defModel = c.order[0]
	}
	if c.defModel != "" {
		if _, ok := c.models[c.defModel]; !ok {
			verr.Add("default model %q is not in the catalog", c.defModel)
		}
	}
	c.defFall = strings.TrimSpace(defaults.Fallback)
	if c.defFall != "" {
		if _, ok := c.models[c.defFall]; !ok {
			verr.Add("default fallback %q is not in the catalog", c.defFall)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return c, nil
}

func defaultTransport(p Provider) string {
	switch p {
	case ProviderGoogle:
		return "gemini"
	case ProviderMeta, ProviderMistral:
		return "groq"
	case ProviderFake:
		return "fake"
	default:
		return string(p)
	}
}

// Get returns the model with the given id.
func (c *Catalog) Get(id string) (AIModel, error) {
	id = strings.TrimSpace(id)
	m, ok := c.models[id]
	if !ok {
		return AIModel{}, &NotFoundError{Resource: "model", ID: id, Err: ErrModelNotFound}
	}
	return m.clone(), nil
}

// Has reports whether id resolves.
func (c *Catalog) Has(id string) bool {
	_, ok := c.models[strings.TrimSpace(id)]
	return ok
}

// List returns every model in load order.
func (c *Catalog) List() []AIModel {
	return c.filter(func(AIModel) bool { return true })
}

// FilterByCapability returns models advertising cap.
func (c *Catalog) FilterByCapability(cap string) []AIModel {
	return c.filter(func(m AIModel) bool { return m.HasCapability(cap) })
}

// FilterByProvider returns models operated by p.
func (c *Catalog) FilterByProvider(p Provider) []AIModel {
	p = normalizeProvider(p)
	return c.filter(func(m AIModel) bool { return m.Provider == p })
}

func (c *Catalog) filter(keep func(AIModel) bool) []AIModel {
	out := make([]AIModel, 0, len(c.order))
	for _, id := range c.order {
		if m := c.models[id]; keep(m) {
			out = append(out, m.clone())
		}
	}
	return out
}

// DefaultModel returns the id used when a request names no primary model.
func (c *Catalog) DefaultModel() string { return c.defModel }

// Defaults returns the configured defaults the catalog was built with.
func (c *Catalog) Defaults() CatalogDefaults {
	return CatalogDefaults{Model: c.defModel, Fallback: c.defFall}
}

// DefaultFallback returns the fallback paired with primary: the configured
// default fallback, or else the cheapest model from a different provider.
// It returns "" when no distinct model qualifies.
func (c *Catalog) DefaultFallback(primary string) string {
	primary = strings.TrimSpace(primary)
	if c.defFall != "" && c.defFall != primary {
		return c.defFall
	}
	pm, ok := c.models[primary]
	candidates := make([]AIModel, 0, len(c.order))
	for _, id := range c.order {
		m := c.models[id]
		if id == primary || m.Provider == ProviderFake {
			continue
		}
		if ok && m.Provider == pm.Provider {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return blendedCost(candidates[i]) < blendedCost(candidates[j])
	})
	return candidates[0].ID
}

func blendedCost(m AIModel) float64 {
	return m.CostPer1kTokens.Input + m.CostPer1kTokens.Output
}

// Len returns the number of models.
func (c *Catalog) Len() int { return len(c.order) }

// MustCatalog panics when models are invalid. Intended for built-ins and tests.
func MustCatalog(models []AIModel, defaults CatalogDefaults) *Catalog {
	c, err := NewCatalog(models, defaults)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			panic(fmt.Sprintf("llm: invalid catalog: %v", ve.Reasons))
		}
		panic(err)
	}
	return c
}
