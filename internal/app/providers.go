package app

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"blueprint/internal/config"
	"blueprint/internal/llm"
	"blueprint/internal/llmclient"
)

// providerSet is the transports plus the per-transport limiters built
// from configuration.
type providerSet struct {
	transports map[string]llmclient.Transport
	limiters   map[string]llm.Limiter
	stops      []func()
	rdb        redis.UniversalClient
}

func (p *providerSet) close() error {
	for _, stop := range p.stops {
		stop()
	}
	if p.rdb != nil {
		return p.rdb.Close()
	}
	return nil
}

// real reports whether any non-fake transport is configured.
func (p *providerSet) real() bool {
	for name := range p.transports {
		if name != "fake" {
			return true
		}
	}
	return false
}

func initProviders(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *zap.Logger) (*providerSet, error) {
	ps := &providerSet{
		transports: map[string]llmclient.Transport{},
		limiters:   map[string]llm.Limiter{},
	}
	pc := cfg.Providers

	if pc.OpenAI.Enabled() {
		ps.transports["openai"] = llmclient.NewOpenAITransport(pc.OpenAI.APIKey, pc.OpenAI.BaseURL,
			llmclient.WithOpenAIHTTPClient(httpClient))
	}
	if pc.Groq.Enabled() {
		base := pc.Groq.BaseURL
		if base == "" {
			base = llmclient.GroqBaseURL
		}
		ps.transports["groq"] = llmclient.NewOpenAITransport(pc.Groq.APIKey, base,
			llmclient.WithOpenAIHTTPClient(httpClient), llmclient.WithOpenAIName("groq"))
	}
	if pc.Anthropic.Enabled() {
		ps.transports["anthropic"] = llmclient.NewAnthropicTransport(pc.Anthropic.APIKey, pc.Anthropic.BaseURL, httpClient)
	}
	if pc.Gemini.Enabled() {
		g, err := llmclient.NewGeminiTransport(ctx, pc.Gemini.APIKey, pc.Gemini.BaseURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("init gemini transport: %w", err)
		}
		ps.transports["gemini"] = g
	}
	if pc.Fake || !ps.real() {
		ps.transports["fake"] = llm.NewFakeTransport()
	}

	if cfg.Redis.Enabled {
		ps.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := ps.rdb.Ping(ctx).Err(); err != nil {
			_ = ps.rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	for name, p := range map[string]config.ProviderConfig{
		"openai": pc.OpenAI, "groq": pc.Groq, "anthropic": pc.Anthropic, "gemini": pc.Gemini,
	} {
		if _, ok := ps.transports[name]; !ok || p.RPS <= 0 {
			continue
		}
		if ps.rdb != nil {
			limit := int(math.Ceil(p.RPS * cfg.Redis.Window.Seconds()))
			if limit < 1 {
				limit = 1
			}
			ps.limiters[name] = llm.NewRedisRateLimiter(ps.rdb, cfg.Redis.Prefix).For(name, limit, cfg.Redis.Window)
			logger.Info("provider rate limit", zap.String("transport", name), zap.String("backend", "redis"), zap.Int("limit", limit), zap.Duration("window", cfg.Redis.Window))
			continue
		}
		l := llm.NewLimiter(p.RPS, p.Burst)
		if l == nil {
			continue
		}
		ps.limiters[name] = l
		ps.stops = append(ps.stops, l.Stop)
		logger.Info("provider rate limit", zap.String("transport", name), zap.String("backend", "local"), zap.Float64("rps", p.RPS), zap.Int("burst", p.Burst))
	}

	names := make([]string, 0, len(ps.transports))
	for name := range ps.transports {
		names = append(names, name)
	}
	logger.Info("provider transports", zap.Strings("transports", names))
	return ps, nil
}

// initCatalog loads the catalog and applies configured defaults. Without
// real transports the offline models become the defaults unless set.
func initCatalog(cfg *config.Config, offline bool) (*llm.Catalog, error) {
	models := llm.BuiltinModels()
	defaults := llm.BuiltinDefaults()
	if cfg.Catalog.File != "" {
		c, err := llm.LoadCatalogFile(cfg.Catalog.File)
		if err != nil {
			return nil, err
		}
		models = c.List()
		defaults = c.Defaults()
	}
	if offline && cfg.Catalog.DefaultModel == "" {
		defaults = llm.CatalogDefaults{Model: "fake-fast", Fallback: "fake-slow"}
	}
	if cfg.Catalog.DefaultModel != "" {
		defaults.Model = cfg.Catalog.DefaultModel
	}
	if cfg.Catalog.DefaultFallback != "" {
		defaults.Fallback = cfg.Catalog.DefaultFallback
	}
	if defaults.Fallback == defaults.Model {
		defaults.Fallback = ""
	}
	return llm.NewCatalog(models, defaults)
}
