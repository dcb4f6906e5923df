package app

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint/internal/config"
	"blueprint/internal/generation"
	"blueprint/internal/llm"
	"blueprint/internal/server"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second, MetricsEnabled: true},
		Log:    config.LogConfig{Level: "info", Format: "console"},
		Generation: config.GenerationConfig{
			StageTimeout: 5 * time.Second,
			MaxRetries:   1,
			BaseBackoff:  time.Millisecond,
			MaxBackoff:   5 * time.Millisecond,
			Concurrency:  2,
		},
		Redis:     config.RedisConfig{Prefix: "blueprint:test:", Window: time.Second},
		Templates: config.TemplatesConfig{Backend: "memory", SeedBuiltin: true, CacheSize: 16, CacheTTL: time.Minute},
		Archive:   config.ArchiveConfig{Backend: "memory"},
	}
}

func TestNew_OfflineDefaults(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, "fake-fast", a.Catalog.DefaultModel())
	assert.Equal(t, "fake-slow", a.Catalog.DefaultFallback("fake-fast"))

	ts, err := a.Templates.ListTemplates(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, ts, 3)
}

func TestApp_GenerateAndFetch(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.Handler)
	t.Cleanup(srv.Close)
	ctx := context.Background()

	gen := connect.NewClient[server.GenerateFromTemplateRequest, server.GenerateResponse](srv.Client(), srv.URL+server.GenerateFromTemplateProcedure, server.Codec())
	resp, err := gen.CallUnary(ctx, connect.NewRequest(&server.GenerateFromTemplateRequest{
		TemplateID:  "data-api",
		Description: "Weather readings API",
		ModelID:     "fake-fast",
	}))
	require.NoError(t, err)
	b := resp.Msg.Bundle
	assert.Equal(t, generation.StatusCompleted, b.OverallStatus)
	assert.Equal(t, "fake-fast", b.ModelUsed)

	got, err := a.Archive.Load(ctx, b.RunID)
	require.NoError(t, err)
	assert.Equal(t, b.Keys(), got.Keys())
}

func TestApp_RedisLimiterWiring(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.Providers.OpenAI = config.ProviderConfig{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1", RPS: 2, Burst: 1}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, "gpt-4-turbo", a.Catalog.DefaultModel())
}

func TestApp_RedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestInitCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_model: house-large
models:
  - id: house-large
    provider: openai
    max_tokens: 4096
  - id: house-small
    provider: anthropic
    max_tokens: 2048
`), 0o644))

	cfg := testConfig()
	cfg.Catalog.File = path
	cfg.Catalog.DefaultFallback = "house-small"

	c, err := initCatalog(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, llm.CatalogDefaults{Model: "house-large", Fallback: "house-small"}, c.Defaults())
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
