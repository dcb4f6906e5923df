package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Generation.StageTimeout)
	assert.Equal(t, 2, cfg.Generation.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Generation.BaseBackoff)
	assert.Equal(t, 8*time.Second, cfg.Generation.MaxBackoff)
	assert.Equal(t, 1, cfg.Generation.Concurrency)
	assert.Equal(t, "memory", cfg.Templates.Backend)
	assert.Equal(t, "memory", cfg.Archive.Backend)
	assert.True(t, cfg.Templates.SeedBuiltin)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BLUEPRINT_GENERATION_CONCURRENCY", "3")
	t.Setenv("BLUEPRINT_LOG_FORMAT", "json")
	t.Setenv("BLUEPRINT_GENERATION_BASE_BACKOFF", "250ms")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BLUEPRINT_PROVIDERS_GROQ_API_KEY", "gsk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("BLUEPRINT_PROVIDERS_ANTHROPIC_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Generation.Concurrency)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Generation.BaseBackoff)
	assert.True(t, cfg.Providers.OpenAI.Enabled())
	assert.Equal(t, "gsk-test", cfg.Providers.Groq.APIKey)
	assert.False(t, cfg.Providers.Anthropic.Enabled())
}

func TestLoad_File(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "blueprint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
catalog:
  default_model: gpt-4o
  default_fallback: claude-3-haiku
providers:
  anthropic:
    rps: 2
    burst: 4
templates:
  backend: file
  dir: ./tpl
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "gpt-4o", cfg.Catalog.DefaultModel)
	assert.Equal(t, 2.0, cfg.Providers.Anthropic.RPS)
	assert.Equal(t, 4, cfg.Providers.Anthropic.Burst)
	assert.Equal(t, "file", cfg.Templates.Backend)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdirTemp(t)
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Config{
		Server:     ServerConfig{Addr: ""},
		Log:        LogConfig{Format: "xml"},
		Generation: GenerationConfig{StageTimeout: 0, MaxRetries: -1, BaseBackoff: time.Second, MaxBackoff: time.Millisecond, Concurrency: 0},
		Templates:  TemplatesConfig{Backend: "postgres"},
		Archive:    ArchiveConfig{Backend: "s3"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"server.addr",
		"log.format",
		"generation.stage_timeout",
		"generation.max_retries",
		"generation.max_backoff",
		"generation.concurrency",
		"templates.dsn",
		"archive.endpoint",
		"archive.access_key",
	} {
		assert.Contains(t, err.Error(), want)
	}
}
