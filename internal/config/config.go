package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration loaded from YAML, .env and the
// environment (prefix BLUEPRINT_, dots replaced with underscores).
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Generation GenerationConfig `mapstructure:"generation"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Templates  TemplatesConfig  `mapstructure:"templates"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

type GenerationConfig struct {
	StageTimeout      time.Duration `mapstructure:"stage_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseBackoff       time.Duration `mapstructure:"base_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	Concurrency       int           `mapstructure:"concurrency"`
	StrictTokenBudget bool          `mapstructure:"strict_token_budget"`
	SystemPrompt      string        `mapstructure:"system_prompt"`
}

type CatalogConfig struct {
	File            string `mapstructure:"file"`
	DefaultModel    string `mapstructure:"default_model"`
	DefaultFallback string `mapstructure:"default_fallback"`
}

// ProviderConfig configures one provider transport.
type ProviderConfig struct {
	APIKey  string  `mapstructure:"api_key"`
	BaseURL string  `mapstructure:"base_url"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

func (p ProviderConfig) Enabled() bool { return strings.TrimSpace(p.APIKey) != "" }

type ProvidersConfig struct {
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
	Groq      ProviderConfig `mapstructure:"groq"`
	// Fake enables the offline transport serving the fake-* models.
	Fake bool `mapstructure:"fake"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	Window   time.Duration `mapstructure:"window"`
}

type TemplatesConfig struct {
	Backend     string        `mapstructure:"backend"` // memory, file or postgres
	Dir         string        `mapstructure:"dir"`
	DSN         string        `mapstructure:"dsn"`
	CacheSize   int           `mapstructure:"cache_size"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	SeedBuiltin bool          `mapstructure:"seed_builtin"`
}

type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"` // memory or s3
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Load reads configuration. An empty path looks for config.yaml in the
// working directory and ./configs; a missing file is not an error then.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindProviderEnv(v)

	v.SetEnvPrefix("BLUEPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("generation.stage_timeout", 60*time.Second)
	v.SetDefault("generation.max_retries", 2)
	v.SetDefault("generation.base_backoff", 500*time.Millisecond)
	v.SetDefault("generation.max_backoff", 8*time.Second)
	v.SetDefault("generation.concurrency", 1)
	v.SetDefault("generation.strict_token_budget", false)
	v.SetDefault("generation.system_prompt", "")

	v.SetDefault("catalog.file", "")
	v.SetDefault("catalog.default_model", "")
	v.SetDefault("catalog.default_fallback", "")

	for _, p := range []string{"openai", "anthropic", "gemini", "groq"} {
		v.SetDefault("providers."+p+".base_url", "")
		v.SetDefault("providers."+p+".rps", 0)
		v.SetDefault("providers."+p+".burst", 1)
	}
	v.SetDefault("providers.fake", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "blueprint:ratelimit:")
	v.SetDefault("redis.window", time.Second)

	v.SetDefault("templates.backend", "memory")
	v.SetDefault("templates.dir", "templates")
	v.SetDefault("templates.dsn", "")
	v.SetDefault("templates.cache_size", 256)
	v.SetDefault("templates.cache_ttl", 5*time.Minute)
	v.SetDefault("templates.seed_builtin", true)

	v.SetDefault("archive.backend", "memory")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.bucket", "blueprint-bundles")
	v.SetDefault("archive.use_ssl", false)
}

// bindProviderEnv also accepts the vendors' conventional key variables.
func bindProviderEnv(v *viper.Viper) {
	_ = v.BindEnv("providers.openai.api_key", "BLUEPRINT_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.anthropic.api_key", "BLUEPRINT_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("providers.gemini.api_key", "BLUEPRINT_PROVIDERS_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("providers.groq.api_key", "BLUEPRINT_PROVIDERS_GROQ_API_KEY", "GROQ_API_KEY")
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		add("log.format must be json or console, got %q", c.Log.Format)
	}

	g := c.Generation
	if g.StageTimeout <= 0 {
		add("generation.stage_timeout must be positive")
	}
	if g.MaxRetries < 0 {
		add("generation.max_retries cannot be negative")
	}
	if g.BaseBackoff <= 0 {
		add("generation.base_backoff must be positive")
	}
	if g.MaxBackoff < g.BaseBackoff {
		add("generation.max_backoff must be >= base_backoff")
	}
	if g.Concurrency < 1 {
		add("generation.concurrency must be at least 1")
	}

	for name, p := range map[string]ProviderConfig{
		"openai": c.Providers.OpenAI, "anthropic": c.Providers.Anthropic,
		"gemini": c.Providers.Gemini, "groq": c.Providers.Groq,
	} {
		if p.RPS < 0 {
			add("providers.%s.rps cannot be negative", name)
		}
		if p.RPS > 0 && p.Burst < 1 {
			add("providers.%s.burst must be at least 1 when rps is set", name)
		}
	}

	if c.Redis.Enabled {
		if strings.TrimSpace(c.Redis.Addr) == "" {
			add("redis.addr is required when redis is enabled")
		}
		if c.Redis.Window <= 0 {
			add("redis.window must be positive")
		}
	}

	switch c.Templates.Backend {
	case "memory":
	case "file":
		if strings.TrimSpace(c.Templates.Dir) == "" {
			add("templates.dir is required for the file backend")
		}
	case "postgres":
		if strings.TrimSpace(c.Templates.DSN) == "" {
			add("templates.dsn is required for the postgres backend")
		}
	default:
		add("templates.backend must be memory, file or postgres, got %q", c.Templates.Backend)
	}

	switch c.Archive.Backend {
	case "memory":
	case "s3":
		if strings.TrimSpace(c.Archive.Endpoint) == "" {
			add("archive.endpoint is required for the s3 backend")
		}
		if strings.TrimSpace(c.Archive.AccessKey) == "" || strings.TrimSpace(c.Archive.SecretKey) == "" {
			add("archive.access_key and archive.secret_key are required for the s3 backend")
		}
		if strings.TrimSpace(c.Archive.Bucket) == "" {
			add("archive.bucket is required for the s3 backend")
		}
	default:
		add("archive.backend must be memory or s3, got %q", c.Archive.Backend)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
