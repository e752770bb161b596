// Package config provides configuration loading for askcatalog.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrConfiguration marks missing or invalid settings. It is fatal at startup.
var ErrConfiguration = errors.New("configuration error")

// Config holds the complete askcatalog configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Index      IndexConfig      `koanf:"index"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Completion CompletionConfig `koanf:"completion"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Memory     MemoryConfig     `koanf:"memory"`
	Secrets    SecretsConfig    `koanf:"secrets"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	AllowedOrigins  []string `koanf:"allowed_origins"`
	AppName         string   `koanf:"app_name"`
	// AdminToken guards administrative routes; unset disables them.
	AdminToken Secret `koanf:"admin_token"`
}

// CatalogConfig selects where capability and application records come from.
type CatalogConfig struct {
	// Source is "file" or "http".
	Source string `koanf:"source"`
	// Files are JSON snapshot files, read in order and concatenated.
	Files []string `koanf:"files"`
	// BaseURL is the catalog service root for the http source.
	BaseURL      string   `koanf:"base_url"`
	ClientSecret Secret   `koanf:"client_secret"`
	Timeout      Duration `koanf:"timeout"`
	VerifySSL    bool     `koanf:"verify_ssl"`
	// Watch rebuilds the shared state when a snapshot file changes.
	Watch         bool     `koanf:"watch"`
	WatchDebounce Duration `koanf:"watch_debounce"`
}

// IndexConfig controls vector index persistence.
type IndexConfig struct {
	Dir string `koanf:"dir"`
	// Backend is "flat" or "chromem".
	Backend     string   `koanf:"backend"`
	LockTimeout Duration `koanf:"lock_timeout"`
	// BuildTimeout bounds one catalog load plus index build.
	BuildTimeout Duration `koanf:"build_timeout"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed", "tei" or "openai".
	Provider string   `koanf:"provider"`
	Model    string   `koanf:"model"`
	BaseURL  string   `koanf:"base_url"`
	APIKey   Secret   `koanf:"api_key"`
	CacheDir string   `koanf:"cache_dir"`
	Timeout  Duration `koanf:"timeout"`
}

// CompletionConfig selects the completion provider.
type CompletionConfig struct {
	// Provider is "gateway", "openai" or "anthropic".
	Provider    string   `koanf:"provider"`
	BaseURL     string   `koanf:"base_url"`
	APIKey      Secret   `koanf:"api_key"`
	Model       string   `koanf:"model"`
	MaxTokens   int      `koanf:"max_tokens"`
	Temperature float64  `koanf:"temperature"`
	Timeout     Duration `koanf:"timeout"`
	VerifySSL   bool     `koanf:"verify_ssl"`
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// PipelineConfig holds per-stage timeouts and prompt overrides.
type PipelineConfig struct {
	PlannerTimeout     Duration          `koanf:"planner_timeout"`
	EmbedTimeout       Duration          `koanf:"embed_timeout"`
	RankerTimeout      Duration          `koanf:"ranker_timeout"`
	SynthesizerTimeout Duration          `koanf:"synthesizer_timeout"`
	ReviewerTimeout    Duration          `koanf:"reviewer_timeout"`
	Prompts            map[string]string `koanf:"prompts"`
}

// MemoryConfig controls conversation memory.
type MemoryConfig struct {
	WindowSize int `koanf:"window_size"`
	// Backend is "sqlite", "postgres", "file" or "memory".
	Backend    string   `koanf:"backend"`
	DSN        Secret   `koanf:"dsn"`
	Path       string   `koanf:"path"`
	SessionTTL Duration `koanf:"session_ttl"`
}

// SecretsConfig controls scrubbing of stored conversation content.
type SecretsConfig struct {
	Enabled         bool     `koanf:"enabled"`
	RedactionString string   `koanf:"redaction_string"`
	AllowList       []string `koanf:"allow_list"`
}

// LoggingConfig holds the logging overrides applied on top of logging defaults.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds the telemetry overrides applied on top of telemetry defaults.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
			AllowedOrigins:  []string{"http://localhost:3000"},
			AppName:         "AskABACUS",
		},
		Catalog: CatalogConfig{
			Source:        "file",
			Files:         []string{"data/technology_capabilities.json", "data/applications.json"},
			Timeout:       Duration(15 * time.Second),
			VerifySSL:     true,
			WatchDebounce: Duration(2 * time.Second),
		},
		Index: IndexConfig{
			Dir:          "vector_store",
			Backend:      "flat",
			LockTimeout:  Duration(30 * time.Second),
			BuildTimeout: Duration(10 * time.Minute),
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    "sentence-transformers/all-MiniLM-L6-v2",
			BaseURL:  "http://localhost:8080",
			Timeout:  Duration(15 * time.Second),
		},
		Completion: CompletionConfig{
			Provider:    "gateway",
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     Duration(15 * time.Second),
			VerifySSL:   true,
			RateLimit:   5,
			Burst:       5,
		},
		Pipeline: PipelineConfig{
			PlannerTimeout:     Duration(15 * time.Second),
			EmbedTimeout:       Duration(10 * time.Second),
			RankerTimeout:      Duration(15 * time.Second),
			SynthesizerTimeout: Duration(30 * time.Second),
			ReviewerTimeout:    Duration(30 * time.Second),
		},
		Memory: MemoryConfig{
			WindowSize: 5,
			Backend:    "sqlite",
			Path:       "memory.db",
			SessionTTL: Duration(30 * time.Minute),
		},
		Secrets: SecretsConfig{
			Enabled:         true,
			RedactionString: "[REDACTED]",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			Protocol:   "grpc",
			Insecure:   true,
			SampleRate: 1.0,
		},
	}
}

// Validate checks the configuration. Every returned error wraps ErrConfiguration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d (must be 1-65535)", ErrConfiguration, c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrConfiguration)
	}

	switch c.Catalog.Source {
	case "file":
		if len(c.Catalog.Files) == 0 {
			return fmt.Errorf("%w: catalog.files required for file source", ErrConfiguration)
		}
	case "http":
		if c.Catalog.BaseURL == "" {
			return fmt.Errorf("%w: catalog.base_url required for http source", ErrConfiguration)
		}
		if _, err := url.ParseRequestURI(c.Catalog.BaseURL); err != nil {
			return fmt.Errorf("%w: invalid catalog.base_url: %v", ErrConfiguration, err)
		}
	default:
		return fmt.Errorf("%w: unknown catalog source %q", ErrConfiguration, c.Catalog.Source)
	}

	if c.Index.Dir == "" {
		return fmt.Errorf("%w: index.dir required", ErrConfiguration)
	}
	if c.Index.Backend != "flat" && c.Index.Backend != "chromem" {
		return fmt.Errorf("%w: unknown index backend %q", ErrConfiguration, c.Index.Backend)
	}
	if c.Index.BuildTimeout < 0 {
		return fmt.Errorf("%w: index.build_timeout must not be negative", ErrConfiguration)
	}

	switch c.Embeddings.Provider {
	case "fastembed":
	case "tei":
		if c.Embeddings.BaseURL == "" {
			return fmt.Errorf("%w: embeddings.base_url required for tei", ErrConfiguration)
		}
	case "openai":
		if !c.Embeddings.APIKey.IsSet() {
			return fmt.Errorf("%w: embeddings.api_key required for openai", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown embeddings provider %q", ErrConfiguration, c.Embeddings.Provider)
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("%w: embeddings.model required", ErrConfiguration)
	}

	switch c.Completion.Provider {
	case "gateway":
		if c.Completion.BaseURL == "" {
			return fmt.Errorf("%w: completion.base_url required for gateway", ErrConfiguration)
		}
	case "openai", "anthropic":
	default:
		return fmt.Errorf("%w: unknown completion provider %q", ErrConfiguration, c.Completion.Provider)
	}
	if !c.Completion.APIKey.IsSet() {
		return fmt.Errorf("%w: completion.api_key required", ErrConfiguration)
	}
	if c.Completion.Model == "" {
		return fmt.Errorf("%w: completion.model required", ErrConfiguration)
	}
	if c.Completion.Timeout.Duration() <= 0 {
		return fmt.Errorf("%w: completion.timeout must be positive", ErrConfiguration)
	}

	if c.Memory.WindowSize < 1 {
		return fmt.Errorf("%w: memory.window_size must be >= 1, got %d", ErrConfiguration, c.Memory.WindowSize)
	}
	switch c.Memory.Backend {
	case "sqlite", "file":
		if c.Memory.Path == "" {
			return fmt.Errorf("%w: memory.path required for %s backend", ErrConfiguration, c.Memory.Backend)
		}
	case "postgres":
		if !c.Memory.DSN.IsSet() {
			return fmt.Errorf("%w: memory.dsn required for postgres backend", ErrConfiguration)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown memory backend %q", ErrConfiguration, c.Memory.Backend)
	}

	return nil
}
