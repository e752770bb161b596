package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ASKCATALOG_"
)

// legacyEnv maps the variable names of earlier deployments onto config keys.
var legacyEnv = map[string]string{
	"BEDROCK_API_BASE":     "completion.base_url",
	"BEDROCK_API_KEY":      "completion.api_key",
	"BEDROCK_MODEL_ID":     "completion.model",
	"BEDROCK_MAX_TOKENS":   "completion.max_tokens",
	"BEDROCK_TEMPERATURE":  "completion.temperature",
	"ABACUS_BASE_URL":      "catalog.base_url",
	"ABACUS_CLIENT_SECRET": "catalog.client_secret",
	"ALLOWED_ORIGINS":      "server.allowed_origins",
	"APP_NAME":             "server.app_name",
}

// legacySeconds are legacy variables holding whole seconds rather than durations.
var legacySeconds = map[string]string{
	"BEDROCK_TIMEOUT": "completion.timeout",
	"ABACUS_TIMEOUT":  "catalog.timeout",
}

// Load builds configuration from defaults, the YAML file at configPath (if
// non-empty and present) and the environment.
//
// Precedence (highest to lowest):
//  1. ASKCATALOG_ environment variables (ASKCATALOG_SERVER_HTTP_PORT -> server.http_port)
//  2. Legacy environment variables (BEDROCK_API_KEY, ABACUS_BASE_URL, ...)
//  3. YAML config file
//  4. Defaults
//
// A .env file in the working directory is loaded first; variables already
// present in the process environment win over it.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: loading .env: %v", ErrConfiguration, err)
	}

	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadUnvalidated is Load without validation, for tools that only need a
// subset of the settings (for example the history admin commands).
func LoadUnvalidated(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: loading .env: %v", ErrConfiguration, err)
	}
	return load(configPath)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := loadFile(k, configPath); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("", ".", legacyKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load legacy environment variables: %w", err)
	}
	for name, key := range legacySeconds {
		if v := os.Getenv(name); v != "" {
			if err := k.Set(key, v+"s"); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}

	// Split on the first underscore only: section.field_name.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", ErrConfiguration, err)
	}
	splitLists(k, &cfg)
	applyDefaults(k, &cfg)

	return &cfg, nil
}

// applyDefaults fills fields the file and environment left unset. Booleans
// are only defaulted when their key is absent.
func applyDefaults(k *koanf.Koanf, cfg *Config) {
	d := Default()

	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = d.Server.AllowedOrigins
	}
	if cfg.Server.AppName == "" {
		cfg.Server.AppName = d.Server.AppName
	}

	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = d.Catalog.Source
	}
	if len(cfg.Catalog.Files) == 0 {
		cfg.Catalog.Files = d.Catalog.Files
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = d.Catalog.Timeout
	}
	if !k.Exists("catalog.verify_ssl") {
		cfg.Catalog.VerifySSL = d.Catalog.VerifySSL
	}
	if cfg.Catalog.WatchDebounce == 0 {
		cfg.Catalog.WatchDebounce = d.Catalog.WatchDebounce
	}

	if cfg.Index.Dir == "" {
		cfg.Index.Dir = d.Index.Dir
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = d.Index.Backend
	}
	if cfg.Index.LockTimeout == 0 {
		cfg.Index.LockTimeout = d.Index.LockTimeout
	}
	if cfg.Index.BuildTimeout == 0 {
		cfg.Index.BuildTimeout = d.Index.BuildTimeout
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = d.Embeddings.Provider
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = d.Embeddings.Model
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = d.Embeddings.BaseURL
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = d.Embeddings.Timeout
	}

	if cfg.Completion.Provider == "" {
		cfg.Completion.Provider = d.Completion.Provider
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = d.Completion.MaxTokens
	}
	if !k.Exists("completion.temperature") {
		cfg.Completion.Temperature = d.Completion.Temperature
	}
	if cfg.Completion.Timeout == 0 {
		cfg.Completion.Timeout = d.Completion.Timeout
	}
	if !k.Exists("completion.verify_ssl") {
		cfg.Completion.VerifySSL = d.Completion.VerifySSL
	}
	if !k.Exists("completion.rate_limit") {
		cfg.Completion.RateLimit = d.Completion.RateLimit
	}
	if cfg.Completion.Burst == 0 {
		cfg.Completion.Burst = d.Completion.Burst
	}

	p := &cfg.Pipeline
	if p.PlannerTimeout == 0 {
		p.PlannerTimeout = d.Pipeline.PlannerTimeout
	}
	if p.EmbedTimeout == 0 {
		p.EmbedTimeout = d.Pipeline.EmbedTimeout
	}
	if p.RankerTimeout == 0 {
		p.RankerTimeout = d.Pipeline.RankerTimeout
	}
	if p.SynthesizerTimeout == 0 {
		p.SynthesizerTimeout = d.Pipeline.SynthesizerTimeout
	}
	if p.ReviewerTimeout == 0 {
		p.ReviewerTimeout = d.Pipeline.ReviewerTimeout
	}

	if cfg.Memory.WindowSize == 0 {
		cfg.Memory.WindowSize = d.Memory.WindowSize
	}
	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = d.Memory.Backend
	}
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = d.Memory.Path
	}
	if cfg.Memory.SessionTTL == 0 {
		cfg.Memory.SessionTTL = d.Memory.SessionTTL
	}

	if !k.Exists("secrets.enabled") {
		cfg.Secrets.Enabled = d.Secrets.Enabled
	}
	if cfg.Secrets.RedactionString == "" {
		cfg.Secrets.RedactionString = d.Secrets.RedactionString
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = d.Telemetry.Endpoint
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = d.Telemetry.Protocol
	}
	if !k.Exists("telemetry.insecure") {
		cfg.Telemetry.Insecure = d.Telemetry.Insecure
	}
	if !k.Exists("telemetry.sample_rate") {
		cfg.Telemetry.SampleRate = d.Telemetry.SampleRate
	}
}

func legacyKey(s string) string {
	return legacyEnv[s]
}

// splitLists turns comma-separated env values into list fields.
func splitLists(k *koanf.Koanf, cfg *Config) {
	if raw, ok := k.Get("server.allowed_origins").(string); ok {
		cfg.Server.AllowedOrigins = splitComma(raw)
	}
	if raw, ok := k.Get("catalog.files").(string); ok {
		cfg.Catalog.Files = splitComma(raw)
	}
	if raw, ok := k.Get("secrets.allow_list").(string); ok {
		cfg.Secrets.AllowList = splitComma(raw)
	}
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadFile reads the YAML file through one descriptor so the checks and the
// read see the same file.
func loadFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return fmt.Errorf("%w: config file validation failed: %v", ErrConfiguration, err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("%w: failed to load config file %s: %v", ErrConfiguration, path, err)
	}
	return nil
}

// validateConfigFileProperties rejects oversized or group/world-writable files.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o022 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
