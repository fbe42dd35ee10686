package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
)

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverBadger = "badger"
)

// Config holds the grant search API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig selects and configures the key-value backend.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis (default), badger
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	Path             string   `yaml:"path"`      // badger data directory
	InMemory         bool     `yaml:"in_memory"` // badger without disk
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EmbeddingConfig holds the external provider settings. An empty APIKey
// disables the provider and every vector is synthesized locally.
type EmbeddingConfig struct {
	Provider            string       `yaml:"provider"`
	APIKey              string       `yaml:"api_key"`
	BaseURL             string       `yaml:"base_url"`
	Model               string       `yaml:"model"`
	Dimensions          int          `yaml:"dimensions"`
	TimeoutMs           int          `yaml:"timeout_ms"`
	MaxRetries          int          `yaml:"max_retries"`
	DocumentInstruction string       `yaml:"document_instruction"`
	QueryInstruction    string       `yaml:"query_instruction"`
	CacheTTLHours       int          `yaml:"cache_ttl_hours"`
	Budget              BudgetConfig `yaml:"budget"`
}

// Enabled reports whether the external provider is configured.
func (e EmbeddingConfig) Enabled() bool { return e.APIKey != "" }

// Timeout returns the per-attempt provider timeout.
func (e EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutMs) * time.Millisecond
}

// VocabularyConfig holds local vocabulary settings.
type VocabularyConfig struct {
	TTLMinutes int      `yaml:"ttl_minutes"`
	MaxTerms   int      `yaml:"max_terms"`
	SampleSize int      `yaml:"sample_size"`
	Seeds      []string `yaml:"seeds"` // empty uses the built-in seed list
}

// TTL returns the snapshot lifetime.
func (v VocabularyConfig) TTL() time.Duration { return time.Duration(v.TTLMinutes) * time.Minute }

// RankingConfig holds search pipeline settings.
type RankingConfig struct {
	PageSize   int    `yaml:"page_size"`
	VectorKind string `yaml:"vector_kind"`
}

// IndexingConfig holds re-index settings.
type IndexingConfig struct {
	Workers int `yaml:"workers"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies
// defaults and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = domain.DefaultDimensions
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 3000
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 30 * 24
	}
	if c.Vocabulary.TTLMinutes <= 0 {
		c.Vocabulary.TTLMinutes = int(domain.DefaultVocabularyTTL / time.Minute)
	}
	if c.Vocabulary.MaxTerms <= 0 {
		c.Vocabulary.MaxTerms = domain.DefaultVocabularySize
	}
	if c.Vocabulary.SampleSize <= 0 {
		c.Vocabulary.SampleSize = domain.DefaultVocabularySample
	}
	if c.Ranking.PageSize <= 0 {
		c.Ranking.PageSize = domain.DefaultCandidatePageSize
	}
	if c.Ranking.VectorKind == "" {
		c.Ranking.VectorKind = domain.DefaultVectorKind
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 4
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "grantsearch:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	case DriverBadger:
		if c.Database.Path == "" && !c.Database.InMemory {
			return fmt.Errorf("database.path is required unless database.in_memory is set")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverBadger, c.Database.Driver)
	}
	if c.Embedding.MaxRetries < 0 || c.Embedding.MaxRetries > 1 {
		return fmt.Errorf("embedding.max_retries must be 0 or 1, got %d", c.Embedding.MaxRetries)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	if c.Ranking.PageSize > domain.DefaultCandidatePageSize {
		return fmt.Errorf("ranking.page_size must be at most %d, got %d",
			domain.DefaultCandidatePageSize, c.Ranking.PageSize)
	}
	if c.Vocabulary.SampleSize > 10000 {
		return fmt.Errorf("vocabulary.sample_size must be at most 10000, got %d", c.Vocabulary.SampleSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
