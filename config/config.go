package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Reader    ReaderConfig    `mapstructure:"reader"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains LLM provider configuration
type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // openai, anthropic, gemini
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Routing  RoutingConfig `mapstructure:"routing"`
}

// ModelRoute is the model and sampling settings for one concern.
type ModelRoute struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RoutingConfig defines which model each part of the loop talks to. The
// decision step and the evaluative helpers have different needs: cold
// sampling for judgments, warm for query generation.
type RoutingConfig struct {
	Agent         ModelRoute `mapstructure:"agent"`
	Evaluator     ModelRoute `mapstructure:"evaluator"`
	QueryRewriter ModelRoute `mapstructure:"query_rewriter"`
	Dedup         ModelRoute `mapstructure:"dedup"`
	ErrorAnalyzer ModelRoute `mapstructure:"error_analyzer"`
}

// SearchConfig selects the web search backend
type SearchConfig struct {
	Provider string `mapstructure:"provider"` // jina, brave, serper
	APIKey   string `mapstructure:"api_key"`
	TopK     int    `mapstructure:"top_k"`
}

// ReaderConfig selects how visited URLs are fetched
type ReaderConfig struct {
	Fetcher         string        `mapstructure:"fetcher"` // jina, chromedp
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxChars        int           `mapstructure:"max_chars"`
	MaxURLsPerVisit int           `mapstructure:"max_urls_per_visit"`
}

// AgentConfig bounds the research loop
type AgentConfig struct {
	TokenBudget    int           `mapstructure:"token_budget"`
	MaxBadAttempts int           `mapstructure:"max_bad_attempts"`
	MaxSteps       int           `mapstructure:"max_steps"`
	StepSleep      time.Duration `mapstructure:"step_sleep"`
}

// StorageConfig groups the persistence backends
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
}

// SessionConfig selects where live task state lives
type SessionConfig struct {
	Backend string        `mapstructure:"backend"` // inmemory, redis
	TTL     time.Duration `mapstructure:"ttl"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// ConnString builds a lib/pq connection string from the settings.
func (p PostgresConfig) ConnString() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslmode)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// CleanupConfig controls the finished-task retention sweeper
type CleanupConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	CronSpec  string        `mapstructure:"cron_spec"`
	Retention time.Duration `mapstructure:"retention"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.timeout", "90s")
	viper.SetDefault("llm.routing.agent.model", "gpt-4o")
	viper.SetDefault("llm.routing.agent.temperature", 0.7)
	viper.SetDefault("llm.routing.evaluator.model", "gpt-4o-mini")
	viper.SetDefault("llm.routing.evaluator.temperature", 0.1)
	viper.SetDefault("llm.routing.query_rewriter.model", "gpt-4o-mini")
	viper.SetDefault("llm.routing.query_rewriter.temperature", 0.7)
	viper.SetDefault("llm.routing.dedup.model", "gpt-4o-mini")
	viper.SetDefault("llm.routing.dedup.temperature", 0.1)
	viper.SetDefault("llm.routing.error_analyzer.model", "gpt-4o-mini")
	viper.SetDefault("llm.routing.error_analyzer.temperature", 0.1)
	viper.SetDefault("search.provider", "jina")
	viper.SetDefault("search.top_k", 5)
	viper.SetDefault("reader.fetcher", "jina")
	viper.SetDefault("reader.timeout", "15s")
	viper.SetDefault("reader.max_chars", 20000)
	viper.SetDefault("reader.max_urls_per_visit", 3)
	viper.SetDefault("agent.token_budget", 1_000_000)
	viper.SetDefault("agent.max_bad_attempts", 3)
	viper.SetDefault("agent.max_steps", 20)
	viper.SetDefault("agent.step_sleep", "100ms")
	viper.SetDefault("storage.session.backend", "inmemory")
	viper.SetDefault("storage.session.ttl", "1h")
	viper.SetDefault("cleanup.enabled", true)
	viper.SetDefault("cleanup.cron_spec", "0 * * * *")
	viper.SetDefault("cleanup.retention", "168h")

	if path == "" {
		viper.AddConfigPath("./app/config")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DEEPRESEARCH")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (DEEPRESEARCH_*)

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if config.Storage.Session.Backend == "redis" {
		if err := config.Storage.Redis.Validate(); err != nil {
			panic(err)
		}
	}
	return &config
}
