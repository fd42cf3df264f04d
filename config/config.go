package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scout system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Engine    EngineConfig    `mapstructure:"engine"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	return nil
}

// SchedulerConfig controls dispatch and reaping cadence. All scheduling state
// lives in Postgres; these values are passed in at startup and never read from
// shared storage mid-tick.
type SchedulerConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	DispatchMode     string        `mapstructure:"dispatch_mode"` // inline or queue
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	ReaperInterval   time.Duration `mapstructure:"reaper_interval"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
	RunLogRetention  time.Duration `mapstructure:"run_log_retention"`
}

// Normalize applies reference defaults for unset scheduler values.
func (s SchedulerConfig) Normalize() SchedulerConfig {
	if s.TickInterval <= 0 {
		s.TickInterval = time.Minute
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 20
	}
	if s.DispatchMode == "" {
		s.DispatchMode = "inline"
	}
	if s.LockTTL <= 0 {
		s.LockTTL = 2 * time.Minute
	}
	if s.ReaperInterval <= 0 {
		s.ReaperInterval = 5 * time.Minute
	}
	if s.ExecutionTimeout <= 0 {
		s.ExecutionTimeout = 5 * time.Minute
	}
	if s.RunLogRetention <= 0 {
		s.RunLogRetention = 24 * time.Hour
	}
	return s
}

func (s SchedulerConfig) Validate() error {
	switch s.DispatchMode {
	case "", "inline", "queue":
	default:
		return fmt.Errorf("scheduler.dispatch_mode must be inline or queue, got %q", s.DispatchMode)
	}
	return nil
}

// EngineConfig bounds the agent loop. The step ceiling and stall limit are
// deliberately configuration, not constants.
type EngineConfig struct {
	MaxSteps    int           `mapstructure:"max_steps"`
	StallLimit  int           `mapstructure:"stall_limit"`
	StepTimeout time.Duration `mapstructure:"step_timeout"`
	// RunTimeout is the soft wall-clock budget for one execution. It must
	// stay below scheduler.execution_timeout: the engine summarizes when the
	// budget runs low, so only crashed runs ever reach the reaper.
	RunTimeout    time.Duration `mapstructure:"run_timeout"`
	SearchResults int           `mapstructure:"search_results"`
	MaxPageChars  int           `mapstructure:"max_page_chars"`
}

// Normalize applies defaults for unset engine values.
func (e EngineConfig) Normalize() EngineConfig {
	if e.MaxSteps <= 0 {
		e.MaxSteps = 12
	}
	if e.StallLimit <= 0 {
		e.StallLimit = 3
	}
	if e.StepTimeout <= 0 {
		e.StepTimeout = 45 * time.Second
	}
	if e.RunTimeout <= 0 {
		e.RunTimeout = 4 * time.Minute
	}
	if e.SearchResults <= 0 {
		e.SearchResults = 5
	}
	if e.MaxPageChars <= 0 {
		e.MaxPageChars = 20000
	}
	return e
}

// LLMConfig contains generation and embedding backend settings
type LLMConfig struct {
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	CompletionModel     string        `mapstructure:"completion_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	Temperature         float64       `mapstructure:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if l.EmbeddingDimensions <= 0 {
		return fmt.Errorf("llm.embedding_dimensions must be > 0")
	}
	return nil
}

// SearchConfig contains web search backend settings
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serper or brave
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (s SearchConfig) Validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("search.api_key is required")
	}
	return nil
}

// FetchConfig contains page fetch/extraction settings
type FetchConfig struct {
	Type     string        `mapstructure:"type"` // http or chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a Postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
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

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

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

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("scheduler.tick_interval", "1m")
	viper.SetDefault("scheduler.batch_size", 20)
	viper.SetDefault("scheduler.dispatch_mode", "inline")
	viper.SetDefault("scheduler.reaper_interval", "5m")
	viper.SetDefault("scheduler.execution_timeout", "5m")
	viper.SetDefault("scheduler.run_log_retention", "24h")
	viper.SetDefault("engine.max_steps", 12)
	viper.SetDefault("engine.stall_limit", 3)
	viper.SetDefault("engine.step_timeout", "45s")
	viper.SetDefault("engine.run_timeout", "4m")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.embedding_dimensions", 1536)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.max_retries", 2)
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("fetch.type", "http")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Scheduler = config.Scheduler.Normalize()
	config.Engine = config.Engine.Normalize()

	if config.Engine.RunTimeout >= config.Scheduler.ExecutionTimeout {
		panic(fmt.Errorf("engine.run_timeout (%s) must stay below scheduler.execution_timeout (%s)",
			config.Engine.RunTimeout, config.Scheduler.ExecutionTimeout))
	}
	if err := config.Server.Validate(); err != nil {
		panic(err)
	}
	if err := config.Scheduler.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	return &config
}
