package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete ideaforge configuration
type Config struct {
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Turn       TurnConfig       `mapstructure:"turn"`
	Reflection ReflectionConfig `mapstructure:"reflection"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Personas   PersonasConfig   `mapstructure:"personas"`
}

// UpstreamConfig controls the language-model provider and retry policy
type UpstreamConfig struct {
	// BaseURL is an OpenAI-compatible API root (default: OpenRouter)
	BaseURL string `mapstructure:"base_url"`
	// APIKey authenticates against the provider. Usually set through
	// IDEAFORGE_UPSTREAM_API_KEY or a .env file rather than the config file.
	APIKey string `mapstructure:"api_key"`
	// Model is used for opinions, analysis and categorization
	Model string `mapstructure:"model"`
	// SynthesisModel is used for the streaming synthesis call (default: Model)
	SynthesisModel string `mapstructure:"synthesis_model"`
	// Provider is a label used in logs and errors
	Provider string `mapstructure:"provider"`
	// TimeoutSeconds bounds each non-streaming attempt
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// StreamTimeoutSeconds bounds the whole synthesis stream
	StreamTimeoutSeconds int `mapstructure:"stream_timeout_seconds"`
	// MaxAttempts is the total number of attempts for a rate-limited call
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseDelayMs is multiplied by 2^attempt between rate-limited attempts
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	// MaxJitterMs is the upper bound of the random delay added to each backoff
	MaxJitterMs int `mapstructure:"max_jitter_ms"`
	// MaxTokens caps each completion
	MaxTokens int `mapstructure:"max_tokens"`
	// Temperature is passed through to the provider
	Temperature float64 `mapstructure:"temperature"`
}

// TurnConfig controls per-turn orchestration
type TurnConfig struct {
	// OpinionPacingMs is the delay between opinion events (0 disables)
	OpinionPacingMs int `mapstructure:"opinion_pacing_ms"`
	// HistoryWindow is how many trailing conversation messages go into prompts
	HistoryWindow int `mapstructure:"history_window"`
	// MinIdeaRunes is the shortest idea text the relevance check accepts
	MinIdeaRunes int `mapstructure:"min_idea_runes"`
	// DiscussionMinRunes is how long the last discussion line must be before
	// sentence-final punctuation marks it complete
	DiscussionMinRunes int `mapstructure:"discussion_min_runes"`
	// Categorize enables the idea category extraction call
	Categorize bool `mapstructure:"categorize"`
	// DefaultLevel is used when a request names no validation level
	DefaultLevel string `mapstructure:"default_level"`
	// DefaultPersonas is used when a session is created without personas
	DefaultPersonas []string `mapstructure:"default_personas"`
}

// ReflectionConfig controls the reflection history block
type ReflectionConfig struct {
	// EpisodicWindow is how many accepted reflections are included in full
	EpisodicWindow int `mapstructure:"episodic_window"`
	// EvolutionTurns is how many earlier turns of score changes are included
	EvolutionTurns int `mapstructure:"evolution_turns"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	// Addr is the listen address
	Addr string `mapstructure:"addr"`
	// AllowedOrigins are glob patterns matched against the Origin header
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// WebSocket enables the /ws/turn endpoint
	WebSocket bool `mapstructure:"websocket"`
	// BodyLimitKB caps request bodies
	BodyLimitKB int `mapstructure:"body_limit_kb"`
	// ShutdownTimeoutSeconds bounds graceful shutdown
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// StoreConfig controls session persistence
type StoreConfig struct {
	// Driver is "sqlite" or "mysql"
	Driver string `mapstructure:"driver"`
	// DSN is the data source name for mysql; sqlite derives its path from DataDir
	DSN string `mapstructure:"dsn"`
	// DataDir holds the sqlite database (default: <config dir>/data)
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty logs to stderr
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// PersonasConfig points at optional persona presentation overrides
type PersonasConfig struct {
	// OverridesFile is a YAML file adjusting persona names, icons and weights
	OverridesFile string `mapstructure:"overrides_file"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:              "https://openrouter.ai/api/v1",
			Model:                "openai/gpt-4o-mini",
			Provider:             "openrouter",
			TimeoutSeconds:       60,
			StreamTimeoutSeconds: 180,
			MaxAttempts:          4,
			BaseDelayMs:          1000,
			MaxJitterMs:          1000,
			MaxTokens:            4096,
			Temperature:          0.7,
		},
		Turn: TurnConfig{
			OpinionPacingMs:    1200,
			HistoryWindow:      10,
			MinIdeaRunes:       10,
			DiscussionMinRunes: 20,
			Categorize:         true,
			DefaultLevel:       "mvp",
			DefaultPersonas:    []string{"developer", "investor", "endUser"},
		},
		Reflection: ReflectionConfig{
			EpisodicWindow: 3,
			EvolutionTurns: 3,
		},
		Server: ServerConfig{
			Addr:                   ":8080",
			AllowedOrigins:         []string{"http://localhost:*", "http://127.0.0.1:*"},
			WebSocket:              true,
			BodyLimitKB:            512,
			ShutdownTimeoutSeconds: 10,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Timeout returns the per-attempt timeout for non-streaming calls
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StreamTimeout returns the timeout for a synthesis stream
func (c *UpstreamConfig) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSeconds) * time.Second
}

// BaseDelay returns the backoff base delay
func (c *UpstreamConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxJitter returns the backoff jitter bound
func (c *UpstreamConfig) MaxJitter() time.Duration {
	return time.Duration(c.MaxJitterMs) * time.Millisecond
}

// ResolvedSynthesisModel returns SynthesisModel, falling back to Model
func (c *UpstreamConfig) ResolvedSynthesisModel() string {
	if c.SynthesisModel != "" {
		return c.SynthesisModel
	}
	return c.Model
}

// OpinionPacing returns the delay between opinion events
func (c *TurnConfig) OpinionPacing() time.Duration {
	return time.Duration(c.OpinionPacingMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown bound
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// ResolveDataDir returns DataDir, defaulting to <config dir>/data
func (c *StoreConfig) ResolveDataDir() string {
	if c.DataDir != "" {
		return expandHome(c.DataDir)
	}
	return filepath.Join(ConfigDir(), "data")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Upstream defaults
	viper.SetDefault("upstream.base_url", defaults.Upstream.BaseURL)
	viper.SetDefault("upstream.api_key", defaults.Upstream.APIKey)
	viper.SetDefault("upstream.model", defaults.Upstream.Model)
	viper.SetDefault("upstream.synthesis_model", defaults.Upstream.SynthesisModel)
	viper.SetDefault("upstream.provider", defaults.Upstream.Provider)
	viper.SetDefault("upstream.timeout_seconds", defaults.Upstream.TimeoutSeconds)
	viper.SetDefault("upstream.stream_timeout_seconds", defaults.Upstream.StreamTimeoutSeconds)
	viper.SetDefault("upstream.max_attempts", defaults.Upstream.MaxAttempts)
	viper.SetDefault("upstream.base_delay_ms", defaults.Upstream.BaseDelayMs)
	viper.SetDefault("upstream.max_jitter_ms", defaults.Upstream.MaxJitterMs)
	viper.SetDefault("upstream.max_tokens", defaults.Upstream.MaxTokens)
	viper.SetDefault("upstream.temperature", defaults.Upstream.Temperature)

	// Turn defaults
	viper.SetDefault("turn.opinion_pacing_ms", defaults.Turn.OpinionPacingMs)
	viper.SetDefault("turn.history_window", defaults.Turn.HistoryWindow)
	viper.SetDefault("turn.min_idea_runes", defaults.Turn.MinIdeaRunes)
	viper.SetDefault("turn.discussion_min_runes", defaults.Turn.DiscussionMinRunes)
	viper.SetDefault("turn.categorize", defaults.Turn.Categorize)
	viper.SetDefault("turn.default_level", defaults.Turn.DefaultLevel)
	viper.SetDefault("turn.default_personas", defaults.Turn.DefaultPersonas)

	// Reflection defaults
	viper.SetDefault("reflection.episodic_window", defaults.Reflection.EpisodicWindow)
	viper.SetDefault("reflection.evolution_turns", defaults.Reflection.EvolutionTurns)

	// Server defaults
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	viper.SetDefault("server.websocket", defaults.Server.WebSocket)
	viper.SetDefault("server.body_limit_kb", defaults.Server.BodyLimitKB)
	viper.SetDefault("server.shutdown_timeout_seconds", defaults.Server.ShutdownTimeoutSeconds)

	// Store defaults
	viper.SetDefault("store.driver", defaults.Store.Driver)
	viper.SetDefault("store.dsn", defaults.Store.DSN)
	viper.SetDefault("store.data_dir", defaults.Store.DataDir)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Personas defaults
	viper.SetDefault("personas.overrides_file", defaults.Personas.OverridesFile)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ideaforge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ideaforge"
	}
	return filepath.Join(home, ".config", "ideaforge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
