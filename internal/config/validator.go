package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "upstream.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidStoreDrivers returns the list of supported store drivers
func ValidStoreDrivers() []string {
	return []string{"sqlite", "mysql"}
}

// ValidLevels returns the list of validation levels a turn may request
func ValidLevels() []string {
	return []string{"sketch", "mvp", "defense"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateUpstream()...)
	errors = append(errors, c.validateTurn()...)
	errors = append(errors, c.validateReflection()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateUpstream() []ValidationError {
	var errors []ValidationError
	u := c.Upstream

	if parsed, err := url.Parse(u.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "upstream.base_url",
			Value:   u.BaseURL,
			Message: "must be an absolute URL",
		})
	}
	if u.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "upstream.model",
			Value:   u.Model,
			Message: "must not be empty",
		})
	}
	if u.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "upstream.timeout_seconds",
			Value:   u.TimeoutSeconds,
			Message: "must be positive",
		})
	}
	if u.StreamTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "upstream.stream_timeout_seconds",
			Value:   u.StreamTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if u.MaxAttempts < 1 || u.MaxAttempts > 10 {
		errors = append(errors, ValidationError{
			Field:   "upstream.max_attempts",
			Value:   u.MaxAttempts,
			Message: "must be between 1 and 10",
		})
	}
	if u.BaseDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "upstream.base_delay_ms",
			Value:   u.BaseDelayMs,
			Message: "must be non-negative",
		})
	}
	if u.MaxJitterMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "upstream.max_jitter_ms",
			Value:   u.MaxJitterMs,
			Message: "must be non-negative",
		})
	}
	if u.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "upstream.max_tokens",
			Value:   u.MaxTokens,
			Message: "must be positive",
		})
	}
	if u.Temperature < 0 || u.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "upstream.temperature",
			Value:   u.Temperature,
			Message: "must be between 0 and 2",
		})
	}
	return errors
}

func (c *Config) validateTurn() []ValidationError {
	var errors []ValidationError
	t := c.Turn

	if t.OpinionPacingMs < 0 || t.OpinionPacingMs > 10000 {
		errors = append(errors, ValidationError{
			Field:   "turn.opinion_pacing_ms",
			Value:   t.OpinionPacingMs,
			Message: "must be between 0 and 10000",
		})
	}
	if t.HistoryWindow < 0 {
		errors = append(errors, ValidationError{
			Field:   "turn.history_window",
			Value:   t.HistoryWindow,
			Message: "must be non-negative",
		})
	}
	if t.MinIdeaRunes < 0 {
		errors = append(errors, ValidationError{
			Field:   "turn.min_idea_runes",
			Value:   t.MinIdeaRunes,
			Message: "must be non-negative",
		})
	}
	if t.DiscussionMinRunes < 0 {
		errors = append(errors, ValidationError{
			Field:   "turn.discussion_min_runes",
			Value:   t.DiscussionMinRunes,
			Message: "must be non-negative",
		})
	}
	if t.DefaultLevel != "" && !slices.Contains(ValidLevels(), t.DefaultLevel) {
		errors = append(errors, ValidationError{
			Field:   "turn.default_level",
			Value:   t.DefaultLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLevels(), ", ")),
		})
	}
	if len(t.DefaultPersonas) > 10 {
		errors = append(errors, ValidationError{
			Field:   "turn.default_personas",
			Value:   len(t.DefaultPersonas),
			Message: "must list at most 10 personas",
		})
	}
	return errors
}

func (c *Config) validateReflection() []ValidationError {
	var errors []ValidationError
	if c.Reflection.EpisodicWindow < 1 {
		errors = append(errors, ValidationError{
			Field:   "reflection.episodic_window",
			Value:   c.Reflection.EpisodicWindow,
			Message: "must be at least 1",
		})
	}
	if c.Reflection.EvolutionTurns < 1 {
		errors = append(errors, ValidationError{
			Field:   "reflection.evolution_turns",
			Value:   c.Reflection.EvolutionTurns,
			Message: "must be at least 1",
		})
	}
	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError
	s := c.Server

	if s.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   s.Addr,
			Message: "must not be empty",
		})
	}
	for i, pattern := range s.AllowedOrigins {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("server.allowed_origins[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}
	if s.BodyLimitKB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.body_limit_kb",
			Value:   s.BodyLimitKB,
			Message: "must be positive",
		})
	}
	if s.ShutdownTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.shutdown_timeout_seconds",
			Value:   s.ShutdownTimeoutSeconds,
			Message: "must be non-negative",
		})
	}
	return errors
}

func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError
	if !slices.Contains(ValidStoreDrivers(), c.Store.Driver) {
		errors = append(errors, ValidationError{
			Field:   "store.driver",
			Value:   c.Store.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStoreDrivers(), ", ")),
		})
	}
	if c.Store.Driver == "mysql" && c.Store.DSN == "" {
		errors = append(errors, ValidationError{
			Field:   "store.dsn",
			Value:   c.Store.DSN,
			Message: "is required for the mysql driver",
		})
	}
	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
