package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/ideaforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create the ideaforge configuration",
	Long: `View or create the ideaforge configuration.

Without arguments, displays the effective configuration (file, environment
and defaults merged). Secrets are redacted.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a commented default config file at $XDG_CONFIG_HOME/ideaforge/config.yaml.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}

// redactedKeys are replaced before the configuration is printed.
var redactedKeys = []string{"upstream.api_key", "store.dsn"}

// effectiveSettings returns viper's merged settings with secrets redacted.
func effectiveSettings() map[string]any {
	settings := viper.AllSettings()
	delete(settings, "config")
	delete(settings, "env_file")
	for _, key := range redactedKeys {
		section, field, _ := strings.Cut(key, ".")
		m, ok := settings[section].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := m[field].(string); ok && v != "" {
			m[field] = "<redacted>"
		}
	}
	return settings
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if _, err := config.Load(); err != nil {
		fmt.Fprintf(out, "# configuration is invalid:\n# %s\n", strings.ReplaceAll(err.Error(), "\n", "\n# "))
	}

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(effectiveSettings())
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = config.ConfigFile()
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(configFile); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configFile)
	}
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigFile(config.Default())), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func defaultConfigFile(d *config.Config) string {
	return fmt.Sprintf(`# Ideaforge configuration
# Every key can also be set through the environment, e.g.
# IDEAFORGE_UPSTREAM_API_KEY for upstream.api_key. A .env file in the
# working directory is loaded first.

upstream:
  # OpenAI-compatible API root
  base_url: %q
  # Prefer IDEAFORGE_UPSTREAM_API_KEY over storing the key here
  api_key: ""
  model: %q
  # Model for the streaming synthesis call (default: model)
  synthesis_model: ""
  provider: %q
  timeout_seconds: %d
  stream_timeout_seconds: %d
  # Rate-limited calls are retried with exponential backoff plus jitter
  max_attempts: %d
  base_delay_ms: %d
  max_jitter_ms: %d
  max_tokens: %d
  temperature: %v

turn:
  # Delay between opinion events; hot-reloaded by 'ideaforge serve'
  opinion_pacing_ms: %d
  history_window: %d
  min_idea_runes: %d
  discussion_min_runes: %d
  categorize: %v
  # Options: sketch, mvp, defense
  default_level: %q
  default_personas: %s

reflection:
  episodic_window: %d
  evolution_turns: %d

server:
  addr: %q
  # Glob patterns matched against the Origin header
  allowed_origins: %s
  websocket: %v
  body_limit_kb: %d
  shutdown_timeout_seconds: %d

store:
  # Options: sqlite, mysql
  driver: %q
  # mysql only, e.g. "user:pass@tcp(localhost:3306)/ideaforge"
  dsn: ""
  # sqlite database directory (default: <config dir>/data)
  data_dir: ""

logging:
  # Options: debug, info, warn, error; hot-reloaded by 'ideaforge serve'
  level: %q
  # Empty logs to stderr
  dir: ""
  max_size_mb: %d
  max_backups: %d
  compress: %v

personas:
  # YAML file adjusting persona names, icons and category weights
  overrides_file: ""
`,
		d.Upstream.BaseURL, d.Upstream.Model, d.Upstream.Provider,
		d.Upstream.TimeoutSeconds, d.Upstream.StreamTimeoutSeconds,
		d.Upstream.MaxAttempts, d.Upstream.BaseDelayMs, d.Upstream.MaxJitterMs,
		d.Upstream.MaxTokens, d.Upstream.Temperature,
		d.Turn.OpinionPacingMs, d.Turn.HistoryWindow, d.Turn.MinIdeaRunes,
		d.Turn.DiscussionMinRunes, d.Turn.Categorize, d.Turn.DefaultLevel, quoteList(d.Turn.DefaultPersonas),
		d.Reflection.EpisodicWindow, d.Reflection.EvolutionTurns,
		d.Server.Addr, quoteList(d.Server.AllowedOrigins), d.Server.WebSocket,
		d.Server.BodyLimitKB, d.Server.ShutdownTimeoutSeconds,
		d.Store.Driver,
		d.Logging.Level, d.Logging.MaxSizeMB, d.Logging.MaxBackups, d.Logging.Compress,
	)
}
