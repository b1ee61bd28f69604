package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/ideaforge/internal/config"
	apperrors "github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/event"
	"github.com/Iron-Ham/ideaforge/internal/logging"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/turn"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "ideaforge" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "ideaforge")
	}

	// Compare by Name(), not Use which includes args
	expectedCmds := []string{"serve", "turn", "chat", "config", "sessions"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
	if err := loadEnvFile(""); err != nil {
		t.Errorf("empty path should be ignored, got %v", err)
	}

	const key = "IDEAFORGE_TEST_DOTENV_VALUE"
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want from-file", key, got)
	}
}

func TestReadRequest(t *testing.T) {
	body := `{"ideaText":"A marketplace for renting camping gear","personas":["developer"],"turnNumber":2}`

	req, err := readRequest("-", strings.NewReader(body))
	if err != nil {
		t.Fatalf("stdin: %v", err)
	}
	if req.IdeaText != "A marketplace for renting camping gear" || req.TurnNumber != 2 || len(req.Personas) != 1 {
		t.Errorf("request = %+v", req)
	}

	path := filepath.Join(t.TempDir(), "req.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if req, err = readRequest(path, nil); err != nil || req.TurnNumber != 2 {
		t.Errorf("file: %+v, %v", req, err)
	}

	if _, err := readRequest("-", strings.NewReader("{nope")); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("invalid JSON error = %v, want invalid input", err)
	}
	if _, err := readRequest(filepath.Join(t.TempDir(), "missing.json"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestJSONLinesEmitter(t *testing.T) {
	var buf bytes.Buffer
	em := newJSONLinesEmitter(&buf)

	if err := em.Send(stream.Event{Type: stream.TypeWarning, Data: turn.WarningEvent{Message: "too short", Reason: "length"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := em.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := em.Send(stream.Event{Type: stream.TypeError}); !errors.Is(err, apperrors.ErrTransportClosed) {
		t.Errorf("Send after Close = %v, want ErrTransportClosed", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	var first stream.Decoded
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || first.Type != stream.TypeWarning {
		t.Errorf("first line = %s (%v)", lines[0], err)
	}
	if lines[1] != `{"type":"done"}` {
		t.Errorf("last line = %s, want done sentinel", lines[1])
	}
}

func TestDefaultConfigFile(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfigFile(config.Default()))); err != nil {
		t.Fatalf("generated config is not valid YAML: %v", err)
	}
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("generated config does not validate: %v", config.ValidationErrors(errs))
	}
	d := config.Default()
	if cfg.Turn.OpinionPacingMs != d.Turn.OpinionPacingMs || cfg.Server.Addr != d.Server.Addr ||
		len(cfg.Server.AllowedOrigins) != len(d.Server.AllowedOrigins) {
		t.Errorf("generated config drifted from defaults: %+v", cfg)
	}
}

func TestEffectiveSettings_Redacts(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("upstream.api_key", "sk-secret")

	settings := effectiveSettings()
	upstream, ok := settings["upstream"].(map[string]any)
	if !ok {
		t.Fatalf("upstream section missing: %v", settings)
	}
	if upstream["api_key"] != "<redacted>" {
		t.Errorf("api_key = %v, want redacted", upstream["api_key"])
	}
	if upstream["model"] != config.Default().Upstream.Model {
		t.Errorf("model = %v", upstream["model"])
	}
}

func TestConfigInit(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Cleanup(viper.Reset)

	out, err := executeCommand(rootCmd, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(config.ConfigFile()); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if _, err := executeCommand(rootCmd, "config", "init"); err == nil {
		t.Error("second init should refuse to overwrite")
	}
}

func TestApplyReload(t *testing.T) {
	t.Cleanup(viper.Reset)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\nturn:\n  opinion_pacing_ms: 250\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	config.SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	logger := logging.NewWithWriter(&logs, "info")
	bus := event.NewBus(logger)
	reloaded := 0
	bus.Subscribe(event.TypeConfigReload, func(event.Event) { reloaded++ })
	orch := turn.New(nil, turn.WithLogger(logger), turn.WithBus(bus))

	applyReload(logger, orch, bus, path)

	if got := orch.OpinionPacing().Milliseconds(); got != 250 {
		t.Errorf("opinion pacing = %dms, want 250ms", got)
	}
	if reloaded != 1 {
		t.Errorf("reload events = %d, want 1", reloaded)
	}
	logger.Debug("debug is on")
	if !strings.Contains(logs.String(), "debug is on") {
		t.Error("log level was not raised to debug")
	}

	// an invalid file keeps the running settings
	viper.Set("turn.opinion_pacing_ms", -5)
	applyReload(logger, orch, bus, path)
	if got := orch.OpinionPacing().Milliseconds(); got != 250 {
		t.Errorf("opinion pacing after invalid reload = %dms, want 250ms", got)
	}
	if reloaded != 1 {
		t.Errorf("invalid reload must not publish, got %d events", reloaded)
	}
}
