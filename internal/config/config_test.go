package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default upstream config
	if cfg.Upstream.MaxAttempts != 4 {
		t.Errorf("Upstream.MaxAttempts = %d, want 4", cfg.Upstream.MaxAttempts)
	}
	if cfg.Upstream.BaseDelayMs != 1000 {
		t.Errorf("Upstream.BaseDelayMs = %d, want 1000", cfg.Upstream.BaseDelayMs)
	}
	if cfg.Upstream.MaxJitterMs != 1000 {
		t.Errorf("Upstream.MaxJitterMs = %d, want 1000", cfg.Upstream.MaxJitterMs)
	}
	if cfg.Upstream.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("Upstream.BaseURL = %q", cfg.Upstream.BaseURL)
	}

	// Verify default turn config
	if cfg.Turn.OpinionPacingMs != 1200 {
		t.Errorf("Turn.OpinionPacingMs = %d, want 1200", cfg.Turn.OpinionPacingMs)
	}
	if cfg.Turn.MinIdeaRunes != 10 {
		t.Errorf("Turn.MinIdeaRunes = %d, want 10", cfg.Turn.MinIdeaRunes)
	}
	if cfg.Turn.DiscussionMinRunes != 20 {
		t.Errorf("Turn.DiscussionMinRunes = %d, want 20", cfg.Turn.DiscussionMinRunes)
	}
	if !cfg.Turn.Categorize {
		t.Error("Turn.Categorize should be true by default")
	}

	// Verify default reflection config
	if cfg.Reflection.EpisodicWindow != 3 || cfg.Reflection.EvolutionTurns != 3 {
		t.Errorf("Reflection = %+v, want windows of 3", cfg.Reflection)
	}

	// Verify default store config
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"timeout", cfg.Upstream.Timeout(), 60 * time.Second},
		{"stream timeout", cfg.Upstream.StreamTimeout(), 180 * time.Second},
		{"base delay", cfg.Upstream.BaseDelay(), time.Second},
		{"max jitter", cfg.Upstream.MaxJitter(), time.Second},
		{"opinion pacing", cfg.Turn.OpinionPacing(), 1200 * time.Millisecond},
		{"shutdown", cfg.Server.ShutdownTimeout(), 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestResolvedSynthesisModel(t *testing.T) {
	u := UpstreamConfig{Model: "small"}
	if got := u.ResolvedSynthesisModel(); got != "small" {
		t.Errorf("ResolvedSynthesisModel() = %q, want small", got)
	}
	u.SynthesisModel = "large"
	if got := u.ResolvedSynthesisModel(); got != "large" {
		t.Errorf("ResolvedSynthesisModel() = %q, want large", got)
	}
}

func TestResolveDataDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	s := StoreConfig{}
	if got, want := s.ResolveDataDir(), "/custom/config/ideaforge/data"; got != want {
		t.Errorf("ResolveDataDir() = %q, want %q", got, want)
	}

	s.DataDir = "/var/lib/ideaforge"
	if got := s.ResolveDataDir(); got != "/var/lib/ideaforge" {
		t.Errorf("ResolveDataDir() = %q", got)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	s.DataDir = "~/forge"
	if got, want := s.ResolveDataDir(), filepath.Join(home, "forge"); got != want {
		t.Errorf("ResolveDataDir() = %q, want %q", got, want)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got, want := ConfigDir(), "/custom/config/ideaforge"; got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		if got, want := ConfigDir(), filepath.Join(home, ".config", "ideaforge"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := ConfigFile(), "/custom/config/ideaforge/config.yaml"; got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Turn.OpinionPacingMs != 1200 {
		t.Errorf("Get().Turn.OpinionPacingMs = %d, want 1200", cfg.Turn.OpinionPacingMs)
	}
	if len(cfg.Turn.DefaultPersonas) != 3 {
		t.Errorf("Get().Turn.DefaultPersonas = %v", cfg.Turn.DefaultPersonas)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("turn:\n  opinion_pacing_ms: 0\nreflection:\n  episodic_window: 5\nstore:\n  driver: mysql\n  dsn: user:pw@tcp(db:3306)/forge\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Turn.OpinionPacingMs != 0 {
		t.Errorf("OpinionPacingMs = %d, want 0", cfg.Turn.OpinionPacingMs)
	}
	if cfg.Reflection.EpisodicWindow != 5 {
		t.Errorf("EpisodicWindow = %d, want 5", cfg.Reflection.EpisodicWindow)
	}
	if cfg.Store.Driver != "mysql" || cfg.Store.DSN == "" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	// untouched keys keep their defaults
	if cfg.Upstream.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.Upstream.MaxAttempts)
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("upstream.max_attempts", 0)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail for max_attempts = 0")
	}
	var verrs ValidationErrors
	if !asValidationErrors(err, &verrs) || len(verrs) != 1 || verrs[0].Field != "upstream.max_attempts" {
		t.Errorf("Load() error = %v", err)
	}

	if cfg := Get(); cfg.Upstream.MaxAttempts != 4 {
		t.Errorf("Get() should fall back to defaults, got MaxAttempts = %d", cfg.Upstream.MaxAttempts)
	}
}

func asValidationErrors(err error, target *ValidationErrors) bool {
	v, ok := err.(ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}
