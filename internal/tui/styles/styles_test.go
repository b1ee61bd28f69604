package styles

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestGetPalette(t *testing.T) {
	for _, name := range BuiltinThemes() {
		t.Run(name, func(t *testing.T) {
			p := GetPalette(ThemeName(name))
			if p.Primary == "" || p.ToneChallenge == "" || p.ScoreHigh == "" {
				t.Errorf("palette %s has empty colors: %+v", name, p)
			}
		})
	}
	if got := GetPalette("no-such-theme"); got.Primary != DefaultPalette().Primary {
		t.Errorf("unknown theme should fall back to default, got %v", got.Primary)
	}
}

const validTheme = `name: Test
version: "1"
colors:
  primary: "#112233"
  secondary: "#445566"
  warning: "#FA0"
  error: "#FF0000"
  muted: "#999999"
  surface: "#000000"
  text: "#FFFFFF"
  border: "#333333"
  tones:
    challenge: "#ABCDEF"
`

func writeTheme(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "theme.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write theme: %v", err)
	}
	return path
}

func TestLoadThemeFile(t *testing.T) {
	theme, err := LoadThemeFile(writeTheme(t, validTheme))
	if err != nil {
		t.Fatalf("LoadThemeFile: %v", err)
	}
	p := theme.ToPalette()
	if p.Primary != "#112233" {
		t.Errorf("Primary = %v", p.Primary)
	}
	if p.ToneChallenge != "#ABCDEF" {
		t.Errorf("ToneChallenge = %v, want explicit tone", p.ToneChallenge)
	}
	if p.ToneAgree != "#445566" {
		t.Errorf("ToneAgree = %v, want secondary fallback", p.ToneAgree)
	}
}

func TestThemeFile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing name", strings.Replace(validTheme, "name: Test", "name: \"\"", 1), "name is required"},
		{"bad version", strings.Replace(validTheme, `version: "1"`, `version: "2"`, 1), "unsupported theme version"},
		{"missing color", strings.Replace(validTheme, `  border: "#333333"`+"\n", "", 1), "'border' is required"},
		{"bad hex", strings.Replace(validTheme, `"#999999"`, `"grey"`, 1), "'muted' has invalid format"},
		{"bad tone", strings.Replace(validTheme, `"#ABCDEF"`, `"#ABCDEFG"`, 1), "'tones.challenge'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadThemeFile(writeTheme(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePalette(t *testing.T) {
	p, err := ResolvePalette("nord")
	if err != nil || p.Primary != NordPalette().Primary {
		t.Errorf("ResolvePalette(nord) = %v, %v", p, err)
	}
	p, err = ResolvePalette(writeTheme(t, validTheme))
	if err != nil || p.Primary != "#112233" {
		t.Errorf("ResolvePalette(file) = %v, %v", p, err)
	}
	if _, err := ResolvePalette(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing theme file")
	}
}

func TestScoreBar(t *testing.T) {
	s := New(nil)
	tests := []struct {
		current, limit, width int
		wantFilled            int
	}{
		{0, 15, 10, 0},
		{15, 15, 10, 10},
		{7, 14, 10, 5},
		{30, 15, 10, 10},
		{-3, 15, 10, 0},
		{5, 0, 10, 0},
	}
	for _, tt := range tests {
		bar := ansi.Strip(s.ScoreBar(tt.current, tt.limit, tt.width))
		if got := strings.Count(bar, "█"); got != tt.wantFilled {
			t.Errorf("ScoreBar(%d, %d) filled = %d, want %d", tt.current, tt.limit, got, tt.wantFilled)
		}
		if got := ansi.StringWidth(bar); got != tt.width {
			t.Errorf("ScoreBar(%d, %d) width = %d, want %d", tt.current, tt.limit, got, tt.width)
		}
	}
	if s.ScoreBar(1, 2, 0) != "" {
		t.Error("zero width should render nothing")
	}
}

func TestToneColor(t *testing.T) {
	s := New(DraculaPalette())
	if s.ToneColor("challenge") != s.Palette.ToneChallenge {
		t.Error("challenge tone color mismatch")
	}
	if s.ToneColor("sarcastic") != s.Palette.Muted {
		t.Error("unknown tone should be muted")
	}
	if ToneIcon("question") != "?" || ToneIcon("") != "·" {
		t.Error("unexpected tone icons")
	}
}
