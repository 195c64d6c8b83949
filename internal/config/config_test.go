package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load = %+v, want %+v", cfg, Default())
	}
	if cfg.Colors != ColorAuto {
		t.Fatalf("Colors = %q, want %q", cfg.Colors, ColorAuto)
	}
}

func TestLoad_DefaultPathUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "devsyslog")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("debug = true\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.Debug {
		t.Fatalf("Debug = false, want true from %s", DefaultPath())
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	path := writeConfig(t, `
udid = "  00008030001a2b3c4d5e6f708192a3b4c5d6e7f8  "
debug = true
colors = " NEVER "
theme = " Slate "
metrics_addr = "  127.0.0.1:9464  "
tui = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Config{
		UDID:        "00008030001a2b3c4d5e6f708192a3b4c5d6e7f8",
		Debug:       true,
		Colors:      ColorNever,
		Theme:       "Slate",
		MetricsAddr: "127.0.0.1:9464",
		TUI:         true,
	}
	if cfg != want {
		t.Fatalf("Load = %+v, want %+v", cfg, want)
	}
}

func TestLoad_EmptyColorsUsesAuto(t *testing.T) {
	cfg, err := Load(writeConfig(t, `colors = "   "`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Colors != ColorAuto {
		t.Fatalf("Colors = %q, want %q", cfg.Colors, ColorAuto)
	}
}

func TestLoad_InvalidColorsFails(t *testing.T) {
	_, err := Load(writeConfig(t, `colors = "sometimes"`))
	if err == nil {
		t.Fatalf("Load returned nil error, want invalid colors error")
	}
	if !strings.Contains(err.Error(), "sometimes") {
		t.Fatalf("Load error = %q, want it to name the bad value", err.Error())
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	_, err := Load(writeConfig(t, `udid = [`))
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ColorMode
		wantErr bool
	}{
		{"auto", ColorAuto, false},
		{"Always", ColorAlways, false},
		{" never ", ColorNever, false},
		{"", ColorAuto, false},
		{"rainbow", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColorMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColorMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseColorMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/a/b")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("ExpandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := ExpandPath("   "); err == nil {
		t.Fatalf("ExpandPath returned nil error, want error")
	}
}
