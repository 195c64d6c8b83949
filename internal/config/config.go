package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// ColorMode selects when relayed lines are colorized.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Config holds the persistent defaults for a relay run. Command-line flags
// override every field.
type Config struct {
	UDID        string
	Debug       bool
	Colors      ColorMode
	Theme       string
	MetricsAddr string
	TUI         bool
}

const defaultConfigPath = "~/.config/devsyslog/config.toml"

// DefaultPath returns the config file consulted when no path is given.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{Colors: ColorAuto}
}

// Load locates and parses the config file, falling back to defaults when it
// is missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		UDID        string `toml:"udid"`
		Debug       bool   `toml:"debug"`
		Colors      string `toml:"colors"`
		Theme       string `toml:"theme"`
		MetricsAddr string `toml:"metrics_addr"`
		TUI         bool   `toml:"tui"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.UDID = strings.TrimSpace(raw.UDID)
	cfg.Debug = raw.Debug
	cfg.Theme = strings.TrimSpace(raw.Theme)
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	cfg.TUI = raw.TUI

	if colors := strings.ToLower(strings.TrimSpace(raw.Colors)); colors != "" {
		mode, err := ParseColorMode(colors)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		cfg.Colors = mode
	}

	return cfg, nil
}

// ParseColorMode validates a colors setting.
func ParseColorMode(s string) (ColorMode, error) {
	switch mode := ColorMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ColorAuto, ColorAlways, ColorNever:
		return mode, nil
	case "":
		return ColorAuto, nil
	default:
		return "", fmt.Errorf("invalid colors %q (want auto, always or never)", s)
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

// ExpandPath resolves a leading ~ to the home directory and returns an
// absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
