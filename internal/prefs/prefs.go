// Package prefs remembers how the operator left the live view: its theme,
// whether it was following the tail, and how many lines of scrollback it
// keeps. The file lives at ~/.config/devsyslog/prefs.toml.
//
// Preferences never block startup. A missing, unreadable or malformed file
// yields defaults, and keys absent from the file keep their default values.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/devsyslog/internal/config"
)

const (
	// DefaultScrollback is the number of lines the live view keeps.
	DefaultScrollback = 5000
	MinScrollback     = 100
	MaxScrollback     = 100000

	defaultPath  = "~/.config/devsyslog/prefs.toml"
	defaultTheme = "Nightfox"
)

// Prefs are the live view settings that survive a restart.
type Prefs struct {
	Theme      string `toml:"theme"`
	Follow     bool   `toml:"follow"`
	Scrollback int    `toml:"scrollback"`
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPath
}

// Default returns the preferences of a first run.
func Default() Prefs {
	return Prefs{
		Theme:      defaultTheme,
		Follow:     true,
		Scrollback: DefaultScrollback,
	}
}

// Load reads preferences from path. An empty path means DefaultPath.
func Load(path string) Prefs {
	p := Default()
	resolved, err := resolve(path)
	if err != nil {
		return p
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return p
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return Default()
	}
	return p.normalized()
}

// Save replaces the preferences file. The new contents are written to a
// temporary file in the same directory and renamed into place.
func Save(path string, p Prefs) error {
	resolved, err := resolve(path)
	if err != nil {
		return fmt.Errorf("resolve prefs path: %w", err)
	}
	data, err := toml.Marshal(p.normalized())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("create prefs temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

// Update loads the current preferences, applies fn and saves the result, so
// changing one setting keeps the others.
func Update(path string, fn func(*Prefs)) error {
	p := Load(path)
	fn(&p)
	return Save(path, p)
}

func (p Prefs) normalized() Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	switch {
	case p.Scrollback == 0:
		p.Scrollback = DefaultScrollback
	case p.Scrollback < MinScrollback:
		p.Scrollback = MinScrollback
	case p.Scrollback > MaxScrollback:
		p.Scrollback = MaxScrollback
	}
	return p
}

func resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultPath
	}
	return config.ExpandPath(path)
}
