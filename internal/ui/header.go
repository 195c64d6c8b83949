package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/devsyslog/internal/state"
)

// renderHeader renders the status bar from the latest store snapshot.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBgStyle(m.theme.Surface)

	parts := []string{
		bg.Render("devsyslog", styles.Logo),
		styles.StateStyle(stateBadge(m.snapshot)).Render(strings.ToUpper(stateBadge(m.snapshot))),
		bg.Render(targetLabel(m.snapshot), styles.Text),
	}

	if m.snapshot.Active {
		parts = append(parts,
			bg.Render("session", styles.FaintText)+bg.Space()+
				bg.Render(shortID(m.snapshot.SessionID), styles.MutedText))
	}

	parts = append(parts,
		bg.Render("lines", styles.FaintText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", m.snapshot.LinesRelayed), styles.AccentText))

	if !m.follow {
		parts = append(parts, bg.Render("PAUSED", styles.WarningText))
	}

	if err := m.snapshot.LastError; err != nil {
		maxErr := 60
		if m.width > 0 && m.width < 100 {
			maxErr = 30
		}
		parts = append(parts, bg.Render("ERROR "+truncate(err.Error(), maxErr), styles.DangerText))
	}

	return styles.Header.Width(m.width).MaxHeight(1).Render(bg.Join(parts, "  "))
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	text := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.prefsErr != nil {
		text += "  " + styles.DangerText.Render("theme not saved: "+truncate(m.prefsErr.Error(), 40))
	}
	return styles.Footer.Width(m.width).MaxHeight(1).Render(m.theme.Name + "  " + text)
}

// stateBadge names the header badge: waiting means a target is fixed but no
// session is open yet.
func stateBadge(snap state.Snapshot) string {
	if snap.Active {
		return "active"
	}
	if snap.Waiting() {
		return "waiting"
	}
	return "idle"
}

func targetLabel(snap state.Snapshot) string {
	if !snap.HasTarget {
		return "waiting for first device"
	}
	return snap.Target
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens a string to the given limit, adding ellipsis if needed.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// bgStyle renders segments on a shared background. Without it the reset
// between two styled segments leaves a gap in the header color.
type bgStyle struct {
	bg    lipgloss.Color
	space string
}

func newBgStyle(color string) bgStyle {
	bg := lipgloss.Color(color)
	return bgStyle{
		bg:    bg,
		space: lipgloss.NewStyle().Background(bg).Render(" "),
	}
}

// Render styles each word separately and joins them with background spaces.
func (b bgStyle) Render(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	style = style.Background(b.bg)
	words := strings.Split(text, " ")
	for i, w := range words {
		if w != "" {
			words[i] = style.Render(w)
		}
	}
	return strings.Join(words, b.space)
}

func (b bgStyle) Space() string {
	return b.space
}

func (b bgStyle) Join(parts []string, sep string) string {
	return strings.Join(parts, lipgloss.NewStyle().Background(b.bg).Render(sep))
}
