package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/devsyslog/internal/prefs"
	"github.com/five82/devsyslog/internal/state"
)

const (
	defaultTick    = time.Second
	renderInterval = 100 * time.Millisecond
	chromeHeight   = 2 // header + footer
)

// Options configures the live view.
type Options struct {
	Store *state.Store
	// ThemeName overrides the saved theme when set.
	ThemeName string
	PrefsPath string // empty uses default ~/.config/devsyslog/prefs.toml
	Tick      time.Duration
}

// Model is the Bubble Tea model of the live view.
type Model struct {
	store     *state.Store
	prefsPath string
	tick      time.Duration

	theme  Theme
	keys   keyMap
	help   help.Model
	width  int
	height int
	ready  bool

	snapshot    state.Snapshot
	lastUpdated time.Time

	lines      []string
	scrollback int
	dirty      bool
	viewport   viewport.Model
	follow     bool

	showHelp bool
	prefsErr error
}

// New creates the live view model.
func New(opts Options) Model {
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	saved := prefs.Load(prefsPath)

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = saved.Theme
	}

	return Model{
		store:      opts.Store,
		prefsPath:  prefsPath,
		tick:       tick,
		theme:      GetTheme(themeName),
		keys:       DefaultKeyMap(),
		help:       help.New(),
		follow:     saved.Follow,
		scrollback: saved.Scrollback,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.tick),
		renderCmd(),
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.bodyHeight())
			m.ready = true
			m.dirty = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.bodyHeight()
		}
		m.refreshViewport()
		return m, nil

	case linesMsg:
		m.appendLines(msg)
		return m, nil

	case renderMsg:
		m.refreshViewport()
		return m, renderCmd()

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.tick))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		name := m.theme.Name
		m.prefsErr = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = name })
		return m, nil

	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.refreshViewport()
			m.viewport.GotoBottom()
		}
		follow := m.follow
		m.prefsErr = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Follow = follow })
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		m.follow = false
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.refreshViewport()
		m.viewport.GotoBottom()
		m.follow = true
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

// appendLines adds relayed lines to the scrollback, dropping the oldest past
// the saved scrollback size. The viewport is refreshed on the next render tick.
func (m *Model) appendLines(lines []string) {
	m.lines = append(m.lines, lines...)
	if over := len(m.lines) - m.scrollback; over > 0 {
		m.lines = append(m.lines[:0:0], m.lines[over:]...)
	}
	m.dirty = true
}

func (m *Model) refreshViewport() {
	if !m.ready || !m.dirty {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.dirty = false
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) bodyHeight() int {
	if h := m.height - chromeHeight; h > 0 {
		return h
	}
	return 1
}

// Messages

type tickMsg time.Time

type renderMsg time.Time

type snapshotMsg state.Snapshot

type linesMsg []string

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func renderCmd() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return renderMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}
