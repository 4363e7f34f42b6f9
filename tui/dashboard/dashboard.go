// Package dashboard is a terminal view of a running watch session: the
// watched directory, the two queues and the render in progress.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/renderwatch/tui/theme"
)

const (
	refreshInterval = 250 * time.Millisecond
	maxQueueRows    = 8
)

// Snapshot is everything the dashboard shows for one frame.
type Snapshot struct {
	Dir      string
	State    string
	Render   []string
	Delete   []string
	Current  string
	Progress string

	Started   int
	Stopped   int
	Failed    int
	LastError string
}

// SnapshotFunc is polled on every refresh. It must not block.
type SnapshotFunc func() Snapshot

type keyMap struct {
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Quit}} }

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type tickMsg time.Time

// Model is the bubbletea model of the dashboard.
type Model struct {
	snapshot SnapshotFunc
	current  Snapshot
	spinner  spinner.Model
	help     help.Model
	width    int
	quitting bool
}

// New returns a dashboard reading from fn.
func New(fn SnapshotFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.DefaultTheme.Accent

	return &Model{
		snapshot: fn,
		current:  fn(),
		spinner:  s,
		help:     help.New(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	case tickMsg:
		m.current = m.snapshot()
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	t := theme.DefaultTheme
	s := m.current

	var b strings.Builder

	state := t.Muted.Render(s.State)
	if s.State == "watching" {
		state = m.spinner.View() + " " + t.Success.Render(s.State)
	}
	b.WriteString(t.Header.Render("renderwatch") + "  " + state + "\n")
	b.WriteString(t.Muted.Render("dir: ") + s.Dir + "\n\n")

	current := t.Muted.Render("idle")
	if s.Current != "" {
		current = t.Info.Render(s.Current)
		if s.Progress != "" {
			current += "  " + t.Muted.Render(s.Progress)
		}
	}
	b.WriteString(t.Bold.Render("Rendering: ") + current + "\n\n")

	queues := lipgloss.JoinHorizontal(lipgloss.Top,
		t.Box.Render(renderQueue("Render queue", s.Render)),
		" ",
		t.Box.Render(renderQueue("Delete queue", s.Delete)),
	)
	b.WriteString(queues + "\n")

	b.WriteString(fmt.Sprintf("started %d  stopped %d  ", s.Started, s.Stopped))
	if s.Failed > 0 {
		b.WriteString(t.Error.Render(fmt.Sprintf("failed %d", s.Failed)))
	} else {
		b.WriteString(fmt.Sprintf("failed %d", s.Failed))
	}
	b.WriteString("\n")
	if s.LastError != "" {
		b.WriteString(t.Error.Render("last error: ") + s.LastError + "\n")
	}

	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}

func renderQueue(title string, paths []string) string {
	t := theme.DefaultTheme
	lines := []string{t.Bold.Render(fmt.Sprintf("%s (%d)", title, len(paths)))}
	if len(paths) == 0 {
		lines = append(lines, t.Muted.Render("empty"))
	}
	for i, p := range paths {
		if i == maxQueueRows {
			lines = append(lines, t.Muted.Render(fmt.Sprintf("… %d more", len(paths)-maxQueueRows)))
			break
		}
		lines = append(lines, p)
	}
	return strings.Join(lines, "\n")
}

// Run blocks until the user quits.
func Run(fn SnapshotFunc, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(New(fn), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	_, err := p.Run()
	return err
}
