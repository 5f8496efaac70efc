package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mfeller/plcmock/internal/server"
)

// StatsFunc returns the current server counters for display.
type StatsFunc func() server.StatsSnapshot

type tickMsg time.Time

// Model is the bubbletea model for the live stats dashboard.
type Model struct {
	title  string
	addr   string
	stats  StatsFunc
	snap   server.StatsSnapshot
	styles Styles
}

// NewModel creates a dashboard model polling stats once per second.
func NewModel(title string, addr string, stats StatsFunc) Model {
	return Model{
		title:  title,
		addr:   addr,
		stats:  stats,
		snap:   stats(),
		styles: DefaultStyles,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.snap = m.stats()
		return m, tickCmd()
	}
	return m, nil
}

func (m Model) View() string {
	s := m.styles
	row := func(label, value string) string {
		return s.Label.Render(label) + s.Value.Render(value) + "\n"
	}

	body := s.Title.Render(m.title) + "\n\n"
	body += row("Listening on", m.addr)
	body += row("Uptime", m.snap.Uptime.Truncate(time.Second).String())
	body += row("Active conns", fmt.Sprintf("%d", m.snap.ActiveConns))
	body += row("Total conns", fmt.Sprintf("%d", m.snap.TotalConns))
	body += row("Frames received", fmt.Sprintf("%d", m.snap.FramesReceived))
	body += row("Replies sent", fmt.Sprintf("%d", m.snap.RepliesSent))
	if m.snap.FramesDropped > 0 {
		body += s.Label.Render("Frames dropped") + s.Warning.Render(fmt.Sprintf("%d", m.snap.FramesDropped)) + "\n"
	} else {
		body += row("Frames dropped", "0")
	}
	body += row("Bytes in / out", fmt.Sprintf("%d / %d", m.snap.BytesIn, m.snap.BytesOut))
	body += "\n" + s.KeyHint.Render("q quit")

	return m.styles.Panel.Render(body)
}
