package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	cl "github.com/GGBond-gogo/mrtoast/internal/cli"
	"github.com/GGBond-gogo/mrtoast/internal/game"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const watchPollEvery = 2 * time.Second

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	watchPhaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	watchDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	watchUpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	watchDownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	watchDeadStyle  = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
	watchErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type watchSnapMsg struct {
	snap game.Snapshot
	err  error
}

type watchTickMsg time.Time

type watchModel struct {
	client  *cl.Client
	gameID  string
	token   string
	spin    spinner.Model
	snap    game.Snapshot
	loaded  bool
	lastErr error
}

func runWatch(ctx context.Context, client *cl.Client, gameID, token string) error {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = watchTitleStyle
	m := watchModel{client: client, gameID: gameID, token: token, spin: sp}
	_, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	return err
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetch())
}

func (m watchModel) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		snap, err := m.client.State(ctx, m.gameID, m.token)
		return watchSnapMsg{snap: snap, err: err}
	}
}

func watchTick() tea.Cmd {
	return tea.Tick(watchPollEvery, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		}
		return m, nil
	case watchSnapMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.snap = msg.snap
			m.loaded = true
			m.lastErr = nil
		}
		// A finished table never changes again, so polling stops.
		if m.loaded && m.snap.Phase == game.PhaseGameEnd {
			return m, nil
		}
		return m, watchTick()
	case watchTickMsg:
		return m, m.fetch()
	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString("\n")
	if !m.loaded {
		b.WriteString(fmt.Sprintf("  %s fetching table %s...\n", m.spin.View(), m.gameID))
		if m.lastErr != nil {
			b.WriteString("  " + watchErrStyle.Render(m.lastErr.Error()) + "\n")
		}
		return b.String()
	}
	snap := m.snap

	b.WriteString("  " + watchTitleStyle.Render(fmt.Sprintf("TABLE %s", snap.GameID)))
	b.WriteString("  " + watchPhaseStyle.Render(string(snap.Phase)))
	if snap.Phase.Active() {
		b.WriteString(watchDimStyle.Render(fmt.Sprintf("  round %d, %ds left", snap.Round, snap.TimeRemaining)))
	}
	b.WriteString("\n\n")

	b.WriteString("  " + watchDimStyle.Render(fmt.Sprintf("%-8s %14s %10s", "SYMBOL", "PRICE", "CHANGE")) + "\n")
	for _, s := range snap.Market.Stocks {
		change := fmt.Sprintf("%+.2f%%", s.ChangePct)
		switch {
		case s.ChangePct > 0:
			change = watchUpStyle.Render(change)
		case s.ChangePct < 0:
			change = watchDownStyle.Render(change)
		}
		b.WriteString(fmt.Sprintf("  %-8s %14s %s\n", s.Symbol, formatToast(s.PriceMicros), change))
	}

	b.WriteString("\n")
	for _, p := range snap.Players {
		name := p.Name
		if p.IsAI {
			name += " (bot)"
		}
		line := fmt.Sprintf("%-24s %14s  sus %3d  trust %3d",
			truncate(name, 24), formatToast(p.NetWorthMicros), p.Suspicion, p.Trust)
		if !p.IsAlive {
			b.WriteString("  " + watchDeadStyle.Render(line) + "\n")
			continue
		}
		b.WriteString("  " + line + "\n")
	}

	if n := len(snap.Messages); n > 0 {
		b.WriteString("\n")
		start := n - 3
		if start < 0 {
			start = 0
		}
		for _, msg := range snap.Messages[start:] {
			who := msg.PlayerName
			if msg.Type == game.MessageSystem {
				who = "table"
			}
			b.WriteString("  " + watchDimStyle.Render(fmt.Sprintf("%s: %s", who, truncate(msg.Message, 60))) + "\n")
		}
	}

	if snap.Phase == game.PhaseGameEnd && snap.Winner != "" {
		b.WriteString("\n  " + watchTitleStyle.Render(fmt.Sprintf("The %s side wins after %d rounds.", snap.Winner, snap.Round)) + "\n")
	}
	if m.lastErr != nil {
		b.WriteString("\n  " + watchErrStyle.Render("poll failed: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n  " + watchDimStyle.Render("press q to quit, r to refresh") + "\n")
	return b.String()
}
