/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Seednode/pointbox/internal/session"
	"github.com/Seednode/pointbox/internal/tradeoff"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const sliderWidth = 30

// LiveRoom is a Room that also reports when its state changes.
type LiveRoom interface {
	Room
	Updates() <-chan struct{}
}

type roomChangedMsg struct {
	closed bool
}

func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		_, ok := <-updates

		return roomChangedMsg{closed: !ok}
	}
}

type tuiTheme struct {
	header   lipgloss.Style
	panel    lipgloss.Style
	title    lipgloss.Style
	self     lipgloss.Style
	muted    lipgloss.Style
	card     lipgloss.Style
	status   lipgloss.Style
	errorBox lipgloss.Style
	errText  lipgloss.Style
}

func newTheme() tuiTheme {
	accent := lipgloss.Color("#01cdfe")
	warn := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")

	return tuiTheme{
		header: lipgloss.NewStyle().Bold(true).Foreground(accent),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		title:  lipgloss.NewStyle().Bold(true),
		self:   lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1")).Bold(true),
		muted:  lipgloss.NewStyle().Foreground(muted),
		card:   lipgloss.NewStyle().Bold(true).Padding(0, 1).BorderStyle(lipgloss.NormalBorder()),
		status: lipgloss.NewStyle().Foreground(accent),
		errorBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(warn).
			Padding(1, 2),
		errText: lipgloss.NewStyle().Foreground(warn).Bold(true),
	}
}

type model struct {
	room   LiveRoom
	agenda *Agenda
	share  string

	snap session.Snapshot

	input   textinput.Model
	spinner spinner.Model
	theme   tuiTheme

	status    string
	statusErr bool
	width     int
}

func newModel(room LiveRoom, agenda *Agenda, share string) model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 200
	input.Placeholder = `a card, or "help"`
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		room:    room,
		agenda:  agenda,
		share:   share,
		snap:    room.Snapshot(),
		input:   input,
		spinner: sp,
		theme:   newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		waitForUpdate(m.room.Updates()),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case roomChangedMsg:
		m.snap = m.room.Snapshot()

		if msg.closed {
			if m.snap.Err != nil {
				return m, nil
			}

			return m, tea.Quit
		}

		return m, waitForUpdate(m.room.Updates())
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)

		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

		if m.snap.Err != nil {
			switch msg.String() {
			case "q", "esc", "enter":
				return m, tea.Quit
			}

			return m, nil
		}

		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	if line == "" {
		return m, nil
	}

	c, err := ParseCommand(line)
	if err == nil {
		m.status, err = c.Run(m.room, m.agenda)
	}

	m.snap = m.room.Snapshot()

	if err != nil {
		m.status, m.statusErr = err.Error(), true

		return m, nil
	}

	m.statusErr = false

	if c.Name == "quit" {
		return m, tea.Quit
	}

	return m, nil
}

func (m model) View() string {
	snap := m.snap

	if snap.Err != nil {
		body := m.theme.errText.Render("Could not stay in the room") + "\n\n" +
			snap.Err.Error() + "\n\n" +
			m.theme.muted.Render("press q to quit")

		return m.theme.errorBox.Render(body) + "\n"
	}

	var b strings.Builder

	b.WriteString(m.theme.header.Render(fmt.Sprintf("pointbox · %s · %s", snap.Identity.RoomID, snap.Mode)))
	if m.share != "" {
		b.WriteString("  " + m.theme.muted.Render(m.share))
	}
	b.WriteString("\n\n")

	if snap.Connecting {
		b.WriteString(m.spinner.View() + " Connecting...\n")

		return b.String()
	}

	var panel string
	if snap.Mode == session.ModeTradeoff {
		panel = m.tradeoffView()
	} else {
		panel = m.pokerView()
	}

	b.WriteString(m.theme.panel.Render(panel))
	b.WriteString("\n")

	if snap.Comment != "" {
		b.WriteString(m.theme.muted.Render("note: "+snap.Comment) + "\n")
	}

	if m.status != "" {
		style := m.theme.status
		if m.statusErr {
			style = m.theme.errText
		}
		b.WriteString(style.Render(m.status) + "\n")
	}

	b.WriteString(m.input.View() + "\n")

	return b.String()
}

func (m model) pokerView() string {
	snap := m.snap

	var b strings.Builder

	switch {
	case snap.Task == nil:
		b.WriteString(m.theme.muted.Render("Waiting for the facilitator to start a task"))
	case snap.Task.Revealed:
		b.WriteString(m.theme.title.Render(snap.Task.Text) + m.theme.muted.Render("  revealed"))
	default:
		b.WriteString(m.theme.title.Render(snap.Task.Text))
	}
	b.WriteString("\n\n")

	for _, row := range snap.Participants {
		b.WriteString(m.participant(row) + "  " + rowValue(snap, row) + "\n")
	}

	if snap.Task != nil && snap.Task.Revealed {
		avg := "n/a"
		if snap.Average != nil {
			avg = strconv.FormatFloat(*snap.Average, 'f', 1, 64)
		}
		b.WriteString("\n" + m.theme.title.Render("Average: "+avg) + "\n")
	} else if snap.CanVote {
		b.WriteString("\n" + m.theme.muted.Render("cards: "+cardHint()) + "\n")
	}

	if snap.Identity.Facilitator && snap.CanReveal {
		b.WriteString(m.theme.status.Render("everyone has voted, type reveal") + "\n")
	}

	return b.String()
}

func (m model) tradeoffView() string {
	snap := m.snap

	var b strings.Builder

	b.WriteString(m.theme.title.Render(snap.Theme.Left + " ⟷ " + snap.Theme.Right))
	if snap.Locked {
		b.WriteString(m.theme.muted.Render("  locked"))
	}
	b.WriteString("\n\n")

	for _, row := range snap.Participants {
		fmt.Fprintf(&b, "%s  %s %3.0f\n", m.participant(row), sliderBar(row.Value), row.Value)
	}

	return b.String()
}

func (m model) participant(row session.Row) string {
	label := fmt.Sprintf("%-20s", rowLabel(row))

	switch {
	case row.Self:
		return m.theme.self.Render(label)
	case !row.Enabled:
		return m.theme.muted.Render(label)
	default:
		return label
	}
}

// sliderBar draws v in [0, 100] as a track with a marker.
func sliderBar(v float64) string {
	pos := int(v / tradeoff.MaxValue * float64(sliderWidth-1))
	pos = min(max(pos, 0), sliderWidth-1)

	return "[" + strings.Repeat("─", pos) + "●" + strings.Repeat("─", sliderWidth-1-pos) + "]"
}

func runTUI(ctx context.Context, room LiveRoom, agenda *Agenda, share string) error {
	p := tea.NewProgram(newModel(room, agenda, share), tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}

		return err
	}

	if m, ok := final.(model); ok && m.snap.Err != nil {
		return m.snap.Err
	}

	return nil
}
