// Package tui is the bubbletea chat front end.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/mnemo/internal/agent"
	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/relationship"
)

// Chatter is the conversation the TUI talks to. *agent.Session satisfies it.
type Chatter interface {
	Turn(ctx context.Context, userID, text string) (*agent.Report, error)
	Snapshot(user string) agent.Snapshot
	Memories() []memory.Entry
}

// TUI forwards ui.UI calls into a running program.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(status string) {
	t.program.Send(StatusMsg(status))
}

func (t *TUI) UpdateState(snap agent.Snapshot) {
	t.program.Send(StateMsg(snap))
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	userStyle = lipgloss.NewStyle().Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))
)

// chrome is the number of rows used by everything except the transcript.
const chrome = 7

type Model struct {
	User       string
	Title      string
	Status     string
	State      agent.Snapshot
	Transcript []string
	Input      textinput.Model
	Viewport   viewport.Model
	Meter      progress.Model
	Busy       bool
	Quitting   bool
	Ready      bool
	Width      int
	Height     int

	ctx  context.Context
	chat Chatter
}

type LogMsg string
type StatusMsg string
type StateMsg agent.Snapshot

// ReplyMsg carries a finished turn back into the update loop.
type ReplyMsg struct {
	Report   *agent.Report
	Snapshot agent.Snapshot
}

// ErrMsg reports a failed turn.
type ErrMsg struct{ Err error }

func NewModel(ctx context.Context, title, user string, chat Chatter) Model {
	in := textinput.New()
	in.Placeholder = "Say something (/memories, /quit)"
	in.CharLimit = 4000
	in.Focus()

	return Model{
		User:   user,
		Title:  title,
		Status: "ready",
		State:  chat.Snapshot(user),
		Input:  in,
		Meter:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		ctx:    ctx,
		chat:   chat,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.Viewport, cmd = m.Viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.Input, cmd = m.Input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		h := max(msg.Height-chrome, 1)
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, h)
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = h
		}
		m.Meter.Width = min(max(msg.Width-40, 10), 40)
		m.Input.Width = max(msg.Width-4, 10)
		m.refresh()

	case ReplyMsg:
		m.Busy = false
		m.Status = "ready"
		m.State = msg.Snapshot
		m.appendLine(infoStyle.Render("mnemo: ") + msg.Report.Reply)

	case ErrMsg:
		m.Busy = false
		m.Status = "ready"
		m.appendLine(errorStyle.Render("error: " + msg.Err.Error()))

	case LogMsg:
		m.appendLine(string(msg))

	case StatusMsg:
		m.Status = string(msg)

	case StateMsg:
		m.State = agent.Snapshot(msg)
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.Input.Value())
	if text == "" || m.Busy {
		return m, nil
	}
	m.Input.Reset()

	switch text {
	case "/quit":
		m.Quitting = true
		return m, tea.Quit
	case "/memories":
		m.appendLine(renderMemories(m.chat.Memories()))
		return m, nil
	}

	m.Busy = true
	m.Status = "thinking..."
	m.appendLine(userStyle.Render(m.User+": ") + text)

	chat, ctx, user := m.chat, m.ctx, m.User
	return m, func() tea.Msg {
		rep, err := chat.Turn(ctx, user, text)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return ReplyMsg{Report: rep, Snapshot: chat.Snapshot(user)}
	}
}

func (m *Model) appendLine(line string) {
	m.Transcript = append(m.Transcript, line)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.Ready {
		return
	}
	m.Viewport.SetContent(strings.Join(m.Transcript, "\n"))
	m.Viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" " + m.Title + " ")
	status := infoStyle.Render(fmt.Sprintf(" %s ", m.Status))

	rel := m.State.Relationship.RelationshipPoints
	meter := fmt.Sprintf(" %-12s %s %4d   mood %s",
		m.State.Bucket, m.Meter.ViewAs(MeterFraction(rel)), rel, m.State.MoodLabel)

	view := fmt.Sprintf("%s%s\n\n%s\n\n%s\n%s",
		header, status,
		m.Viewport.View(),
		meter,
		m.Input.View())

	if m.Quitting {
		return view + "\n  Bye.\n"
	}
	return view
}

// MeterFraction maps relationship points onto [0, 1].
func MeterFraction(points int) float64 {
	span := float64(relationship.MaxPoints - relationship.MinPoints)
	f := float64(points-relationship.MinPoints) / span
	return min(max(f, 0), 1)
}

func renderMemories(mems []memory.Entry) string {
	if len(mems) == 0 {
		return "no memories yet"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d memories:", len(mems))
	for _, e := range mems {
		fmt.Fprintf(&b, "\n  %s [%s] %q", e.CreatedAt.Format("Jan 2 15:04"), e.Label, e.UserText)
	}
	return b.String()
}
