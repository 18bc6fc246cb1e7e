// Package tui is an interactive console attached to a live winx shell
// session: it mirrors the output buffers, sends commands and special keys,
// and shows session status.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/winxlab/winx/shell"
)

// Run attaches a console to the session and blocks until the user quits.
func Run(ctx context.Context, session *shell.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	program := tea.NewProgram(
		newModel(session),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

// pollMsg carries a fresh session snapshot into the update loop.
type pollMsg shell.Status

// Model renders one shell session: output viewport on top, prompt below,
// status bar at the bottom.
type Model struct {
	session *shell.Session

	output  viewport.Model
	input   textinput.Model
	spinner spinner.Model

	width  int
	height int
	ready  bool

	status  shell.Status
	lastErr string
}

func newModel(session *shell.Session) Model {
	input := textinput.New()
	input.Placeholder = "command (/keys for specials, /quit to exit)"
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = runningStyle

	return Model{
		session: session,
		input:   input,
		spinner: spin,
	}
}

// Init starts the input blink, the spinner, and the snapshot poller.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.poll())
}

// poll snapshots the session on the status cadence.
func (m Model) poll() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return pollMsg(m.session.Snapshot())
	})
}

// Update applies incoming Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		outHeight := m.height - 5
		if outHeight < 3 {
			outHeight = 3
		}
		if !m.ready {
			m.output = viewport.New(m.width-2, outHeight)
			m.ready = true
		} else {
			m.output.Width = m.width - 2
			m.output.Height = outHeight
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+q":
			return m, tea.Quit
		case "ctrl+c":
			m.recordErr(m.session.SendInterrupt())
			return m, nil
		case "enter":
			return m.submit()
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case pollMsg:
		m.status = shell.Status(msg)
		if m.ready {
			atBottom := m.output.AtBottom()
			m.output.SetContent(m.renderOutput())
			if atBottom {
				m.output.GotoBottom()
			}
		}
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// submit interprets the prompt line: /quit, /interrupt, /key <name>, or a
// command handed to the session.
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return m, nil
	}
	switch {
	case line == "/quit":
		return m, tea.Quit
	case line == "/interrupt":
		m.recordErr(m.session.SendInterrupt())
	case strings.HasPrefix(line, "/key "):
		name := strings.TrimSpace(strings.TrimPrefix(line, "/key "))
		m.recordErr(m.session.SendSpecials([]string{name}))
	default:
		_, err := m.session.Execute(line)
		m.recordErr(err)
	}
	return m, nil
}

func (m *Model) recordErr(err error) {
	if err != nil {
		m.lastErr = err.Error()
	} else {
		m.lastErr = ""
	}
}

func (m Model) renderOutput() string {
	out := m.status.Stdout
	if m.status.Stderr != "" {
		out += "\n" + stderrStyle.Render(m.status.Stderr)
	}
	return out
}

// View draws the console.
func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}
	var state string
	switch m.status.State {
	case shell.StateRunning:
		state = m.spinner.View() + runningStyle.Render("running")
	case shell.StateExited:
		state = exitedStyle.Render(fmt.Sprintf("exited (%d)", m.status.ExitCode))
	default:
		state = idleStyle.Render("not running")
	}
	statusBar := statusBarStyle.Render(fmt.Sprintf("%s  cwd: %s", state, m.session.Cwd()))
	if m.lastErr != "" {
		statusBar += "  " + stderrStyle.Render(m.lastErr)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("winx console"),
		outputBoxStyle.Render(m.output.View()),
		m.input.View(),
		statusBar,
	)
}
