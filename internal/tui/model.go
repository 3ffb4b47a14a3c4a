// Package tui is the terminal host of a chat view. It forwards terminal
// focus, keypresses and clicks to the read gate and renders snapshots.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/obraviva/site-chat/internal/chatview"
	"github.com/obraviva/site-chat/internal/coordinator"
	"github.com/obraviva/site-chat/internal/domain"
)

// View is the part of chatview.View the terminal drives.
type View interface {
	Activity(a coordinator.Activity)
	Input(text string)
	Send(ctx context.Context, text string) error
	Reconnect(ctx context.Context) error
	Snapshot() chatview.Snapshot
}

// ChangedMsg asks the model to re-read the view's snapshot. Send it from
// the view's notify hook through tea.Program.Send.
type ChangedMsg struct{}

type sentMsg struct{ err error }

type reconnectedMsg struct{ err error }

const headerHeight, footerHeight = 2, 5

type Model struct {
	view    View
	input   textinput.Model
	history viewport.Model
	snap    chatview.Snapshot
	status  string
	width   int
}

func New(view View) Model {
	in := textinput.New()
	in.Placeholder = "Escribe un mensaje..."
	in.CharLimit = 2000
	in.Focus()

	m := Model{
		view:    view,
		input:   in,
		history: viewport.New(80, 20),
		width:   80,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.history.Width = msg.Width
		m.history.Height = max(msg.Height-headerHeight-footerHeight, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.FocusMsg:
		m.view.Activity(coordinator.ActivityFocusGained)
		return m, nil

	case tea.BlurMsg:
		m.view.Activity(coordinator.ActivityBlur)
		return m, nil

	case tea.MouseMsg:
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress {
			m.view.Activity(coordinator.ActivityClick)
		}
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd

	case ChangedMsg:
		m.refresh()
		return m, nil

	case sentMsg:
		if msg.err == nil {
			m.input.Reset()
			m.status = ""
		}
		m.refresh()
		return m, nil

	case reconnectedMsg:
		m.status = ""
		if msg.err != nil {
			m.status = "reconexión fallida: " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "ctrl+r":
		m.status = "reconectando..."
		return m, m.reconnect()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}

	m.view.Activity(coordinator.ActivityKeypress)

	if msg.Type == tea.KeyEnter {
		if m.snap.Sending {
			return m, nil
		}
		return m, m.send(m.input.Value())
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.view.Input(after)
	}
	return m, cmd
}

func (m Model) send(text string) tea.Cmd {
	view := m.view
	return func() tea.Msg {
		return sentMsg{err: view.Send(context.Background(), text)}
	}
}

func (m Model) reconnect() tea.Cmd {
	view := m.view
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return reconnectedMsg{err: view.Reconnect(ctx)}
	}
}

// refresh pulls a fresh snapshot into the model.
func (m *Model) refresh() {
	m.snap = m.view.Snapshot()
	atBottom := m.history.AtBottom()
	m.history.SetContent(m.renderMessages())
	if atBottom {
		m.history.GotoBottom()
	}
}

func (m Model) renderMessages() string {
	s := m.snap
	switch {
	case s.Loading:
		return mutedStyle.Render("cargando historial...")
	case s.LoadError != nil:
		return errorStyle.Render("no se pudo cargar el chat: " + s.LoadError.Error())
	case len(s.Messages) == 0:
		return mutedStyle.Render("sin mensajes todavía")
	}

	var b strings.Builder
	for _, msg := range s.Messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMessage(msg domain.Message) string {
	ts := mutedStyle.Render(msg.CreatedAt.Local().Format("15:04"))
	if msg.SenderID == m.snap.SelfID {
		mark := "✓"
		if msg.Read {
			mark = "✓✓"
		}
		return fmt.Sprintf("%s %s %s", ts, ownMessageStyle.Render("tú: "+msg.Body), mutedStyle.Render(mark))
	}
	return fmt.Sprintf("%s %s", ts, otherMessageStyle.Render(m.senderName(msg.SenderID)+": "+msg.Body))
}

func (m Model) senderName(userID string) string {
	if p, ok := m.snap.Counterpart(); ok && p.UserID == userID && p.Name != "" {
		return p.Name
	}
	return userID
}

func (m Model) View() string {
	return strings.Join([]string{
		m.header(),
		m.history.View(),
		m.footer(),
	}, "\n")
}

func (m Model) header() string {
	title := m.snap.ChatID
	if p, ok := m.snap.Counterpart(); ok && p.Name != "" {
		title = fmt.Sprintf("%s · %s", p.Name, m.snap.ChatID)
	}
	return headerStyle.Width(m.width).Render(title + "  " + stateBadge(m.snap.State))
}

func stateBadge(s domain.ConnectionState) string {
	switch s {
	case domain.StateConnected:
		return connectedStyle.Render("● conectado")
	case domain.StateConnecting:
		return connectingStyle.Render("● conectando")
	}
	return disconnectedStyle.Render("● desconectado (ctrl+r)")
}

func (m Model) footer() string {
	var lines []string

	if typing := m.snap.Typing; len(typing) > 0 {
		names := make([]string, 0, len(typing))
		for _, id := range typing {
			names = append(names, m.senderName(id))
		}
		lines = append(lines, mutedStyle.Render(strings.Join(names, ", ")+" está escribiendo..."))
	} else {
		lines = append(lines, "")
	}

	switch {
	case m.snap.SendError != nil:
		lines = append(lines, errorStyle.Render("no se envió: "+m.snap.SendError.Error()))
	case m.snap.ReadError != nil:
		lines = append(lines, errorStyle.Render("no se marcó como leído: "+m.snap.ReadError.Error()))
	case m.status != "":
		lines = append(lines, mutedStyle.Render(m.status))
	case m.snap.Sending:
		lines = append(lines, mutedStyle.Render("enviando..."))
	default:
		lines = append(lines, "")
	}

	lines = append(lines, m.input.View())
	return footerStyle.Width(m.width).Render(strings.Join(lines, "\n")) +
		"\n" + mutedStyle.Render("enter enviar · ctrl+r reconectar · esc salir")
}
