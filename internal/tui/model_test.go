package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/obraviva/site-chat/internal/chatview"
	"github.com/obraviva/site-chat/internal/coordinator"
	"github.com/obraviva/site-chat/internal/domain"
)

type fakeView struct {
	mu         sync.Mutex
	activities []coordinator.Activity
	inputs     []string
	sent       []string
	sendErr    error
	reconnects int
	snap       chatview.Snapshot
}

func (f *fakeView) Activity(a coordinator.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, a)
}

func (f *fakeView) Input(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
}

func (f *fakeView) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *fakeView) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}

func (f *fakeView) Snapshot() chatview.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func seededSnapshot() chatview.Snapshot {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return chatview.Snapshot{
		ChatID: "C1",
		SelfID: "U1",
		Chat: domain.ChatSession{
			ID:      "C1",
			Client:  domain.Participant{UserID: "U1", Name: "Lucía", Role: domain.RoleClient},
			Manager: domain.Participant{UserID: "U2", Name: "Andrés", Role: domain.RoleManager},
		},
		State: domain.StateConnected,
		Messages: []domain.Message{
			{ID: 1, ChatID: "C1", SenderID: "U2", Body: "hola", CreatedAt: t0, Read: true},
			{ID: 2, ChatID: "C1", SenderID: "U1", Body: "bien", CreatedAt: t0.Add(time.Minute)},
		},
	}
}

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()
	for _, r := range text {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestFocusForwarding(t *testing.T) {
	tests := []struct {
		name string
		msgs []tea.Msg
		want []coordinator.Activity
	}{
		{"focus", []tea.Msg{tea.FocusMsg{}}, []coordinator.Activity{coordinator.ActivityFocusGained}},
		{"blur", []tea.Msg{tea.BlurMsg{}}, []coordinator.Activity{coordinator.ActivityBlur}},
		{
			"focus then blur",
			[]tea.Msg{tea.FocusMsg{}, tea.BlurMsg{}, tea.FocusMsg{}},
			[]coordinator.Activity{coordinator.ActivityFocusGained, coordinator.ActivityBlur, coordinator.ActivityFocusGained},
		},
		{
			"click",
			[]tea.Msg{tea.MouseMsg{Button: tea.MouseButtonLeft, Action: tea.MouseActionPress}},
			[]coordinator.Activity{coordinator.ActivityClick},
		},
		{"wheel", []tea.Msg{tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress}}, nil},
		{"keypress", []tea.Msg{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}}}, []coordinator.Activity{coordinator.ActivityKeypress}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fv := &fakeView{}
			var m tea.Model = New(fv)
			for _, msg := range tc.msgs {
				m, _ = m.Update(msg)
			}
			require.Equal(t, tc.want, fv.activities)
		})
	}
}

func TestTypingAndSend(t *testing.T) {
	fv := &fakeView{snap: seededSnapshot()}
	var m tea.Model = New(fv)

	m = typeText(t, m, "bien")
	require.Equal(t, []string{"b", "bi", "bie", "bien"}, fv.inputs)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	require.Equal(t, []string{"bien"}, fv.sent)
	require.Empty(t, m.(Model).input.Value())
}

func TestSendFailureKeepsInput(t *testing.T) {
	fv := &fakeView{snap: seededSnapshot(), sendErr: errors.New("timeout")}
	var m tea.Model = New(fv)

	m = typeText(t, m, "bien")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	fv.mu.Lock()
	fv.snap.SendError = fv.sendErr
	fv.mu.Unlock()
	m, _ = m.Update(cmd())

	require.Equal(t, "bien", m.(Model).input.Value())
	require.Contains(t, m.View(), "no se envió: timeout")
}

func TestEnterWhileSendingIsIgnored(t *testing.T) {
	snap := seededSnapshot()
	snap.Sending = true
	fv := &fakeView{snap: snap}
	var m tea.Model = New(fv)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
}

func TestReconnectKey(t *testing.T) {
	fv := &fakeView{snap: seededSnapshot()}
	var m tea.Model = New(fv)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	m.Update(cmd())
	require.Equal(t, 1, fv.reconnects)
}

func TestRender(t *testing.T) {
	snap := seededSnapshot()
	snap.Typing = []string{"U2"}
	fv := &fakeView{snap: snap}
	var m tea.Model = New(fv)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	out := m.View()
	require.Contains(t, out, "Andrés")
	require.Contains(t, out, "hola")
	require.Contains(t, out, "tú: bien")
	require.Contains(t, out, "conectado")
	require.Contains(t, out, "Andrés está escribiendo...")

	fv.mu.Lock()
	fv.snap.State = domain.StateDisconnected
	fv.mu.Unlock()
	m, _ = m.Update(ChangedMsg{})
	require.Contains(t, m.View(), "desconectado")
}
