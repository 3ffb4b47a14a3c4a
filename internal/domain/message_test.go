package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validMessage() Message {
	return Message{
		ID:         1,
		ChatID:     "C1",
		SenderID:   "U2",
		SenderRole: RoleManager,
		Body:       "hola",
		CreatedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMessageIDUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    MessageID
		wantErr bool
	}{
		{"number", `42`, 42, false},
		{"string", `"42"`, 42, false},
		{"null", `null`, 0, false},
		{"garbage", `"abc"`, 0, true},
		{"float", `4.2`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id MessageID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, id)
		})
	}
}

func TestMessageDecode(t *testing.T) {
	raw := `{"id":"7","chat_id":"C1","sender_id":"U2","sender_role":"manager","body":"¿cómo va?","created_at":"2024-05-01T10:00:00Z","read":true}`
	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.Equal(t, MessageID(7), m.ID)
	require.True(t, m.Read)
	require.NoError(t, m.Validate())
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Message)
	}{
		{"zero id", func(m *Message) { m.ID = 0 }},
		{"missing chat", func(m *Message) { m.ChatID = "" }},
		{"missing sender", func(m *Message) { m.SenderID = "" }},
		{"unknown role", func(m *Message) { m.SenderRole = "guest" }},
		{"blank body", func(m *Message) { m.Body = "   " }},
		{"zero time", func(m *Message) { m.CreatedAt = time.Time{} }},
	}
	require.NoError(t, validMessage().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMessage()
			tt.mutate(&m)
			err := m.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidMessage))
		})
	}
}

func TestMessageBefore(t *testing.T) {
	a := validMessage()
	b := validMessage()
	b.ID = 2
	require.True(t, a.Before(b))
	require.False(t, b.Before(a))

	b.CreatedAt = a.CreatedAt.Add(-time.Second)
	require.True(t, b.Before(a))
}

func TestChatSessionCounterpart(t *testing.T) {
	s := ChatSession{
		ID:      "C1",
		Client:  Participant{UserID: "U1", Role: RoleClient},
		Manager: Participant{UserID: "U2", Role: RoleManager},
	}
	require.Equal(t, "U2", s.Counterpart("U1").UserID)
	require.Equal(t, "U1", s.Counterpart("U2").UserID)
	require.True(t, s.HasParticipant("U1"))
	require.False(t, s.HasParticipant("U3"))
	require.False(t, s.HasParticipant(""))
}

func TestConnectionStateString(t *testing.T) {
	require.Equal(t, "disconnected", StateDisconnected.String())
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "connected", StateConnected.String())
}
