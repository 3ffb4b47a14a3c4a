package wsconn_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/obraviva/site-chat/internal/backend"
	"github.com/obraviva/site-chat/internal/backend/backendtest"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/internal/wsconn"
)

// recorder collects callbacks from the manager.
type recorder struct {
	mu     sync.Mutex
	states []domain.ConnectionState
	events []domain.Event
}

func (r *recorder) onState(s domain.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) onEvent(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) States() []domain.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ConnectionState(nil), r.states...)
}

func (r *recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func newManager(env *backendtest.Env, rec *recorder) *wsconn.Manager {
	return wsconn.New(wsconn.Config{
		URL:              env.WSURL,
		HandshakeTimeout: 2 * time.Second,
	}, wsconn.WithStateHandler(rec.onState), wsconn.WithEventHandler(rec.onEvent))
}

// ====== LIFECYCLE ======

func TestConnectAndReceive(t *testing.T) {
	env := backendtest.New(t)
	rec := &recorder{}
	m := newManager(env, rec)
	defer m.Disconnect()

	token := env.Token(t, backend.SeedClientID, domain.RoleClient)
	require.NoError(t, m.Connect(context.Background(), token, "C1"))
	require.Equal(t, domain.StateConnected, m.State())
	require.Equal(t, []domain.ConnectionState{domain.StateConnecting, domain.StateConnected}, rec.States())
	require.Equal(t, 1, env.Server.ConnectedClients("C1"))

	_, err := env.Server.Service().SendMessage(context.Background(), "C1", backend.SeedManagerID, "¿cómo va?")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, 2*time.Second, 10*time.Millisecond)
	ev := rec.Events()[0]
	require.Equal(t, domain.EventNewMessage, ev.Type)
	require.Equal(t, "C1", ev.ChatID)
	require.Equal(t, "¿cómo va?", ev.Message.Body)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	env := backendtest.New(t)
	rec := &recorder{}
	m := newManager(env, rec)

	// never connected
	m.Disconnect()
	m.Disconnect()
	require.Equal(t, domain.StateDisconnected, m.State())
	require.Empty(t, rec.States())

	token := env.Token(t, backend.SeedClientID, domain.RoleClient)
	require.NoError(t, m.Connect(context.Background(), token, "C1"))

	m.Disconnect()
	m.Disconnect()
	require.Equal(t, domain.StateDisconnected, m.State())
	require.Equal(t, []domain.ConnectionState{
		domain.StateConnecting, domain.StateConnected, domain.StateDisconnected,
	}, rec.States())

	require.Eventually(t, func() bool { return env.Server.ConnectedClients("C1") == 0 }, 2*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, m.SendTyping("C1", true), wsconn.ErrNotConnected)
}

func TestConnectAuthRejected(t *testing.T) {
	env := backendtest.New(t)
	rec := &recorder{}
	m := newManager(env, rec)

	err := m.Connect(context.Background(), "not-a-token", "C1")
	require.ErrorIs(t, err, wsconn.ErrAuthRejected)
	require.Equal(t, domain.StateDisconnected, m.State())
	require.Equal(t, []domain.ConnectionState{domain.StateConnecting, domain.StateDisconnected}, rec.States())
}

func TestConnectJoinRejected(t *testing.T) {
	env := backendtest.New(t)
	m := newManager(env, &recorder{})

	err := m.Connect(context.Background(), env.Token(t, "U3", domain.RoleClient), "C1")
	require.ErrorIs(t, err, wsconn.ErrJoinRejected)
	require.Equal(t, domain.StateDisconnected, m.State())
}

func TestConnectUnreachable(t *testing.T) {
	rec := &recorder{}
	m := wsconn.New(wsconn.Config{URL: "ws://127.0.0.1:1/chat/ws", HandshakeTimeout: time.Second},
		wsconn.WithStateHandler(rec.onState))

	err := m.Connect(context.Background(), "tok", "C1")
	require.Error(t, err)
	require.Equal(t, domain.StateDisconnected, m.State())
}

func TestReconnect(t *testing.T) {
	env := backendtest.New(t)
	rec := &recorder{}
	m := newManager(env, rec)
	defer m.Disconnect()

	require.ErrorIs(t, m.Reconnect(context.Background()), wsconn.ErrNeverConnected)

	token := env.Token(t, backend.SeedClientID, domain.RoleClient)
	require.NoError(t, m.Connect(context.Background(), token, "C1"))
	require.NoError(t, m.Reconnect(context.Background()))
	require.Equal(t, domain.StateConnected, m.State())

	// the previous socket is gone, only one stays joined
	require.Eventually(t, func() bool { return env.Server.ConnectedClients("C1") == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err := env.Server.Service().SendMessage(context.Background(), "C1", backend.SeedManagerID, "once")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Never(t, func() bool { return len(rec.Events()) > 1 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestConnectionLostByServer(t *testing.T) {
	env := backendtest.New(t)
	rec := &recorder{}
	m := newManager(env, rec)
	defer m.Disconnect()

	require.NoError(t, m.Connect(context.Background(), env.Token(t, backend.SeedClientID, domain.RoleClient), "C1"))
	env.Server.DropConnections()

	require.Eventually(t, func() bool { return m.State() == domain.StateDisconnected }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, domain.StateDisconnected, rec.States()[len(rec.States())-1])
}

// ====== OUTBOUND SIGNALS ======

func TestSendTypingAndReceipt(t *testing.T) {
	env := backendtest.New(t)
	m := newManager(env, &recorder{})
	defer m.Disconnect()
	require.NoError(t, m.Connect(context.Background(), env.Token(t, backend.SeedClientID, domain.RoleClient), "C1"))

	peer, _, err := websocket.DefaultDialer.Dial(env.WSURL, nil)
	require.NoError(t, err)
	defer peer.Close()
	require.NoError(t, peer.WriteJSON(domain.AuthMessage{Type: domain.MsgTypeAuth, Token: env.Token(t, backend.SeedManagerID, domain.RoleManager)}))
	require.NoError(t, peer.WriteJSON(domain.JoinChatMessage{Type: domain.MsgTypeJoinChat, ChatID: "C1"}))
	readType := func() map[string]interface{} {
		require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f map[string]interface{}
		require.NoError(t, peer.ReadJSON(&f))
		return f
	}
	require.Equal(t, domain.MsgTypeAuthResult, readType()["type"])
	require.Equal(t, domain.MsgTypeChatJoined, readType()["type"])

	require.NoError(t, m.SendTyping("C1", true))
	f := readType()
	require.Equal(t, domain.MsgTypeTypingStart, f["type"])
	require.Equal(t, backend.SeedClientID, f["user_id"])

	require.NoError(t, m.SendReadReceipt("C1", 1))
	f = readType()
	require.Equal(t, domain.MsgTypeReadReceipt, f["type"])
	require.Equal(t, float64(1), f["message_id"])
}

func TestConnectCancelledContext(t *testing.T) {
	env := backendtest.New(t)
	m := newManager(env, &recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Connect(ctx, env.Token(t, backend.SeedClientID, domain.RoleClient), "C1")
	require.Error(t, err)
	require.False(t, errors.Is(err, wsconn.ErrAuthRejected))
	require.Equal(t, domain.StateDisconnected, m.State())
}
