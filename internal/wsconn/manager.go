// Package wsconn owns the persistent, authenticated chat connection of one
// mounted chat view.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/log"
)

var (
	ErrAuthRejected      = errors.New("chat backend rejected credentials")
	ErrJoinRejected      = errors.New("chat backend rejected join")
	ErrNotConnected      = errors.New("not connected")
	ErrSendBufferFull    = errors.New("send buffer full")
	ErrNeverConnected    = errors.New("reconnect requested before any connect")
	ErrConnectSuperseded = errors.New("connect superseded by a newer connect or disconnect")
)

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
	SendBuffer       int
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 65536
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return c
}

// Manager holds at most one live connection. Connect tears the previous
// one down before dialing; Disconnect is idempotent. State changes and
// inbound events are reported through the callbacks, never under the
// manager's lock. Callbacks must not call Disconnect or Connect
// synchronously.
type Manager struct {
	cfg     Config
	dialer  *websocket.Dialer
	onEvent func(domain.Event)
	onState func(domain.ConnectionState)

	mu      sync.Mutex
	state   domain.ConnectionState
	attempt uint64
	conn    *connection
	token   string
	chatID  string
}

type Option func(*Manager)

// WithEventHandler receives every decoded inbound event, for any chat.
func WithEventHandler(fn func(domain.Event)) Option {
	return func(m *Manager) { m.onEvent = fn }
}

// WithStateHandler receives every connection state transition.
func WithStateHandler(fn func(domain.ConnectionState)) Option {
	return func(m *Manager) { m.onState = fn }
}

func New(cfg Config, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		onEvent: func(domain.Event) {},
		onState: func(domain.ConnectionState) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ChatID returns the chat of the last Connect call.
func (m *Manager) ChatID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatID
}

// setStateLocked records s and returns whether it changed.
func (m *Manager) setStateLocked(s domain.ConnectionState) bool {
	if m.state == s {
		return false
	}
	m.state = s
	return true
}

func (m *Manager) notifyState(s domain.ConnectionState) {
	l := log.L()
	l.Debug().Str(log.FieldConnState, s.String()).Msg("connection state changed")
	m.onState(s)
}

// Connect authenticates with token and joins chatID. Any previous
// connection is closed first. Failure leaves the manager disconnected and
// is returned for the caller to record; it is never a panic.
func (m *Manager) Connect(ctx context.Context, token, chatID string) error {
	m.Disconnect()

	m.mu.Lock()
	m.attempt++
	attempt := m.attempt
	m.token = token
	m.chatID = chatID
	changed := m.setStateLocked(domain.StateConnecting)
	m.mu.Unlock()
	if changed {
		m.notifyState(domain.StateConnecting)
	}

	l := log.Ctx(ctx).With().Str(log.FieldChatID, chatID).Logger()

	conn, err := m.dial(ctx, token, chatID)
	if err != nil {
		l.Warn().Err(err).Msg("chat connection failed")
		m.failAttempt(attempt)
		return err
	}

	m.mu.Lock()
	if m.attempt != attempt {
		m.mu.Unlock()
		conn.Close()
		return ErrConnectSuperseded
	}
	c := newConnection(conn, chatID, m.cfg)
	m.conn = c
	m.setStateLocked(domain.StateConnected)
	m.mu.Unlock()

	c.start(m)
	l.Info().Msg("chat connection established")
	m.notifyState(domain.StateConnected)
	return nil
}

func (m *Manager) failAttempt(attempt uint64) {
	m.mu.Lock()
	if m.attempt != attempt {
		m.mu.Unlock()
		return
	}
	changed := m.setStateLocked(domain.StateDisconnected)
	m.mu.Unlock()
	if changed {
		m.notifyState(domain.StateDisconnected)
	}
}

func (m *Manager) dial(ctx context.Context, token, chatID string) (*websocket.Conn, error) {
	hctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := m.dialer.DialContext(hctx, m.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}

	// Unblock the handshake reads if ctx is cancelled before the deadline.
	stop := context.AfterFunc(hctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	deadline, _ := hctx.Deadline()
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	if err := handshake(conn, token, chatID); err != nil {
		conn.Close()
		var te *transportError
		if errors.As(err, &te) && hctx.Err() != nil {
			return nil, fmt.Errorf("handshake: %w", hctx.Err())
		}
		return nil, err
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	return conn, nil
}

func handshake(conn *websocket.Conn, token, chatID string) error {
	if err := conn.WriteJSON(domain.AuthMessage{Type: domain.MsgTypeAuth, Token: token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	raw, err := awaitFrame(conn, domain.MsgTypeAuthResult)
	if err != nil {
		return rejected(ErrAuthRejected, err)
	}
	var result domain.AuthResultMessage
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode auth_result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrAuthRejected, result.Message)
	}

	if err := conn.WriteJSON(domain.JoinChatMessage{Type: domain.MsgTypeJoinChat, ChatID: chatID}); err != nil {
		return fmt.Errorf("send join_chat: %w", err)
	}
	if _, err := awaitFrame(conn, domain.MsgTypeChatJoined); err != nil {
		return rejected(ErrJoinRejected, err)
	}
	return nil
}

// rejected maps an error frame to sentinel and leaves transport errors
// untouched.
func rejected(sentinel, err error) error {
	var fe *frameError
	if errors.As(err, &fe) {
		return fmt.Errorf("%w: %v", sentinel, fe)
	}
	return fmt.Errorf("handshake: %w", err)
}

// frameError is an error frame received while waiting for a reply.
type frameError struct {
	Code    string
	Message string
}

func (e *frameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// awaitFrame reads until a frame of type want arrives. An error frame ends
// the wait; transport errors are returned as-is so callers can tell them
// apart from a rejection.
func awaitFrame(conn *websocket.Conn, want string) ([]byte, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, &transportError{err: err}
		}
		var base domain.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		switch base.Type {
		case want:
			return data, nil
		case domain.MsgTypeError:
			var e domain.ErrorMessage
			_ = json.Unmarshal(data, &e)
			return nil, &frameError{Code: e.Code, Message: e.Message}
		}
	}
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// Disconnect leaves the chat and closes the connection, waiting for its
// pumps to exit. Safe to call at any time, any number of times.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.attempt++
	c := m.conn
	m.conn = nil
	changed := m.setStateLocked(domain.StateDisconnected)
	m.mu.Unlock()

	if c != nil {
		c.close(true)
		c.wait()
		l := log.L()
		l.Info().Str(log.FieldChatID, c.chatID).Msg("chat connection closed")
	}
	if changed {
		m.notifyState(domain.StateDisconnected)
	}
}

// Reconnect runs Disconnect and Connect with the credentials of the last
// Connect call.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	token, chatID := m.token, m.chatID
	m.mu.Unlock()

	if chatID == "" {
		return ErrNeverConnected
	}
	return m.Connect(ctx, token, chatID)
}

// SendTyping queues a typing_start or typing_stop frame.
func (m *Manager) SendTyping(chatID string, typing bool) error {
	t := domain.MsgTypeTypingStop
	if typing {
		t = domain.MsgTypeTypingStart
	}
	return m.enqueue(domain.TypingMessage{Type: t, ChatID: chatID})
}

// SendReadReceipt queues a read_receipt frame.
func (m *Manager) SendReadReceipt(chatID string, upTo domain.MessageID) error {
	return m.enqueue(domain.ReadReceiptMessage{Type: domain.MsgTypeReadReceipt, ChatID: chatID, MessageID: upTo})
}

func (m *Manager) enqueue(frame interface{}) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	return c.enqueue(data)
}

// connectionLost is called by the read pump when the socket dies on its
// own. A connection that was already replaced or closed is ignored.
func (m *Manager) connectionLost(c *connection, err error) {
	m.mu.Lock()
	if m.conn != c {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	changed := m.setStateLocked(domain.StateDisconnected)
	m.mu.Unlock()

	l := log.L()
	l.Warn().Err(err).Str(log.FieldChatID, c.chatID).Msg("chat connection lost")
	if changed {
		m.notifyState(domain.StateDisconnected)
	}
}

func (m *Manager) dispatch(c *connection, data []byte) {
	ev, ok := decodeEvent(data)
	if !ok {
		return
	}

	// Drop frames still buffered on a connection that has been replaced.
	m.mu.Lock()
	current := m.conn == c
	m.mu.Unlock()
	if !current {
		return
	}
	m.onEvent(ev)
}
