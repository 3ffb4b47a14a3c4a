// Package chatview binds one mounted chat to the surrounding UI: the
// ordered message list, connection status, typing flags, a send action and
// the lifecycle hooks the read gate depends on.
package chatview

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obraviva/site-chat/internal/api"
	"github.com/obraviva/site-chat/internal/audit"
	"github.com/obraviva/site-chat/internal/coordinator"
	"github.com/obraviva/site-chat/internal/delivery"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/internal/identity"
	"github.com/obraviva/site-chat/internal/store"
	"github.com/obraviva/site-chat/internal/unread"
	"github.com/obraviva/site-chat/internal/wsconn"
	"github.com/obraviva/site-chat/pkg/log"
)

var ErrNotMounted = errors.New("no chat mounted")

// Backend is the request/response side the view needs.
type Backend interface {
	History(ctx context.Context, chatID string) (api.History, error)
	MarkRead(ctx context.Context, chatID string, upTo domain.MessageID) (int, error)
	Send(ctx context.Context, chatID, body string) (domain.Message, error)
}

type Config struct {
	WebSocket           wsconn.Config
	TypingWindow        time.Duration
	RemoteTypingTimeout time.Duration
	// IngestSendAck merges the send acknowledgment into the store instead
	// of waiting for the pushed copy.
	IngestSendAck bool
}

// View owns the connection manager and the per-chat state of at most one
// mounted chat. Mount replaces the previous chat; Close releases
// everything.
type View struct {
	cfg     Config
	backend Backend
	ids     identity.Provider
	counter unread.Counter
	conn    *wsconn.Manager
	notify  func()

	// viewing mirrors host focus across mounts so a chat mounted while the
	// host is focused starts active.
	viewing coordinator.Viewing

	mu      sync.Mutex
	session *session
	state   domain.ConnectionState
}

type Option func(*View)

// WithNotify is called after every observable change. It may run on any
// goroutine and must not block.
func WithNotify(fn func()) Option {
	return func(v *View) { v.notify = fn }
}

func New(cfg Config, backend Backend, ids identity.Provider, counter unread.Counter, opts ...Option) *View {
	v := &View{
		cfg:     cfg,
		backend: backend,
		ids:     ids,
		counter: counter,
		notify:  func() {},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.conn = wsconn.New(cfg.WebSocket,
		wsconn.WithEventHandler(v.onEvent),
		wsconn.WithStateHandler(v.onState),
	)
	return v
}

// Mount opens chatID: the prior chat is unmounted, then history is fetched
// while the connection is established. A history failure is returned and
// kept in the snapshot. A connection failure only shows in the connection
// state and ConnError.
func (v *View) Mount(ctx context.Context, chatID string) error {
	v.Unmount()

	id, err := v.ids.Identity()
	if err != nil {
		return err
	}

	s := v.newSession(ctx, chatID, id)
	v.mu.Lock()
	v.session = s
	v.mu.Unlock()
	if v.viewing.Active() {
		s.coord.Activity(coordinator.ActivityFocusGained)
	}
	v.changed()

	l := log.Ctx(s.ctx)
	l.Info().Msg("mounting chat")

	var g errgroup.Group
	g.Go(func() error {
		return v.loadHistory(s)
	})
	g.Go(func() error {
		v.connect(s.ctx, s, id.Token)
		return nil
	})
	err = g.Wait()

	if s.ctx.Err() != nil {
		return context.Canceled
	}
	return err
}

func (v *View) newSession(ctx context.Context, chatID string, id domain.Identity) *session {
	sctx, cancel := context.WithCancel(log.WithChat(ctx, chatID, id.UserID))
	st := store.New(chatID)

	s := &session{
		chatID:  chatID,
		self:    id,
		store:   st,
		ctx:     sctx,
		cancel:  cancel,
		loading: true,
	}
	s.coord = coordinator.New(sctx, coordinator.Config{
		ChatID:              chatID,
		SelfID:              id.UserID,
		TypingWindow:        v.cfg.TypingWindow,
		RemoteTypingTimeout: v.cfg.RemoteTypingTimeout,
	}, st, v.backend, v.conn, v.counter, coordinator.WithChangeHandler(v.changed))

	opts := []delivery.Option{delivery.WithSelfID(id.UserID)}
	if v.cfg.IngestSendAck {
		opts = append(opts, delivery.WithAckIngest(st))
	}
	s.sender = delivery.New(v.backend, opts...)
	return s
}

func (v *View) loadHistory(s *session) error {
	h, err := v.backend.History(s.ctx, s.chatID)
	if s.ctx.Err() != nil {
		return nil
	}

	s.mu.Lock()
	s.loading = false
	s.loadErr = err
	if err == nil {
		s.chat = h.Chat
	}
	s.mu.Unlock()

	if err != nil {
		l := log.Ctx(s.ctx)
		l.Warn().Err(err).Msg("failed to load chat history")
		v.changed()
		return err
	}

	s.store.LoadHistory(h.Messages)
	s.coord.Resync()
	v.changed()
	return nil
}

func (v *View) connect(ctx context.Context, s *session, token string) {
	err := v.conn.Connect(ctx, token, s.chatID)
	if s.ctx.Err() != nil || errors.Is(err, wsconn.ErrConnectSuperseded) {
		return
	}

	s.mu.Lock()
	s.connErr = err
	s.mu.Unlock()

	switch {
	case err == nil:
		audit.Log(s.ctx, audit.ActionConnect, s.self.UserID, s.chatID, "chat connected")
	case errors.Is(err, wsconn.ErrAuthRejected):
		audit.LogWithDetail(s.ctx, audit.ActionAuthFailed, s.self.UserID, s.chatID, err.Error(), "chat authentication rejected")
	default:
		l := log.Ctx(s.ctx)
		l.Warn().Err(err).Msg("chat connection failed")
	}
	v.changed()
}

// Unmount tears the mounted chat down. Calls still in flight for it
// resolve as no-ops. Safe to call when nothing is mounted.
func (v *View) Unmount() {
	v.mu.Lock()
	s := v.session
	v.session = nil
	v.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	v.conn.Disconnect()
	s.coord.Close()
	audit.Log(context.WithoutCancel(s.ctx), audit.ActionDisconnect, s.self.UserID, s.chatID, "chat unmounted")
	v.changed()
}

// Close unmounts the current chat.
func (v *View) Close() {
	v.Unmount()
}

// Reconnect drops and re-establishes the connection of the mounted chat
// with the provider's current credential.
func (v *View) Reconnect(ctx context.Context) error {
	s := v.current()
	if s == nil {
		return ErrNotMounted
	}
	id, err := v.ids.Identity()
	if err != nil {
		return err
	}

	ctx, stop := s.bind(ctx)
	defer stop()

	l := log.Ctx(s.ctx)
	l.Info().Msg("manual reconnect")
	v.connect(ctx, s, id.Token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.connErr
}

// Activity forwards a host lifecycle or input signal to the read gate.
func (v *View) Activity(a coordinator.Activity) {
	v.viewing.Apply(a)
	if s := v.current(); s != nil {
		s.coord.Activity(a)
	}
	v.changed()
}

// Input records the compose text and drives the typing signal.
func (v *View) Input(text string) {
	s := v.current()
	if s == nil {
		return
	}
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
	s.coord.Input(text)
}

// Send sends text to the mounted chat. On success the draft is cleared;
// on failure it is kept and the error recorded as SendError.
// ErrSendInFlight leaves all state untouched.
func (v *View) Send(ctx context.Context, text string) error {
	s := v.current()
	if s == nil {
		return ErrNotMounted
	}

	if s.sender.Sending() {
		return delivery.ErrSendInFlight
	}

	ctx, stop := s.bind(ctx)
	defer stop()

	s.mu.Lock()
	prev := s.draft
	s.draft = text
	s.mu.Unlock()
	v.changed()

	err := s.sender.Send(ctx, s.chatID, text)
	if s.ctx.Err() != nil {
		return context.Canceled
	}
	if errors.Is(err, delivery.ErrSendInFlight) {
		// lost the race with a send that started after the check above
		s.mu.Lock()
		if s.draft == text {
			s.draft = prev
		}
		s.mu.Unlock()
		v.changed()
		return err
	}

	s.mu.Lock()
	s.sendErr = err
	if err == nil {
		s.draft = ""
	}
	s.mu.Unlock()

	if err == nil {
		s.coord.Sent()
	}
	v.changed()
	return err
}

// Snapshot returns a consistent copy of everything the host renders.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	s := v.session
	state := v.state
	v.mu.Unlock()

	snap := Snapshot{State: state, Active: v.viewing.Active()}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if counts, err := v.counter.All(ctx); err == nil {
		snap.Unread = counts
	} else {
		l := log.L()
		l.Debug().Err(err).Msg("unread counters unavailable")
	}

	if s == nil {
		return snap
	}

	snap.ChatID = s.chatID
	snap.SelfID = s.self.UserID
	snap.Messages = s.store.Messages()
	snap.Typing = s.coord.RemoteTyping()
	snap.LocalTyping = s.coord.LocalTyping()
	snap.ReadError = s.coord.ReadError()
	snap.Sending = s.sender.Sending()

	s.mu.Lock()
	snap.Chat = s.chat
	snap.Loading = s.loading
	snap.Draft = s.draft
	snap.LoadError = s.loadErr
	snap.SendError = s.sendErr
	snap.ConnError = s.connErr
	s.mu.Unlock()
	return snap
}

func (v *View) current() *session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

func (v *View) changed() {
	v.notify()
}

func (v *View) onState(state domain.ConnectionState) {
	v.mu.Lock()
	v.state = state
	v.mu.Unlock()
	v.changed()
}

// onEvent routes one pushed event. Events for another chat only count
// towards that chat's unread counter.
func (v *View) onEvent(ev domain.Event) {
	s := v.current()
	if s == nil {
		return
	}

	if ev.ChatID != s.chatID {
		l := log.Ctx(s.ctx)
		l.Debug().Str("event_chat_id", ev.ChatID).Str(log.FieldEventType, string(ev.Type)).Msg("event for another chat")
		if ev.Type == domain.EventNewMessage && ev.Message != nil && ev.Message.SenderID != s.self.UserID {
			if _, err := v.counter.Increment(s.ctx, ev.ChatID); err != nil {
				l.Warn().Err(err).Msg("failed to increment unread counter")
			}
			v.changed()
		}
		return
	}

	switch ev.Type {
	case domain.EventNewMessage:
		if ev.Message == nil {
			return
		}
		isNew := s.store.Ingest(*ev.Message)
		s.coord.OnMessage(*ev.Message, isNew)
	case domain.EventTypingStart:
		s.coord.OnTyping(ev.UserID, true)
	case domain.EventTypingStop:
		s.coord.OnTyping(ev.UserID, false)
	case domain.EventReadReceipt:
		s.coord.OnReadReceipt(ev.UserID, ev.MessageID)
	}
	v.changed()
}
