// Package coordinator turns local focus, visibility and input signals into
// outbound read and typing notifications, and applies the peer's signals
// to local state.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/obraviva/site-chat/internal/audit"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/internal/store"
	"github.com/obraviva/site-chat/internal/unread"
	"github.com/obraviva/site-chat/pkg/log"
)

// ReadMarker is the authoritative mark-as-read call.
type ReadMarker interface {
	MarkRead(ctx context.Context, chatID string, upTo domain.MessageID) (int, error)
}

// Signaler sends typing and read-receipt frames over the live connection.
type Signaler interface {
	SendTyping(chatID string, typing bool) error
	SendReadReceipt(chatID string, upTo domain.MessageID) error
}

type Config struct {
	ChatID              string
	SelfID              string
	TypingWindow        time.Duration
	RemoteTypingTimeout time.Duration
}

type Coordinator struct {
	cfg     Config
	store   *store.Store
	marker  ReadMarker
	signals Signaler
	counter unread.Counter

	viewing Viewing
	typing  *TypingEmitter
	remote  *RemoteTyping

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	readErr  error
	closed   bool
	onChange func()

	// unconfirmed is the highest id marked read locally whose
	// mark-as-read call has not succeeded yet.
	unconfirmed domain.MessageID
}

type Option func(*Coordinator)

// WithChangeHandler is called after state changes that happen outside a
// caller's own call, such as a peer's typing timing out or a mark-as-read
// call completing.
func WithChangeHandler(fn func()) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// New binds a coordinator to one chat. ctx scopes every asynchronous call
// it starts; Close cancels it.
func New(ctx context.Context, cfg Config, st *store.Store, marker ReadMarker, signals Signaler, counter unread.Counter, opts ...Option) *Coordinator {
	if cfg.TypingWindow <= 0 {
		cfg.TypingWindow = 2 * time.Second
	}
	if cfg.RemoteTypingTimeout <= 0 {
		cfg.RemoteTypingTimeout = 5 * time.Second
	}

	cctx, cancel := context.WithCancel(log.WithChat(ctx, cfg.ChatID, cfg.SelfID))
	c := &Coordinator{
		cfg:      cfg,
		store:    st,
		marker:   marker,
		signals:  signals,
		counter:  counter,
		ctx:      cctx,
		cancel:   cancel,
		onChange: func() {},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.typing = NewTypingEmitter(cfg.TypingWindow, c.emitTyping)
	c.remote = NewRemoteTyping(cfg.RemoteTypingTimeout, c.changed)
	return c
}

func (c *Coordinator) changed() {
	if c.ctx.Err() != nil {
		return
	}
	c.onChange()
}

func (c *Coordinator) emitTyping(typing bool) {
	if err := c.signals.SendTyping(c.cfg.ChatID, typing); err != nil {
		l := log.Ctx(c.ctx)
		l.Debug().Err(err).Bool("typing", typing).Msg("typing signal not sent")
	}
}

// Activity feeds a host lifecycle or input signal. Becoming active marks
// every unread counterpart message read with one call.
func (c *Coordinator) Activity(a Activity) {
	if c.ctx.Err() != nil {
		return
	}
	active, changed := c.viewing.Apply(a)
	if !changed {
		return
	}

	l := log.Ctx(c.ctx)
	l.Debug().Bool("active", active).Stringer("activity", a).Msg("viewing state changed")
	if active {
		c.markUnread()
	}
}

func (c *Coordinator) Active() bool {
	return c.viewing.Active()
}

// Resync reruns the activation pass when the view is already active, e.g.
// after history finished loading.
func (c *Coordinator) Resync() {
	if c.ctx.Err() != nil || !c.viewing.Active() {
		return
	}
	c.markUnread()
}

// OnMessage reacts to a pushed message after the store took it. isNew is
// false for a duplicate delivery.
func (c *Coordinator) OnMessage(m domain.Message, isNew bool) {
	if c.ctx.Err() != nil || m.SenderID == c.cfg.SelfID {
		return
	}
	c.remote.Stop(m.SenderID)
	if !isNew || m.Read {
		return
	}

	if !c.viewing.Active() {
		if _, err := c.counter.Increment(c.ctx, c.cfg.ChatID); err != nil {
			l := log.Ctx(c.ctx)
			l.Warn().Err(err).Msg("failed to increment unread counter")
		}
		return
	}

	c.store.MarkRead(m.ID)
	c.markRemote(m.ID)
}

// markUnread runs the activation pass over every unread message not
// authored by the current user, plus anything a failed call left
// unconfirmed.
func (c *Coordinator) markUnread() {
	pending := c.store.Unread(c.cfg.SelfID)
	if err := c.counter.Reset(c.ctx, c.cfg.ChatID); err != nil {
		l := log.Ctx(c.ctx)
		l.Warn().Err(err).Msg("failed to reset unread counter")
	}

	var upTo domain.MessageID
	for _, m := range pending {
		c.store.MarkRead(m.ID)
		if m.ID > upTo {
			upTo = m.ID
		}
	}
	if len(pending) > 0 {
		c.onChange()
	}

	c.mu.Lock()
	if c.unconfirmed > upTo {
		upTo = c.unconfirmed
	}
	c.mu.Unlock()
	if upTo == 0 {
		return
	}
	c.markRemote(upTo)
}

// markRemote issues the mark-as-read call and, on success, the read
// receipt. A failure keeps upTo unconfirmed for the next activation pass.
// A result arriving after Close is dropped.
func (c *Coordinator) markRemote(upTo domain.MessageID) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		_, err := c.marker.MarkRead(c.ctx, c.cfg.ChatID, upTo)
		if c.ctx.Err() != nil {
			return
		}

		l := log.Ctx(c.ctx)
		c.mu.Lock()
		c.readErr = err
		switch {
		case err != nil && upTo > c.unconfirmed:
			c.unconfirmed = upTo
		case err == nil && upTo >= c.unconfirmed:
			c.unconfirmed = 0
		}
		c.mu.Unlock()

		if err != nil {
			l.Warn().Err(err).Stringer(log.FieldMessageID, upTo).Msg("mark-as-read failed")
			c.onChange()
			return
		}

		audit.LogWithDetail(c.ctx, audit.ActionMarkRead, c.cfg.SelfID, c.cfg.ChatID, upTo.String(), "messages marked read")
		if err := c.signals.SendReadReceipt(c.cfg.ChatID, upTo); err != nil {
			l.Debug().Err(err).Msg("read receipt not sent")
		}
		c.onChange()
	}()
}

// OnTyping applies a peer's typing signal.
func (c *Coordinator) OnTyping(userID string, typing bool) {
	if c.ctx.Err() != nil || userID == c.cfg.SelfID {
		return
	}
	if typing {
		c.remote.Start(userID)
	} else {
		c.remote.Stop(userID)
	}
}

// OnReadReceipt applies the peer's confirmation that it read the current
// user's messages up to upTo.
func (c *Coordinator) OnReadReceipt(userID string, upTo domain.MessageID) {
	if c.ctx.Err() != nil || userID == c.cfg.SelfID {
		return
	}
	if c.store.MarkReadUpTo(c.cfg.SelfID, upTo) > 0 {
		c.onChange()
	}
}

// Input reports compose text changes for typing emission.
func (c *Coordinator) Input(text string) {
	if c.ctx.Err() != nil {
		return
	}
	c.typing.Input(text)
}

// Sent ends local typing after a successful send.
func (c *Coordinator) Sent() {
	c.typing.Stop()
}

func (c *Coordinator) RemoteTyping() []string {
	return c.remote.Typing()
}

func (c *Coordinator) LocalTyping() bool {
	return c.typing.Typing()
}

// ReadError is the result of the last completed mark-as-read call.
func (c *Coordinator) ReadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Close cancels in-flight calls, stops timers and waits for pending
// continuations to finish as no-ops.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.typing.Close()
	c.remote.Close()
	c.wg.Wait()
}
