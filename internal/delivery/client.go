// Package delivery sends composed messages through the request/response
// API. The push channel is never used to send.
package delivery

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/obraviva/site-chat/internal/audit"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/internal/store"
	"github.com/obraviva/site-chat/pkg/log"
)

var (
	ErrEmptyBody    = errors.New("message is empty")
	ErrSendInFlight = errors.New("a message is already being sent")
)

// Sender is the send endpoint.
type Sender interface {
	Send(ctx context.Context, chatID, body string) (domain.Message, error)
}

// Client allows one send in flight at a time. A second Send while the
// first is pending is rejected, not queued.
type Client struct {
	sender Sender
	ack    *store.Store
	selfID string

	mu      sync.Mutex
	sending bool
}

type Option func(*Client)

// WithAckIngest merges the send acknowledgment into st. The pushed copy of
// the same message collapses onto it.
func WithAckIngest(st *store.Store) Option {
	return func(c *Client) { c.ack = st }
}

func WithSelfID(userID string) Option {
	return func(c *Client) { c.selfID = userID }
}

func New(sender Sender, opts ...Option) *Client {
	c := &Client{sender: sender}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

func (c *Client) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending {
		return false
	}
	c.sending = true
	return true
}

func (c *Client) release() {
	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()
}

// Send validates and sends body. It returns ErrEmptyBody or
// ErrSendInFlight without contacting the backend.
func (c *Client) Send(ctx context.Context, chatID, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyBody
	}
	if !c.acquire() {
		return ErrSendInFlight
	}
	defer c.release()

	l := log.Ctx(ctx)
	ack, err := c.sender.Send(ctx, chatID, body)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldChatID, chatID).Msg("send failed")
		return err
	}

	if ack.ID != 0 {
		audit.LogWithDetail(ctx, audit.ActionSendMessage, c.selfID, chatID, ack.ID.String(), "message sent")
	} else {
		audit.Log(ctx, audit.ActionSendMessage, c.selfID, chatID, "message sent")
	}
	if c.ack != nil && ack.ID != 0 {
		c.ack.Ingest(ack)
	}
	return nil
}
