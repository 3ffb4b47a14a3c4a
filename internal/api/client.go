// Package api is the request/response side of the chat backend: chat list,
// history, mark-as-read and send.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/internal/identity"
	"github.com/obraviva/site-chat/pkg/log"
	"github.com/obraviva/site-chat/pkg/response"
)

const (
	DefaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

type Client struct {
	baseURL string
	ids     identity.Provider
	http    *http.Client
	timeout time.Duration
	history singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every call. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(baseURL string, ids identity.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		ids:     ids,
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListChats returns the current user's chats with their unread counts.
func (c *Client) ListChats(ctx context.Context) ([]domain.ChatSummary, error) {
	var out struct {
		Chats []domain.ChatSummary `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

type History struct {
	Chat     domain.ChatSession
	Messages []domain.Message
}

// History fetches the chat and its ordered messages. Concurrent calls for
// the same chat share one request. Invalid messages are logged and left
// out.
func (c *Client) History(ctx context.Context, chatID string) (History, error) {
	ch := c.history.DoChan(chatID, func() (interface{}, error) {
		// Detached so one caller giving up does not fail the others.
		fctx := log.WithLogger(context.WithoutCancel(ctx), log.Ctx(ctx))
		return c.fetchHistory(fctx, chatID)
	})

	select {
	case <-ctx.Done():
		return History{}, transportError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return History{}, res.Err
		}
		h := res.Val.(History)
		msgs := make([]domain.Message, len(h.Messages))
		copy(msgs, h.Messages)
		return History{Chat: h.Chat, Messages: msgs}, nil
	}
}

func (c *Client) fetchHistory(ctx context.Context, chatID string) (History, error) {
	var out struct {
		Chat     domain.ChatSession `json:"chat"`
		Messages []json.RawMessage  `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID)+"/messages", nil, &out); err != nil {
		return History{}, err
	}
	if out.Chat.ID != chatID {
		return History{}, fmt.Errorf("%w: history for %q returned chat %q", ErrMalformedResponse, chatID, out.Chat.ID)
	}

	l := log.Ctx(ctx)
	msgs := make([]domain.Message, 0, len(out.Messages))
	for _, raw := range out.Messages {
		var m domain.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			l.Warn().Err(err).Str(log.FieldChatID, chatID).Msg("skipping undecodable history message")
			continue
		}
		if err := m.Validate(); err != nil {
			l.Warn().Err(err).Str(log.FieldChatID, chatID).Stringer(log.FieldMessageID, m.ID).Msg("skipping invalid history message")
			continue
		}
		if m.ChatID != chatID {
			l.Warn().Str(log.FieldChatID, chatID).Stringer(log.FieldMessageID, m.ID).Msg("skipping history message of another chat")
			continue
		}
		msgs = append(msgs, m)
	}
	return History{Chat: out.Chat, Messages: msgs}, nil
}

// MarkRead marks the counterpart's messages read, up to upTo when it is
// non-zero. Repeating the call is harmless.
func (c *Client) MarkRead(ctx context.Context, chatID string, upTo domain.MessageID) (int, error) {
	var body interface{}
	if upTo > 0 {
		body = map[string]domain.MessageID{"message_id": upTo}
	}
	var out struct {
		Updated int `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/read", body, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// Send persists a new message. The returned acknowledgment is advisory;
// the zero Message is returned when it does not validate.
func (c *Client) Send(ctx context.Context, chatID, body string) (domain.Message, error) {
	var out struct {
		Message json.RawMessage `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages", map[string]string{"body": body}, &out); err != nil {
		return domain.Message{}, err
	}

	var m domain.Message
	if err := json.Unmarshal(out.Message, &m); err != nil || m.Validate() != nil {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldChatID, chatID).Msg("send acknowledged without a usable message")
		return domain.Message{}, nil
	}
	return m, nil
}

// DevToken asks a development backend for a session token. It needs no
// identity.
func (c *Client) DevToken(ctx context.Context, userID string, role domain.Role) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	req := map[string]string{"user_id": userID, "role": string(role)}
	if err := c.request(ctx, http.MethodPost, "/dev/token", "", req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrMalformedResponse)
	}
	return out.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	id, err := c.ids.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return c.request(ctx, method, path, id.Token, body, out)
}

func (c *Client) request(ctx context.Context, method, path, token string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(err)
	}

	decodeErr := response.Decode(raw, out)
	var info *response.ErrorInfo
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errors.As(decodeErr, &info)
		return statusError(resp.StatusCode, info)
	}
	if decodeErr != nil {
		if errors.As(decodeErr, &info) {
			return &StatusError{Status: resp.StatusCode, Code: info.Code, Message: info.Message}
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	return nil
}
