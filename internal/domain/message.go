package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidMessage = errors.New("invalid message")

// MessageID is the backend-assigned message identifier. Identifiers grow
// with creation order, which makes them a valid ordering tie-break.
type MessageID int64

// UnmarshalJSON accepts both a JSON number and a numeric string.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("message id %q: %w", data, err)
	}
	*id = MessageID(n)
	return nil
}

func (id MessageID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Message is one chat message.
type Message struct {
	ID         MessageID `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	SenderRole Role      `json:"sender_role"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
}

// Validate rejects payloads the store must never hold.
func (m Message) Validate() error {
	switch {
	case m.ID <= 0:
		return fmt.Errorf("%w: id must be positive", ErrInvalidMessage)
	case m.ChatID == "":
		return fmt.Errorf("%w: chat_id is required", ErrInvalidMessage)
	case m.SenderID == "":
		return fmt.Errorf("%w: sender_id is required", ErrInvalidMessage)
	case !m.SenderRole.Valid():
		return fmt.Errorf("%w: unknown sender_role %q", ErrInvalidMessage, m.SenderRole)
	case strings.TrimSpace(m.Body) == "":
		return fmt.Errorf("%w: body is empty", ErrInvalidMessage)
	case m.CreatedAt.IsZero():
		return fmt.Errorf("%w: created_at is required", ErrInvalidMessage)
	}
	return nil
}

// Before reports whether m sorts before o: created-at ascending,
// identifier ascending on ties.
func (m Message) Before(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID < o.ID
}
