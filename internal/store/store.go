// Package store holds the ordered, deduplicated message list of the chat
// view that is currently mounted.
package store

import (
	"sort"
	"sync"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/log"
)

// Store is keyed by message identifier and kept sorted by
// (created_at, id). It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	chatID   string
	messages []domain.Message
	index    map[domain.MessageID]int
}

// New creates an empty store bound to chatID. Messages for any other chat
// are dropped.
func New(chatID string) *Store {
	return &Store{
		chatID: chatID,
		index:  make(map[domain.MessageID]int),
	}
}

// ChatID returns the chat this store belongs to.
func (s *Store) ChatID() string {
	return s.chatID
}

// LoadHistory replaces the baseline with a history snapshot. Messages
// already held (pushed while the fetch was in flight) are merged into the
// snapshot with the same rule as Ingest.
func (s *Store) LoadHistory(history []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.messages
	s.messages = make([]domain.Message, 0, len(history)+len(held))
	s.index = make(map[domain.MessageID]int, len(history)+len(held))

	for _, m := range history {
		if !s.accepts(m) {
			continue
		}
		s.upsert(m)
	}
	for _, m := range held {
		s.upsert(m)
	}
	s.sortLocked()
}

// Ingest inserts or merges one message. It reports true when the message
// was not held before.
func (s *Store) Ingest(m domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accepts(m) {
		return false
	}

	if i, ok := s.index[m.ID]; ok {
		prev := s.messages[i]
		s.messages[i] = merge(prev, m)
		if !prev.CreatedAt.Equal(m.CreatedAt) {
			s.sortLocked()
		}
		return false
	}

	pos := sort.Search(len(s.messages), func(i int) bool {
		return m.Before(s.messages[i])
	})
	s.messages = append(s.messages, domain.Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = m
	s.reindexFrom(pos)
	return true
}

// MarkRead flips one message to read. Unknown identifiers are ignored.
func (s *Store) MarkRead(id domain.MessageID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || s.messages[i].Read {
		return false
	}
	s.messages[i].Read = true
	return true
}

// MarkReadUpTo flips every message from senderID with an identifier not
// above upTo. It returns how many changed.
func (s *Store) MarkReadUpTo(senderID string, upTo domain.MessageID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.messages {
		m := &s.messages[i]
		if m.SenderID == senderID && m.ID <= upTo && !m.Read {
			m.Read = true
			n++
		}
	}
	return n
}

// MarkAllReadFrom flips every message authored by otherUserID.
func (s *Store) MarkAllReadFrom(otherUserID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.messages {
		m := &s.messages[i]
		if m.SenderID == otherUserID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n
}

// Messages returns a copy of the ordered list.
func (s *Store) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Get looks a message up by identifier.
func (s *Store) Get(id domain.MessageID) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Message{}, false
	}
	return s.messages[i], true
}

// Unread returns the unread messages not authored by selfID, in order.
func (s *Store) Unread(selfID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Message
	for _, m := range s.messages {
		if !m.Read && m.SenderID != selfID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) accepts(m domain.Message) bool {
	if m.ChatID != s.chatID {
		l := log.L()
		l.Debug().
			Str(log.FieldChatID, s.chatID).
			Str("event_chat_id", m.ChatID).
			Stringer(log.FieldMessageID, m.ID).
			Msg("dropping message for another chat")
		return false
	}
	return true
}

// upsert appends or merges without keeping order; callers sort afterwards.
func (s *Store) upsert(m domain.Message) {
	if i, ok := s.index[m.ID]; ok {
		s.messages[i] = merge(s.messages[i], m)
		return
	}
	s.index[m.ID] = len(s.messages)
	s.messages = append(s.messages, m)
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].Before(s.messages[j])
	})
	s.reindexFrom(0)
}

func (s *Store) reindexFrom(pos int) {
	for i := pos; i < len(s.messages); i++ {
		s.index[s.messages[i].ID] = i
	}
}

// merge takes every field from incoming except read, which only moves
// from false to true.
func merge(existing, incoming domain.Message) domain.Message {
	out := incoming
	out.Read = existing.Read || incoming.Read
	return out
}
