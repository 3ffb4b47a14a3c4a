package backend

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/obraviva/site-chat/internal/domain"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrNotMember    = errors.New("user is not a participant of this chat")
	ErrEmptyBody    = errors.New("message body is empty")
)

// Repository persists chats and messages for the backend.
type Repository interface {
	PutChat(ctx context.Context, chat domain.ChatSession) error
	PutMessage(ctx context.Context, m domain.Message) error
	Chat(ctx context.Context, chatID, userID string) (domain.ChatSession, error)
	ListChats(ctx context.Context, userID string) ([]domain.ChatSummary, error)
	History(ctx context.Context, chatID, userID string) (domain.ChatSession, []domain.Message, error)
	Append(ctx context.Context, chatID, senderID, body string) (domain.Message, error)
	MarkRead(ctx context.Context, chatID, readerID string, upTo domain.MessageID) (int, domain.MessageID, error)
}

// Store keeps chats and messages in memory. Message identifiers are
// assigned from one counter so they grow with creation order.
type Store struct {
	mu       sync.RWMutex
	chats    map[string]domain.ChatSession
	messages map[string][]domain.Message
	lastID   domain.MessageID
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		chats:    make(map[string]domain.ChatSession),
		messages: make(map[string][]domain.Message),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PutChat registers or replaces a chat.
func (s *Store) PutChat(_ context.Context, chat domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.now()
	}
	s.chats[chat.ID] = chat
	return nil
}

// PutMessage stores a message as given, keeping the id counter ahead of it.
func (s *Store) PutMessage(_ context.Context, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
	sortMessages(s.messages[m.ChatID])
	if m.ID > s.lastID {
		s.lastID = m.ID
	}
	return nil
}

// Chat returns a chat the user participates in.
func (s *Store) Chat(_ context.Context, chatID, userID string) (domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatLocked(chatID, userID)
}

func (s *Store) chatLocked(chatID, userID string) (domain.ChatSession, error) {
	chat, ok := s.chats[chatID]
	if !ok {
		return domain.ChatSession{}, ErrChatNotFound
	}
	if !chat.HasParticipant(userID) {
		return domain.ChatSession{}, ErrNotMember
	}
	return chat, nil
}

// ListChats returns the user's chats with unread counts, most recent
// activity first.
func (s *Store) ListChats(_ context.Context, userID string) ([]domain.ChatSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ChatSummary
	for _, chat := range s.chats {
		if !chat.HasParticipant(userID) {
			continue
		}
		summary := domain.ChatSummary{Chat: chat}
		msgs := s.messages[chat.ID]
		for _, m := range msgs {
			if m.SenderID != userID && !m.Read {
				summary.UnreadCount++
			}
		}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			summary.LastMessage = &last
		}
		out = append(out, summary)
	}

	sortSummaries(out)
	return out, nil
}

func sortSummaries(out []domain.ChatSummary) {
	sort.Slice(out, func(i, j int) bool {
		return lastActivity(out[i]).After(lastActivity(out[j]))
	})
}

func lastActivity(s domain.ChatSummary) time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.Chat.CreatedAt
}

// History returns the chat and its ordered messages.
func (s *Store) History(_ context.Context, chatID, userID string) (domain.ChatSession, []domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, err := s.chatLocked(chatID, userID)
	if err != nil {
		return domain.ChatSession{}, nil, err
	}
	msgs := make([]domain.Message, len(s.messages[chatID]))
	copy(msgs, s.messages[chatID])
	return chat, msgs, nil
}

// Append persists a new message from senderID.
func (s *Store) Append(_ context.Context, chatID, senderID, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, ErrEmptyBody
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chat, err := s.chatLocked(chatID, senderID)
	if err != nil {
		return domain.Message{}, err
	}

	s.lastID++
	m := domain.Message{
		ID:         s.lastID,
		ChatID:     chatID,
		SenderID:   senderID,
		SenderRole: senderRole(chat, senderID),
		Body:       body,
		CreatedAt:  s.now(),
	}
	s.messages[chatID] = append(s.messages[chatID], m)
	return m, nil
}

// MarkRead marks the counterpart's messages read for readerID, up to upTo
// when it is non-zero. Already read messages are skipped, so repeating a
// call changes nothing.
func (s *Store) MarkRead(_ context.Context, chatID, readerID string, upTo domain.MessageID) (int, domain.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.chatLocked(chatID, readerID); err != nil {
		return 0, 0, err
	}

	var (
		updated int
		highest domain.MessageID
	)
	msgs := s.messages[chatID]
	for i := range msgs {
		m := &msgs[i]
		if m.SenderID == readerID || (upTo > 0 && m.ID > upTo) {
			continue
		}
		if !m.Read {
			m.Read = true
			updated++
		}
		if m.ID > highest {
			highest = m.ID
		}
	}
	return updated, highest, nil
}

func senderRole(chat domain.ChatSession, senderID string) domain.Role {
	if chat.Manager.UserID == senderID {
		return chat.Manager.Role
	}
	return chat.Client.Role
}

func sortMessages(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Before(msgs[j])
	})
}
