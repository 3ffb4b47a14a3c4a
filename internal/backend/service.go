package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/obraviva/site-chat/internal/audit"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/jwt"
	"github.com/obraviva/site-chat/pkg/log"
	"github.com/obraviva/site-chat/pkg/pubsub"
)

// TokenValidator validates bearer tokens presented on the socket.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// ChatService implements the chat backend behavior shared by the socket
// and REST handlers. Every fan-out goes through the bus so that several
// instances behind a Redis bus see each other's events.
type ChatService struct {
	hub    *Hub
	store  Repository
	tokens TokenValidator
	bus    pubsub.PubSub

	mu        sync.Mutex
	readCalls map[string]int
}

func NewChatService(h *Hub, store Repository, tokens TokenValidator, bus pubsub.PubSub) *ChatService {
	return &ChatService{
		hub:       h,
		store:     store,
		tokens:    tokens,
		bus:       bus,
		readCalls: make(map[string]int),
	}
}

func (s *ChatService) HandleAuth(ctx context.Context, c *Client, token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, "", "", err.Error(), "socket authentication rejected")
		c.SendMessage(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: err.Error(),
		})
		return err
	}

	c.Session.Authenticate(claims.UserID, domain.Role(claims.Role))

	return c.SendMessage(&domain.AuthResultMessage{
		Type:    domain.MsgTypeAuthResult,
		Success: true,
		UserID:  claims.UserID,
	})
}

func (s *ChatService) HandleJoinChat(ctx context.Context, c *Client, chatID string) error {
	if !c.Session.IsAuthenticated() {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Not authenticated"))
	}

	userID := c.Session.UserID()
	if _, err := s.store.Chat(ctx, chatID, userID); err != nil {
		code := domain.ErrCodeForbidden
		if errors.Is(err, ErrChatNotFound) {
			code = domain.ErrCodeNotFound
		}
		c.SendMessage(domain.NewErrorMessage(code, err.Error()))
		return err
	}

	if current := c.Session.CurrentChat(); current != "" {
		s.leave(c, current)
	}

	s.hub.JoinChat(c, chatID)
	c.Session.JoinChat(chatID)
	audit.Log(ctx, audit.ActionJoinChat, userID, chatID, "socket joined chat")

	return c.SendMessage(&domain.ChatJoinedMessage{
		Type:   domain.MsgTypeChatJoined,
		ChatID: chatID,
	})
}

func (s *ChatService) HandleLeaveChat(ctx context.Context, c *Client, chatID string) error {
	current := c.Session.CurrentChat()
	if current == "" || (chatID != "" && chatID != current) {
		return nil
	}
	s.leave(c, current)
	audit.Log(ctx, audit.ActionLeaveChat, c.Session.UserID(), current, "socket left chat")
	return nil
}

func (s *ChatService) HandleDisconnect(ctx context.Context, c *Client) {
	if current := c.Session.CurrentChat(); current != "" {
		s.leave(c, current)
	}
}

func (s *ChatService) leave(c *Client, chatID string) {
	s.hub.LeaveChat(c, chatID)
	c.Session.LeaveChat()
}

// HandleTyping relays a typing signal to the other sockets of the chat.
func (s *ChatService) HandleTyping(ctx context.Context, c *Client, chatID string, start bool) error {
	if err := s.requireJoined(c, chatID); err != nil {
		return err
	}

	frameType := domain.MsgTypeTypingStop
	if start {
		frameType = domain.MsgTypeTypingStart
	}
	frame := &domain.TypingMessage{Type: frameType, ChatID: chatID, UserID: c.Session.UserID()}
	return s.publish(ctx, frameType, chatID, c.ID, frame)
}

// HandleReadReceipt relays a read receipt to the other sockets of the chat.
func (s *ChatService) HandleReadReceipt(ctx context.Context, c *Client, chatID string, messageID domain.MessageID) error {
	if err := s.requireJoined(c, chatID); err != nil {
		return err
	}
	frame := &domain.ReadReceiptMessage{
		Type:      domain.MsgTypeReadReceipt,
		ChatID:    chatID,
		UserID:    c.Session.UserID(),
		MessageID: messageID,
	}
	return s.publish(ctx, domain.MsgTypeReadReceipt, chatID, c.ID, frame)
}

func (s *ChatService) requireJoined(c *Client, chatID string) error {
	if !c.Session.IsAuthenticated() {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Not authenticated"))
		return fmt.Errorf("client %s not authenticated", c.ID)
	}
	if c.Session.CurrentChat() != chatID {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotInChat, "Not in this chat"))
		return fmt.Errorf("client %s not in chat %s", c.ID, chatID)
	}
	return nil
}

// SendMessage persists a message and pushes it to every socket of the
// chat, the sender's included.
func (s *ChatService) SendMessage(ctx context.Context, chatID, userID, body string) (domain.Message, error) {
	m, err := s.store.Append(ctx, chatID, userID, body)
	if err != nil {
		return domain.Message{}, err
	}
	audit.LogWithDetail(ctx, audit.ActionSendMessage, userID, chatID, m.ID.String(), "message stored")

	frame := &domain.NewMessageOut{Type: domain.MsgTypeNewMessage, ChatID: chatID, Message: m}
	if err := s.publish(ctx, domain.MsgTypeNewMessage, chatID, "", frame); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to publish new message")
	}
	return m, nil
}

// MarkRead marks the counterpart's messages read for userID.
func (s *ChatService) MarkRead(ctx context.Context, chatID, userID string, upTo domain.MessageID) (int, error) {
	updated, highest, err := s.store.MarkRead(ctx, chatID, userID, upTo)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.readCalls[chatID]++
	s.mu.Unlock()

	audit.LogWithDetail(ctx, audit.ActionMarkRead, userID, chatID, highest.String(), "messages marked read")
	return updated, nil
}

// MarkReadCalls reports how many mark-as-read requests chatID received.
func (s *ChatService) MarkReadCalls(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCalls[chatID]
}

func (s *ChatService) ListChats(ctx context.Context, userID string) ([]domain.ChatSummary, error) {
	return s.store.ListChats(ctx, userID)
}

func (s *ChatService) History(ctx context.Context, chatID, userID string) (domain.ChatSession, []domain.Message, error) {
	return s.store.History(ctx, chatID, userID)
}

func (s *ChatService) publish(ctx context.Context, eventType, chatID, origin string, frame interface{}) error {
	ev, err := pubsub.NewEvent(eventType, chatID, frame)
	if err != nil {
		return err
	}
	ev.Origin = origin
	return s.bus.Publish(ctx, pubsub.ChatEventsChannel(chatID), ev)
}

// Relay forwards bus events to the local sockets of each chat until ctx
// is done.
func (s *ChatService) Relay(ctx context.Context) error {
	events, err := s.bus.SubscribePattern(ctx, pubsub.PatternChatEvents)
	if err != nil {
		return fmt.Errorf("failed to subscribe to chat events: %w", err)
	}

	go func() {
		for ev := range events {
			s.hub.BroadcastRawToChat(ev.ChatID, ev.Payload, ev.Origin)
		}
	}()
	return nil
}
