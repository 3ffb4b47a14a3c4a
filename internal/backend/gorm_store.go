package backend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/database"
	"github.com/obraviva/site-chat/pkg/log"
)

const maxAppendAttempts = 5

// ChatModel is the GORM model for the chats table.
type ChatModel struct {
	ID          string    `gorm:"type:varchar(64);primaryKey"`
	ProjectID   string    `gorm:"type:varchar(64);index;not null"`
	ClientID    string    `gorm:"type:varchar(64);index;not null"`
	ClientName  string    `gorm:"type:varchar(100)"`
	ManagerID   string    `gorm:"type:varchar(64);index;not null"`
	ManagerName string    `gorm:"type:varchar(100)"`
	ManagerRole string    `gorm:"type:varchar(20);not null;default:'manager'"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (ChatModel) TableName() string {
	return "chats"
}

func (m *ChatModel) ToDomain() domain.ChatSession {
	return domain.ChatSession{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Client:    domain.Participant{UserID: m.ClientID, Name: m.ClientName, Role: domain.RoleClient},
		Manager:   domain.Participant{UserID: m.ManagerID, Name: m.ManagerName, Role: domain.Role(m.ManagerRole)},
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func ChatToModel(c domain.ChatSession) *ChatModel {
	role := string(c.Manager.Role)
	if role == "" {
		role = string(domain.RoleManager)
	}
	return &ChatModel{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		ClientID:    c.Client.UserID,
		ClientName:  c.Client.Name,
		ManagerID:   c.Manager.UserID,
		ManagerName: c.Manager.Name,
		ManagerRole: role,
		CreatedAt:   c.CreatedAt,
	}
}

// MessageModel is the GORM model for the chat_messages table.
type MessageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false"`
	ChatID     string    `gorm:"type:varchar(64);index:idx_chat_created,priority:1;not null"`
	SenderID   string    `gorm:"type:varchar(64);not null"`
	SenderRole string    `gorm:"type:varchar(20);not null"`
	Body       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"index:idx_chat_created,priority:2"`
	Read       bool      `gorm:"column:is_read;not null;default:false"`
}

func (MessageModel) TableName() string {
	return "chat_messages"
}

func (m *MessageModel) ToDomain() domain.Message {
	return domain.Message{
		ID:         domain.MessageID(m.ID),
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		SenderRole: domain.Role(m.SenderRole),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt.UTC(),
		Read:       m.Read,
	}
}

func MessageToModel(m domain.Message) *MessageModel {
	return &MessageModel{
		ID:         int64(m.ID),
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		SenderRole: string(m.SenderRole),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		Read:       m.Read,
	}
}

// GormStore implements Repository on a SQL database through GORM.
// Message identifiers are assigned as MAX(id)+1 so they grow with creation
// order on every driver. appendMu serializes appends in this process; a
// conflict with another process sharing the database is retried.
type GormStore struct {
	db       *gorm.DB
	appendMu sync.Mutex
	now      func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates the chat tables.
func (s *GormStore) Migrate() error {
	return database.AutoMigrate(s.db, &ChatModel{}, &MessageModel{})
}

func (s *GormStore) PutChat(ctx context.Context, chat domain.ChatSession) error {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Save(ChatToModel(chat)).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, chat.ID).Msg("failed to save chat")
		return err
	}
	return nil
}

func (s *GormStore) PutMessage(ctx context.Context, m domain.Message) error {
	if err := s.db.WithContext(ctx).Save(MessageToModel(m)).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, m.ChatID).Msg("failed to save message")
		return err
	}
	return nil
}

func (s *GormStore) Chat(ctx context.Context, chatID, userID string) (domain.ChatSession, error) {
	var model ChatModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", chatID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain.ChatSession{}, ErrChatNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldChatID, chatID).Msg("failed to get chat")
		return domain.ChatSession{}, result.Error
	}

	chat := model.ToDomain()
	if !chat.HasParticipant(userID) {
		return domain.ChatSession{}, ErrNotMember
	}
	return chat, nil
}

func (s *GormStore) ListChats(ctx context.Context, userID string) ([]domain.ChatSummary, error) {
	l := log.Ctx(ctx)
	db := s.db.WithContext(ctx)

	var chats []ChatModel
	if err := db.Where("client_id = ? OR manager_id = ?", userID, userID).Find(&chats).Error; err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list chats")
		return nil, err
	}

	out := make([]domain.ChatSummary, 0, len(chats))
	for i := range chats {
		summary := domain.ChatSummary{Chat: chats[i].ToDomain()}

		var unread int64
		err := db.Model(&MessageModel{}).
			Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chats[i].ID, userID, false).
			Count(&unread).Error
		if err != nil {
			l.Error().Err(err).Str(log.FieldChatID, chats[i].ID).Msg("failed to count unread messages")
			return nil, err
		}
		summary.UnreadCount = int(unread)

		var last []MessageModel
		err = db.Where("chat_id = ?", chats[i].ID).
			Order("created_at DESC, id DESC").Limit(1).
			Find(&last).Error
		if err != nil {
			l.Error().Err(err).Str(log.FieldChatID, chats[i].ID).Msg("failed to load last message")
			return nil, err
		}
		if len(last) == 1 {
			m := last[0].ToDomain()
			summary.LastMessage = &m
		}
		out = append(out, summary)
	}

	sortSummaries(out)
	return out, nil
}

func (s *GormStore) History(ctx context.Context, chatID, userID string) (domain.ChatSession, []domain.Message, error) {
	chat, err := s.Chat(ctx, chatID, userID)
	if err != nil {
		return domain.ChatSession{}, nil, err
	}

	var models []MessageModel
	err = s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to load history")
		return domain.ChatSession{}, nil, err
	}

	msgs := make([]domain.Message, 0, len(models))
	for i := range models {
		msgs = append(msgs, models[i].ToDomain())
	}
	return chat, msgs, nil
}

func (s *GormStore) Append(ctx context.Context, chatID, senderID, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, ErrEmptyBody
	}

	chat, err := s.Chat(ctx, chatID, senderID)
	if err != nil {
		return domain.Message{}, err
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	m := domain.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		SenderRole: senderRole(chat, senderID),
		Body:       body,
	}

	// Ids are MAX(id)+1 across the table. Another instance sharing the
	// database can take the same id first; the primary key rejects the
	// loser, which reads MAX again.
	for attempt := 1; ; attempt++ {
		var lastID int64
		err = s.db.WithContext(ctx).Model(&MessageModel{}).Select("COALESCE(MAX(id), 0)").Scan(&lastID).Error
		if err == nil {
			m.ID = domain.MessageID(lastID + 1)
			m.CreatedAt = s.now()
			err = s.db.WithContext(ctx).Create(MessageToModel(m)).Error
		}
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt == maxAppendAttempts {
			break
		}
		l := log.Ctx(ctx)
		l.Debug().Stringer(log.FieldMessageID, m.ID).Int("attempt", attempt).Msg("message id taken, retrying")
	}

	l := log.Ctx(ctx)
	l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to append message")
	return domain.Message{}, err
}

func (s *GormStore) MarkRead(ctx context.Context, chatID, readerID string, upTo domain.MessageID) (int, domain.MessageID, error) {
	if _, err := s.Chat(ctx, chatID, readerID); err != nil {
		return 0, 0, err
	}

	counterpart := func(tx *gorm.DB) *gorm.DB {
		q := tx.Model(&MessageModel{}).Where("chat_id = ? AND sender_id <> ?", chatID, readerID)
		if upTo > 0 {
			q = q.Where("id <= ?", int64(upTo))
		}
		return q
	}

	var (
		updated int64
		highest int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := counterpart(tx).Select("COALESCE(MAX(id), 0)").Scan(&highest).Error; err != nil {
			return err
		}
		res := counterpart(tx).Where("is_read = ?", false).Update("is_read", true)
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected
		return nil
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to mark messages read")
		return 0, 0, err
	}
	return int(updated), domain.MessageID(highest), nil
}
