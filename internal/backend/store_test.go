package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/database"
)

// repositories runs fn against every Repository implementation, seeded
// with the development data set.
func repositories(t *testing.T, fn func(t *testing.T, r Repository)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		r := NewStore()
		require.NoError(t, Seed(context.Background(), r))
		fn(t, r)
	})

	t.Run("gorm-sqlite", func(t *testing.T) {
		fn(t, newSQLiteStore(t))
	})
}

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.New(database.Config{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "chat.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	r := NewGormStore(db)
	require.NoError(t, r.Migrate())
	require.NoError(t, Seed(context.Background(), r))
	return r
}

func TestStoreHistoryMembership(t *testing.T) {
	repositories(t, func(t *testing.T, r Repository) {
		ctx := context.Background()

		chat, msgs, err := r.History(ctx, SeedChatID, SeedClientID)
		require.NoError(t, err)
		require.Equal(t, SeedProjectID, chat.ProjectID)
		require.Equal(t, "Andrés Mora", chat.Manager.Name)
		require.Len(t, msgs, 1)
		require.Equal(t, "hola", msgs[0].Body)
		require.NoError(t, msgs[0].Validate())

		_, _, err = r.History(ctx, SeedChatID, "U3")
		require.ErrorIs(t, err, ErrNotMember)

		_, _, err = r.History(ctx, "missing", SeedClientID)
		require.ErrorIs(t, err, ErrChatNotFound)
	})
}

func TestStoreAppendAssignsIncreasingIDs(t *testing.T) {
	repositories(t, func(t *testing.T, r Repository) {
		ctx := context.Background()

		a, err := r.Append(ctx, SeedChatID, SeedManagerID, "¿cómo va?")
		require.NoError(t, err)
		b, err := r.Append(ctx, SeedChatID, SeedClientID, "  bien  ")
		require.NoError(t, err)

		require.Equal(t, domain.MessageID(2), a.ID)
		require.Equal(t, domain.MessageID(3), b.ID)
		require.Equal(t, "bien", b.Body)
		require.Equal(t, domain.RoleClient, b.SenderRole)
		require.Equal(t, domain.RoleManager, a.SenderRole)
		require.NoError(t, b.Validate())

		_, err = r.Append(ctx, SeedChatID, SeedClientID, "   ")
		require.ErrorIs(t, err, ErrEmptyBody)
		_, err = r.Append(ctx, "C2", SeedClientID, "intruso")
		require.ErrorIs(t, err, ErrNotMember)

		_, msgs, err := r.History(ctx, SeedChatID, SeedClientID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		for i := 1; i < len(msgs); i++ {
			require.True(t, msgs[i-1].Before(msgs[i]))
		}
	})
}

func TestGormStoreAppendRetriesTakenID(t *testing.T) {
	r := newSQLiteStore(t)
	ctx := context.Background()

	// Another instance inserts the id this append is about to use, after
	// MAX(id) was read.
	var taken []int64
	err := r.db.Callback().Create().Before("gorm:begin_transaction").Register("chat:take_id", func(tx *gorm.DB) {
		m, ok := tx.Statement.Dest.(*MessageModel)
		if !ok || len(taken) > 0 {
			return
		}
		taken = append(taken, m.ID)
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO chat_messages (id, chat_id, sender_id, sender_role, body, created_at, is_read) VALUES (?, ?, ?, ?, ?, ?, ?)",
			m.ID, SeedChatID, SeedManagerID, string(domain.RoleManager), "from elsewhere", time.Now().UTC(), false,
		).Error)
	})
	require.NoError(t, err)

	m, err := r.Append(ctx, SeedChatID, SeedClientID, "mío")
	require.NoError(t, err)
	require.Equal(t, []int64{2}, taken)
	require.Equal(t, domain.MessageID(3), m.ID)

	_, msgs, err := r.History(ctx, SeedChatID, SeedClientID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "from elsewhere", msgs[1].Body)
	require.Equal(t, "mío", msgs[2].Body)
}

func TestStoreMarkReadIsIdempotent(t *testing.T) {
	repositories(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		_, err := r.Append(ctx, SeedChatID, SeedManagerID, "second")
		require.NoError(t, err)
		_, err = r.Append(ctx, SeedChatID, SeedClientID, "own")
		require.NoError(t, err)

		updated, highest, err := r.MarkRead(ctx, SeedChatID, SeedClientID, 1)
		require.NoError(t, err)
		require.Equal(t, 1, updated)
		require.Equal(t, domain.MessageID(1), highest)

		updated, highest, err = r.MarkRead(ctx, SeedChatID, SeedClientID, 0)
		require.NoError(t, err)
		require.Equal(t, 1, updated)
		require.Equal(t, domain.MessageID(2), highest)

		updated, _, err = r.MarkRead(ctx, SeedChatID, SeedClientID, 0)
		require.NoError(t, err)
		require.Zero(t, updated)

		_, msgs, err := r.History(ctx, SeedChatID, SeedClientID)
		require.NoError(t, err)
		require.True(t, msgs[0].Read)
		require.True(t, msgs[1].Read)
		require.False(t, msgs[2].Read, "reader's own message must stay unread")
	})
}

func TestStoreListChatsUnreadCounts(t *testing.T) {
	repositories(t, func(t *testing.T, r Repository) {
		ctx := context.Background()

		client, err := r.ListChats(ctx, SeedClientID)
		require.NoError(t, err)
		require.Len(t, client, 1)
		require.Equal(t, 1, client[0].UnreadCount)
		require.NotNil(t, client[0].LastMessage)
		require.Equal(t, domain.MessageID(1), client[0].LastMessage.ID)

		manager, err := r.ListChats(ctx, SeedManagerID)
		require.NoError(t, err)
		require.Len(t, manager, 2)
		require.Equal(t, SeedChatID, manager[0].Chat.ID, "chat with the latest message first")
		for _, c := range manager {
			require.Zero(t, c.UnreadCount)
		}

		nobody, err := r.ListChats(ctx, "nobody")
		require.NoError(t, err)
		require.Empty(t, nobody)
	})
}
