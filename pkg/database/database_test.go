package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestPersistent(t *testing.T) {
	tests := []struct {
		driver string
		want   bool
	}{
		{"", false},
		{"memory", false},
		{"sqlite", true},
		{"postgres", true},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, Config{Driver: tc.driver}.Persistent(), tc.driver)
	}
}

func TestLogLevel(t *testing.T) {
	require.Equal(t, logger.Silent, logLevel(""))
	require.Equal(t, logger.Warn, logLevel("WARN"))
	require.Equal(t, logger.Info, logLevel("info"))
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestNewSQLite(t *testing.T) {
	db, err := New(Config{Driver: "sqlite", FilePath: filepath.Join(t.TempDir(), "chat.db"), MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Close(db))
}
