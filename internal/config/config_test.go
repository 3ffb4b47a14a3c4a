package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), "client")
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8090/api/v1", cfg.API.BaseURL)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
	require.Equal(t, "ws://localhost:8090/chat/ws", cfg.WebSocket.URL)
	require.Equal(t, 10*time.Second, cfg.WebSocket.HandshakeTimeout)
	require.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	require.Equal(t, int64(65536), cfg.WebSocket.MaxMessageSize)
	require.Equal(t, 2*time.Second, cfg.Chat.TypingWindow)
	require.Equal(t, 5*time.Second, cfg.Chat.RemoteTypingTimeout)
	require.False(t, cfg.Chat.IngestSendAck)
	require.Equal(t, "memory", cfg.Unread.Driver)
}

func TestLoadClientFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("api:\n  timeout: 3s\nchat:\n  typing_window: 500ms\n  ingest_send_ack: true\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.yaml"), yaml, 0o600))
	t.Setenv("CHAT_WS_URL", "ws://example.test/chat/ws")
	t.Setenv("CHAT_TOKEN", "tok")

	cfg, err := LoadFrom(dir, "client")
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.Equal(t, 500*time.Millisecond, cfg.Chat.TypingWindow)
	require.True(t, cfg.Chat.IngestSendAck)
	require.Equal(t, "ws://example.test/chat/ws", cfg.WebSocket.URL)
	require.Equal(t, "tok", cfg.Identity.Token)
}

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServerFrom(t.TempDir(), "devserver")
	require.NoError(t, err)

	require.Equal(t, 8090, cfg.Server.Port)
	require.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	require.Equal(t, "memory", cfg.PubSub.Driver)
	require.Equal(t, 3*time.Second, cfg.PubSub.Redis.ReadTimeout)
	require.Equal(t, "memory", cfg.Database.Driver)
	require.False(t, cfg.Database.Persistent())
	require.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	require.True(t, cfg.Seed.Enabled)
}
