package config

import (
	"time"

	pkgconfig "github.com/obraviva/site-chat/pkg/config"
	"github.com/obraviva/site-chat/pkg/log"
)

type ClientConfig struct {
	API       APIConfig       `mapstructure:"api"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Unread    UnreadConfig    `mapstructure:"unread"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Log       log.Config      `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ChatConfig struct {
	// TypingWindow is the local inactivity window after which typing_stop
	// is emitted.
	TypingWindow time.Duration `mapstructure:"typing_window"`
	// RemoteTypingTimeout clears a peer's typing flag when no stop arrives.
	RemoteTypingTimeout time.Duration `mapstructure:"remote_typing_timeout"`
	IngestSendAck       bool          `mapstructure:"ingest_send_ack"`
}

type UnreadConfig struct {
	Driver string      `mapstructure:"driver"` // "memory", "redis"
	Prefix string      `mapstructure:"prefix"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type IdentityConfig struct {
	Token string `mapstructure:"token"`
	// UserID and Role request a token from the development backend when
	// no token is configured.
	UserID string `mapstructure:"user_id"`
	Role   string `mapstructure:"role"`
}

// Load reads the chat client configuration from ./config/client.yaml and
// the environment.
func Load() (*ClientConfig, error) {
	return LoadFrom("./config", "client")
}

func LoadFrom(configPath, configName string) (*ClientConfig, error) {
	v, err := pkgconfig.Load(configPath, configName)
	if err != nil {
		return nil, err
	}

	v.SetDefault("api.base_url", "http://localhost:8090/api/v1")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("websocket.url", "ws://localhost:8090/chat/ws")
	v.SetDefault("websocket.handshake_timeout", "10s")
	setWebSocketDefaults(v)
	v.SetDefault("chat.typing_window", "2s")
	v.SetDefault("chat.remote_typing_timeout", "5s")
	v.SetDefault("chat.ingest_send_ack", false)
	v.SetDefault("unread.driver", "memory")
	v.SetDefault("unread.prefix", "chat:unread")
	v.SetDefault("unread.redis.address", "localhost:6379")
	v.SetDefault("unread.redis.db", 0)
	v.SetDefault("identity.role", "client")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "chat-client.log")
	v.SetDefault("log.service_name", "chat-client")

	_ = v.BindEnv("api.base_url", "CHAT_API_URL")
	_ = v.BindEnv("websocket.url", "CHAT_WS_URL")
	_ = v.BindEnv("identity.token", "CHAT_TOKEN")
	_ = v.BindEnv("unread.redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("unread.redis.password", "REDIS_PASSWORD")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.API.Timeout = parseDuration(v, "api.timeout", 15*time.Second)
	parseWebSocketDurations(v, &cfg.WebSocket)
	cfg.Chat.TypingWindow = parseDuration(v, "chat.typing_window", 2*time.Second)
	cfg.Chat.RemoteTypingTimeout = parseDuration(v, "chat.remote_typing_timeout", 5*time.Second)

	return &cfg, nil
}
