// Package config loads client and development backend settings through
// viper: defaults, an optional yaml file, then environment overrides.
package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/obraviva/site-chat/pkg/config"
)

type WebSocketConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	SendBuffer       int           `mapstructure:"send_buffer"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func setWebSocketDefaults(v *viper.Viper) {
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 64)
}

func parseWebSocketDurations(v *viper.Viper, ws *WebSocketConfig) {
	ws.HandshakeTimeout = parseDuration(v, "websocket.handshake_timeout", 10*time.Second)
	ws.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	ws.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	ws.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	return pkgconfig.Duration(v, key, defaultVal)
}
