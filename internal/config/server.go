package config

import (
	"time"

	pkgconfig "github.com/obraviva/site-chat/pkg/config"
	"github.com/obraviva/site-chat/pkg/database"
	"github.com/obraviva/site-chat/pkg/log"
	"github.com/obraviva/site-chat/pkg/pubsub"
)

type ServerConfig struct {
	Server    HTTPConfig      `mapstructure:"server"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	PubSub    pubsub.Config   `mapstructure:"pubsub"`
	Database  database.Config `mapstructure:"database"`
	Seed      SeedConfig      `mapstructure:"seed"`
	Log       log.Config      `mapstructure:"log"`
}

type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

type SeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadServer reads the development backend configuration from
// ./config/devserver.yaml and the environment.
func LoadServer() (*ServerConfig, error) {
	return LoadServerFrom("./config", "devserver")
}

func LoadServerFrom(configPath, configName string) (*ServerConfig, error) {
	v, err := pkgconfig.Load(configPath, configName)
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("jwt.secret", "dev-secret-change-me")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("jwt.issuer", "site-chat-dev")
	setWebSocketDefaults(v)
	v.SetDefault("pubsub.driver", "memory")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.read_timeout", "3s")
	v.SetDefault("pubsub.redis.write_timeout", "3s")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.file_path", "chat-dev.db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("seed.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "chat-devserver")

	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	_ = v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("database.host", "DATABASE_HOST")
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD")

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.TTL = parseDuration(v, "jwt.ttl", 24*time.Hour)
	parseWebSocketDurations(v, &cfg.WebSocket)
	cfg.PubSub.Redis.ReadTimeout = parseDuration(v, "pubsub.redis.read_timeout", 3*time.Second)
	cfg.PubSub.Redis.WriteTimeout = parseDuration(v, "pubsub.redis.write_timeout", 3*time.Second)
	cfg.Database.ConnMaxLifetime = parseDuration(v, "database.conn_max_lifetime", 30*time.Minute)

	return &cfg, nil
}
