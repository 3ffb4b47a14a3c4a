package unread

import (
	"fmt"

	"github.com/obraviva/site-chat/internal/config"
)

// New builds the counter selected by cfg.Driver for userID.
func New(cfg config.UnreadConfig, userID string) (Counter, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryCounter(), nil
	case "redis":
		return NewRedisCounter(cfg.Redis, cfg.Prefix, userID)
	default:
		return nil, fmt.Errorf("unknown unread driver %q", cfg.Driver)
	}
}
