package unread

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/obraviva/site-chat/internal/config"
)

// RedisCounter stores one hash per user, field = chat id, so every client
// process of that user sees the same counts.
type RedisCounter struct {
	client *redis.Client
	key    string
}

func NewRedisCounter(cfg config.RedisConfig, prefix, userID string) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCounter{
		client: client,
		key:    BuildKey(prefix, userID),
	}, nil
}

func BuildKey(prefix, userID string) string {
	return fmt.Sprintf("%s:%s", prefix, userID)
}

func (c *RedisCounter) Seed(ctx context.Context, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(counts))
	for chatID, n := range counts {
		if n < 0 {
			n = 0
		}
		values[chatID] = n
	}
	if err := c.client.HSet(ctx, c.key, values).Err(); err != nil {
		return fmt.Errorf("failed to seed unread counters: %w", err)
	}
	return nil
}

func (c *RedisCounter) Increment(ctx context.Context, chatID string) (int, error) {
	n, err := c.client.HIncrBy(ctx, c.key, chatID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment unread counter: %w", err)
	}
	return int(n), nil
}

func (c *RedisCounter) Reset(ctx context.Context, chatID string) error {
	if err := c.client.HSet(ctx, c.key, chatID, 0).Err(); err != nil {
		return fmt.Errorf("failed to reset unread counter: %w", err)
	}
	return nil
}

func (c *RedisCounter) Get(ctx context.Context, chatID string) (int, error) {
	n, err := c.client.HGet(ctx, c.key, chatID).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get unread counter: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) All(ctx context.Context) (map[string]int, error) {
	raw, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list unread counters: %w", err)
	}
	out := make(map[string]int, len(raw))
	for chatID, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[chatID] = n
	}
	return out, nil
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}
