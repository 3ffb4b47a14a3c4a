// Package unread keeps the per-chat unread counters shown in the chat
// list. Updates are last-writer-wins per chat identifier.
package unread

import "context"

type Counter interface {
	// Seed overwrites the counters of the given chats, typically from the
	// chat list fetched at startup.
	Seed(ctx context.Context, counts map[string]int) error
	Increment(ctx context.Context, chatID string) (int, error)
	Reset(ctx context.Context, chatID string) error
	Get(ctx context.Context, chatID string) (int, error)
	All(ctx context.Context) (map[string]int, error)
	Close() error
}
