package unread

import (
	"context"
	"sync"
)

type MemoryCounter struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (c *MemoryCounter) Seed(_ context.Context, counts map[string]int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for chatID, n := range counts {
		if n < 0 {
			n = 0
		}
		c.counts[chatID] = n
	}
	return nil
}

func (c *MemoryCounter) Increment(_ context.Context, chatID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[chatID]++
	return c.counts[chatID], nil
}

func (c *MemoryCounter) Reset(_ context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[chatID] = 0
	return nil
}

func (c *MemoryCounter) Get(_ context.Context, chatID string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[chatID], nil
}

func (c *MemoryCounter) All(_ context.Context) (map[string]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out, nil
}

func (c *MemoryCounter) Close() error { return nil }
