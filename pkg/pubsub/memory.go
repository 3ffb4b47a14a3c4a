package pubsub

import (
	"context"
	"path"
	"sync"
)

const memoryBuffer = 100

type memorySub struct {
	key     string
	pattern bool
	ch      chan *Event
	done    chan struct{}
	once    sync.Once
}

func (s *memorySub) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// MemoryPubSub implements PubSub in process. Pattern subscriptions use
// glob matching in the style of Redis PSUBSCRIBE.
type MemoryPubSub struct {
	mu   sync.RWMutex
	subs map[string][]*memorySub
}

func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{
		subs: make(map[string][]*memorySub),
	}
}

// Publish delivers event to every matching subscriber. A subscriber whose
// buffer is full misses the event, as with the Redis driver.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, subs := range m.subs {
		for _, s := range subs {
			if !s.matches(channel) {
				continue
			}
			select {
			case s.ch <- event:
			default:
			}
		}
	}
	return nil
}

func (s *memorySub) matches(channel string) bool {
	if !s.pattern {
		return s.key == channel
	}
	ok, err := path.Match(s.key, channel)
	return err == nil && ok
}

func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.subscribe(ctx, channel, false), nil
}

func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return m.subscribe(ctx, pattern, true), nil
}

func (m *MemoryPubSub) subscribe(ctx context.Context, key string, pattern bool) <-chan *Event {
	sub := &memorySub{
		key:     key,
		pattern: pattern,
		ch:      make(chan *Event, memoryBuffer),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.subs[key] = append(m.subs[key], sub)
	m.mu.Unlock()

	out := make(chan *Event, memoryBuffer)
	go m.forward(ctx, sub, out)
	return out
}

func (m *MemoryPubSub) forward(ctx context.Context, sub *memorySub, out chan<- *Event) {
	defer close(out)
	defer m.remove(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case ev := <-sub.ch:
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			}
		}
	}
}

func (m *MemoryPubSub) remove(sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[sub.key]
	for i, s := range subs {
		if s == sub {
			m.subs[sub.key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(m.subs[sub.key]) == 0 {
		delete(m.subs, sub.key)
	}
}

// Unsubscribe closes every subscription registered under channel or
// pattern.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.RLock()
	subs := append([]*memorySub(nil), m.subs[channel]...)
	m.mu.RUnlock()

	for _, s := range subs {
		s.close()
	}
	return nil
}

func (m *MemoryPubSub) Close() error {
	m.mu.RLock()
	var all []*memorySub
	for _, subs := range m.subs {
		all = append(all, subs...)
	}
	m.mu.RUnlock()

	for _, s := range all {
		s.close()
	}
	return nil
}
