package coordinator

import (
	"strings"
	"sync"
	"time"
)

// TypingEmitter debounces local input into typing start/stop edges. Only
// the transitions are emitted: a burst of keystrokes yields one start, and
// one stop follows once input has been idle for the window.
type TypingEmitter struct {
	mu     sync.Mutex
	window time.Duration
	emit   func(typing bool)
	typing bool
	timer  *time.Timer
	gen    uint64
	closed bool
}

// NewTypingEmitter calls emit under its own lock; emit must not block.
func NewTypingEmitter(window time.Duration, emit func(typing bool)) *TypingEmitter {
	return &TypingEmitter{window: window, emit: emit}
}

// Input reports the current compose text after a change.
func (e *TypingEmitter) Input(text string) {
	if strings.TrimSpace(text) == "" {
		e.Stop()
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if !e.typing {
		e.typing = true
		e.emit(true)
	}
	e.gen++
	gen := e.gen
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.window, func() { e.expire(gen) })
}

func (e *TypingEmitter) expire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.gen || !e.typing {
		return
	}
	e.typing = false
	e.emit(false)
}

// Stop ends typing now, e.g. after the message was sent.
func (e *TypingEmitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.closed || !e.typing {
		return
	}
	e.typing = false
	e.emit(false)
}

func (e *TypingEmitter) Typing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typing
}

// Close cancels the pending timer without emitting.
func (e *TypingEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
