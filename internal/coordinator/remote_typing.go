package coordinator

import (
	"sort"
	"sync"
	"time"
)

// RemoteTyping tracks which peers are typing. An entry clears on an
// explicit stop or after timeout without one, whichever comes first.
type RemoteTyping struct {
	mu       sync.Mutex
	timeout  time.Duration
	entries  map[string]*remoteEntry
	onChange func()
	closed   bool
	// gen is shared by all entries so an expiry scheduled for a removed
	// entry never matches its replacement.
	gen uint64
}

type remoteEntry struct {
	timer *time.Timer
	gen   uint64
}

func NewRemoteTyping(timeout time.Duration, onChange func()) *RemoteTyping {
	if onChange == nil {
		onChange = func() {}
	}
	return &RemoteTyping{
		timeout:  timeout,
		entries:  make(map[string]*remoteEntry),
		onChange: onChange,
	}
}

// Start marks userID typing and restarts its stale timer.
func (r *RemoteTyping) Start(userID string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	e, existed := r.entries[userID]
	if !existed {
		e = &remoteEntry{}
		r.entries[userID] = e
	} else {
		e.timer.Stop()
	}
	r.gen++
	e.gen = r.gen
	gen := e.gen
	e.timer = time.AfterFunc(r.timeout, func() { r.expire(userID, gen) })
	r.mu.Unlock()

	if !existed {
		r.onChange()
	}
}

func (r *RemoteTyping) expire(userID string, gen uint64) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if r.closed || !ok || e.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.entries, userID)
	r.mu.Unlock()

	r.onChange()
}

// Stop clears userID.
func (r *RemoteTyping) Stop(userID string) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if ok {
		e.timer.Stop()
		delete(r.entries, userID)
	}
	r.mu.Unlock()

	if ok {
		r.onChange()
	}
}

func (r *RemoteTyping) IsTyping(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[userID]
	return ok
}

// Typing returns the typing peers in sorted order.
func (r *RemoteTyping) Typing() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *RemoteTyping) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, id)
	}
}
