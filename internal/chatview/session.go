package chatview

import (
	"context"
	"sync"

	"github.com/obraviva/site-chat/internal/coordinator"
	"github.com/obraviva/site-chat/internal/delivery"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/internal/store"
)

// session is the state of one mount. It is discarded on unmount; ctx is
// cancelled at the same time so late continuations see a dead session.
type session struct {
	chatID string
	self   domain.Identity
	store  *store.Store
	coord  *coordinator.Coordinator
	sender *delivery.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	chat    domain.ChatSession
	loading bool
	draft   string
	loadErr error
	sendErr error
	connErr error
}

// bind derives a context from ctx that is also cancelled on unmount.
func (s *session) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Snapshot is what the host renders.
type Snapshot struct {
	ChatID   string
	Chat     domain.ChatSession
	SelfID   string
	Messages []domain.Message
	State    domain.ConnectionState
	// Typing lists the peers currently typing.
	Typing      []string
	LocalTyping bool
	Active      bool
	Loading     bool
	Sending     bool
	Draft       string
	Unread      map[string]int

	LoadError error
	SendError error
	ReadError error
	ConnError error
}

// Counterpart returns the other participant of the mounted chat, if the
// chat metadata is loaded.
func (s Snapshot) Counterpart() (domain.Participant, bool) {
	if !s.Chat.HasParticipant(s.SelfID) {
		return domain.Participant{}, false
	}
	return s.Chat.Counterpart(s.SelfID), true
}
