package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/internal/store"
)

type fakeSender struct {
	mu      sync.Mutex
	bodies  []string
	release chan struct{}
	started chan struct{}
	err     error
	ack     domain.Message
}

func (f *fakeSender) Send(ctx context.Context, chatID, body string) (domain.Message, error) {
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.ack, f.err
}

func (f *fakeSender) Bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

func TestSendRejectsEmpty(t *testing.T) {
	s := &fakeSender{}
	c := New(s)

	require.ErrorIs(t, c.Send(context.Background(), "C1", "   \n"), ErrEmptyBody)
	require.Empty(t, s.Bodies())
}

func TestSendSerialization(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
	}{
		{"first succeeds", nil},
		{"first fails", errors.New("boom")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{release: make(chan struct{}), started: make(chan struct{}, 1), err: tt.err}
			c := New(s)

			done := make(chan error, 1)
			go func() { done <- c.Send(context.Background(), "C1", "bien") }()
			<-s.started
			require.True(t, c.Sending())

			require.ErrorIs(t, c.Send(context.Background(), "C1", "bien"), ErrSendInFlight)

			close(s.release)
			select {
			case err := <-done:
				if tt.err != nil {
					require.ErrorIs(t, err, tt.err)
				} else {
					require.NoError(t, err)
				}
			case <-time.After(time.Second):
				t.Fatal("send did not finish")
			}
			require.False(t, c.Sending())

			s.release = nil
			s.started = nil
			require.NotErrorIs(t, c.Send(context.Background(), "C1", "again"), ErrSendInFlight)
			require.Equal(t, []string{"bien", "again"}, s.Bodies())
		})
	}
}

func TestSendAckIngest(t *testing.T) {
	st := store.New("C1")
	ack := domain.Message{
		ID: 3, ChatID: "C1", SenderID: "U1", SenderRole: domain.RoleClient,
		Body: "bien", CreatedAt: time.Now().UTC(),
	}
	c := New(&fakeSender{ack: ack}, WithAckIngest(st), WithSelfID("U1"))

	require.NoError(t, c.Send(context.Background(), "C1", "bien"))
	require.Equal(t, 1, st.Len())

	// the pushed copy collapses onto the acknowledged one
	require.False(t, st.Ingest(ack))
	require.Equal(t, 1, st.Len())
}
