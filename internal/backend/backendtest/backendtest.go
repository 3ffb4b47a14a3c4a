// Package backendtest runs the development backend on a loopback
// httptest server for transport-level tests.
package backendtest

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obraviva/site-chat/internal/backend"
	"github.com/obraviva/site-chat/internal/config"
	"github.com/obraviva/site-chat/internal/domain"
)

// Env is a running backend seeded with the development data set.
type Env struct {
	Server *backend.Server
	HTTP   *httptest.Server
	// APIURL is the REST base, WSURL the socket endpoint.
	APIURL string
	WSURL  string
}

func New(t testing.TB) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := backend.NewStore()
	if err := backend.Seed(context.Background(), store); err != nil {
		t.Fatalf("seed: %v", err)
	}

	srv, err := backend.New(backend.Options{
		JWT:   config.JWTConfig{Secret: "test-secret", TTL: time.Hour, Issuer: "backendtest"},
		Store: store,
	})
	if err != nil {
		t.Fatalf("backend: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("backend start: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		srv.Close()
	})

	return &Env{
		Server: srv,
		HTTP:   ts,
		APIURL: ts.URL + "/api/v1",
		WSURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat/ws",
	}
}

// Token issues a valid session token.
func (e *Env) Token(t testing.TB, userID string, role domain.Role) string {
	t.Helper()
	token, _, err := e.Server.Tokens().Issue(userID, userID, string(role))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}
