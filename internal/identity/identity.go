// Package identity supplies the current user, role and bearer credential
// to the chat core.
package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/jwt"
)

var ErrNoIdentity = errors.New("no identity available")

// Provider is read at call time, so a refreshed credential is picked up by
// the next connect or request.
type Provider interface {
	Identity() (domain.Identity, error)
}

// Static always returns the same identity.
type Static struct {
	id domain.Identity
}

func NewStatic(id domain.Identity) *Static {
	return &Static{id: id}
}

func (s *Static) Identity() (domain.Identity, error) {
	if s.id.UserID == "" || s.id.Token == "" {
		return domain.Identity{}, ErrNoIdentity
	}
	return s.id, nil
}

// TokenProvider derives the identity from the claims of a session token.
// The signature is not verified here; the backend does that.
type TokenProvider struct {
	mu sync.RWMutex
	id domain.Identity
}

func FromToken(token string) (*TokenProvider, error) {
	p := &TokenProvider{}
	if err := p.SetToken(token); err != nil {
		return nil, err
	}
	return p, nil
}

// SetToken replaces the credential, e.g. after the host refreshed it.
func (p *TokenProvider) SetToken(token string) error {
	claims, err := jwt.ParseUnverified(token)
	if err != nil {
		return fmt.Errorf("decode session token: %w", err)
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return fmt.Errorf("decode session token: unknown role %q", claims.Role)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = domain.Identity{UserID: claims.UserID, Role: role, Token: token}
	return nil
}

func (p *TokenProvider) Identity() (domain.Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.id.Token == "" {
		return domain.Identity{}, ErrNoIdentity
	}
	return p.id, nil
}
