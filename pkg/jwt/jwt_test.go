package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueValidate(t *testing.T) {
	m, err := NewManager("secret", time.Hour, "test")
	require.NoError(t, err)

	token, exp, err := m.Issue("U1", "lucia", "client")
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	claims, err := m.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "U1", claims.UserID)
	require.Equal(t, "client", claims.Role)
	require.Equal(t, "test", claims.Issuer)

	other, err := NewManager("other", time.Hour, "test")
	require.NoError(t, err)
	_, err = other.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	m, err := NewManager("secret", time.Minute, "test")
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := m.Issue("U1", "", "client")
	require.NoError(t, err)
	_, err = m.Validate(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestNewManagerEmptySecret(t *testing.T) {
	_, err := NewManager("", time.Hour, "test")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestParseUnverified(t *testing.T) {
	m, err := NewManager("secret", time.Hour, "test")
	require.NoError(t, err)
	token, _, err := m.Issue("U2", "", "manager")
	require.NoError(t, err)

	claims, err := ParseUnverified(token)
	require.NoError(t, err)
	require.Equal(t, "U2", claims.UserID)
	require.Equal(t, "manager", claims.Role)

	_, err = ParseUnverified("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}
