package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-with-at-least-32-bytes!!")

func newTestService() *Service {
	return NewService(testSecret, 15*time.Minute, 7*24*time.Hour)
}

func TestNewServiceShortSecret(t *testing.T) {
	assert.Panics(t, func() { NewService([]byte("short"), time.Minute, time.Hour) })
}

func TestIssueAccessRoundTrip(t *testing.T) {
	svc := newTestService()

	tok, err := svc.IssueAccess("user-1", map[string]any{"role": "admin"})
	require.NoError(t, err)

	claims, err := svc.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "admin", claims["role"])
	assert.NotContains(t, claims, "typ")
}

func TestDecodeExpired(t *testing.T) {
	svc := NewService(testSecret, -time.Minute, 7*24*time.Hour)

	tok, err := svc.IssueAccess("user-1", nil)
	require.NoError(t, err)

	_, err = svc.Decode(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestDecodeWrongSecret(t *testing.T) {
	svc := newTestService()
	other := NewService([]byte("another-secret-with-at-least-32-b!"), 15*time.Minute, time.Hour)

	tok, err := svc.IssueAccess("user-1", nil)
	require.NoError(t, err)

	_, err = other.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeMalformed(t *testing.T) {
	svc := newTestService()

	_, err := svc.Decode("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRefresh(t *testing.T) {
	svc := newTestService()

	refresh, err := svc.IssueRefresh("user-1")
	require.NoError(t, err)

	claims, err := svc.DecodeRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "refresh", claims["typ"])
	assert.NotEmpty(t, claims["jti"])
}

func TestDecodeRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestService()

	access, err := svc.IssueAccess("user-1", nil)
	require.NoError(t, err)

	_, err = svc.DecodeRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
