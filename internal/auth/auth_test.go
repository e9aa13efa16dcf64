package auth

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/paperforge/internal/db"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, "test-secret", 60)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)

	token, u, err := svc.Register("alice", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", u.Handle)

	_, _, err = svc.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login("nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token2, u2, err := svc.Login("alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, u2.UserID)

	claims, err := svc.ValidateToken(token2)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, claims.UserID)
	assert.Equal(t, "alice", claims.Handle)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestUserIDFallsBackToDefault(t *testing.T) {
	svc := newTestService(t)

	r := httptest.NewRequest("GET", "/api/paper/sessions", nil)
	assert.Equal(t, DefaultUserID, svc.UserID(r))

	r.Header.Set("Authorization", "Bearer bogus")
	assert.Equal(t, DefaultUserID, svc.UserID(r))

	token, u, err := svc.Register("bob", "long password")
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, u.UserID, svc.UserID(r))
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	svc := newTestService(t)

	store, err := db.Open(filepath.Join(t.TempDir(), "other.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	other := New(store, "different-secret", 60)

	token, _, err := other.Register("eve", "long password")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
