// Package session tests for login, logout and remember-me.
package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintkeeper/internal/models"
	"maintkeeper/internal/store"
)

func newTestSession(t *testing.T) (*Session, *store.ActionQueue) {
	t.Helper()

	dataDir := t.TempDir()
	global, err := store.OpenGlobal(dataDir)
	require.NoError(t, err)
	t.Cleanup(func() { global.Close() })

	s := New(dataDir, global)
	queue := store.NewActionQueue(nil)
	s.AttachQueue(queue)
	return s, queue
}

// TestSession_loginOpensStore verifies a login opens the user's store
// partition and exposes the credential.
func TestSession_loginOpensStore(t *testing.T) {
	s, _ := newTestSession(t)

	var observed []*models.User
	s.OnUserChanged(func(u *models.User) { observed = append(observed, u) })

	user := &models.User{UUID: "u1", Email: "skipper@example.com", Token: "tok"}
	require.NoError(t, s.Login(user, false))

	assert.NotNil(t, s.Store())
	assert.Equal(t, "tok", s.Token())
	require.Len(t, observed, 1)
	assert.Equal(t, user, observed[0])
}

// TestSession_loginRejectsAnonymous verifies a user without an
// identifier cannot log in.
func TestSession_loginRejectsAnonymous(t *testing.T) {
	s, _ := newTestSession(t)

	assert.Error(t, s.Login(nil, false))
	assert.Error(t, s.Login(&models.User{}, false))
	assert.Nil(t, s.Store())
}

// TestSession_switchingUsersResetsQueueView verifies the queue follows
// the session's store and subscribers see the reset.
func TestSession_switchingUsersResetsQueueView(t *testing.T) {
	s, queue := newTestSession(t)

	var counts []int
	queue.OnCountChanged(func(count int) { counts = append(counts, count) })

	require.NoError(t, s.Login(&models.User{UUID: "u1"}, false))
	require.NoError(t, s.Login(&models.User{UUID: "u2"}, false))

	assert.Equal(t, 0, queue.Count())
	require.Len(t, counts, 2, "each store switch notifies the pending count")
	assert.Equal(t, []int{0, 0}, counts)
}

// TestSession_logout verifies logout closes the store, clears the
// credential and notifies with nil.
func TestSession_logout(t *testing.T) {
	s, queue := newTestSession(t)
	require.NoError(t, s.Login(&models.User{UUID: "u1", Token: "tok"}, false))

	var observed []*models.User
	s.OnUserChanged(func(u *models.User) { observed = append(observed, u) })

	require.NoError(t, s.Logout())

	assert.Nil(t, s.User())
	assert.Nil(t, s.Store())
	assert.Equal(t, "", s.Token())
	assert.Equal(t, 0, queue.Count())
	require.Len(t, observed, 1)
	assert.Nil(t, observed[0])
}

// TestSession_rememberMe verifies a remembered user survives a restart
// and logout forgets them.
func TestSession_rememberMe(t *testing.T) {
	dataDir := t.TempDir()
	global, err := store.OpenGlobal(dataDir)
	require.NoError(t, err)
	t.Cleanup(func() { global.Close() })

	first := New(dataDir, global)
	first.AttachQueue(store.NewActionQueue(nil))
	require.NoError(t, first.Login(&models.User{UUID: "u1", Token: "tok"}, true))
	require.NoError(t, first.Store().Close())

	// A fresh session over the same global store stands in for a
	// process restart.
	second := New(dataDir, global)
	second.AttachQueue(store.NewActionQueue(nil))
	user, err := second.RestoreRemembered()
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, models.UUID("u1"), user.UUID)
	assert.Equal(t, "tok", second.Token())

	require.NoError(t, second.Logout())

	third := New(dataDir, global)
	user, err = third.RestoreRemembered()
	require.NoError(t, err)
	assert.Nil(t, user, "logout must forget the remembered user")
}
