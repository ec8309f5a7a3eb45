// Package session owns the authenticated user and the lifecycle of
// the per-user local store.
package session

import (
	"sync"

	apperrors "maintkeeper/internal/errors"
	"maintkeeper/internal/events"
	"maintkeeper/internal/logging"
	"maintkeeper/internal/models"
	"maintkeeper/internal/store"
)

// Session holds exactly one open user store at a time, tied to the
// authenticated user. Switching users closes the prior store and opens
// a new one, which resets the action queue subscribers' view of the
// pending count and re-derives the connectivity-and-sync state.
type Session struct {
	mu        sync.Mutex
	dataDir   string
	global    *store.GlobalStore
	queue     *store.ActionQueue
	user      *models.User
	userStore *store.UserStore

	onUser *events.Emitter[*models.User]
}

// New creates a Session with nobody logged in.
func New(dataDir string, global *store.GlobalStore) *Session {
	return &Session{
		dataDir: dataDir,
		global:  global,
		onUser:  events.NewEmitter[*models.User](),
	}
}

// AttachQueue wires the action queue whose store binding follows the
// session.
func (s *Session) AttachQueue(queue *store.ActionQueue) {
	s.queue = queue
}

// OnUserChanged subscribes to login/logout transitions. The listener
// receives nil on logout.
func (s *Session) OnUserChanged(fn func(*models.User)) func() {
	return s.onUser.Subscribe(fn)
}

// User returns the authenticated user, or nil.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Store returns the open user store, or nil when logged out. Used as
// the StoreProvider for the proxies.
func (s *Session) Store() *store.UserStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userStore
}

// Token returns the current authorization credential, or "". Used as
// the transport's CredentialProvider.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.Token
}

// Login opens the user's store partition. With rememberMe set the user
// survives restarts through the global store.
func (s *Session) Login(user *models.User, rememberMe bool) error {
	if user == nil || user.UUID == "" {
		return apperrors.New(apperrors.ErrInvalid, "cannot log in without a user identifier")
	}

	s.mu.Lock()
	if s.userStore != nil {
		s.userStore.Close()
		s.userStore = nil
	}

	userStore, err := store.Open(s.dataDir, user.UUID.String())
	if err != nil {
		s.user = nil
		s.mu.Unlock()
		if s.queue != nil {
			s.queue.SetStore(nil)
		}
		return err
	}

	s.user = user
	s.userStore = userStore
	s.mu.Unlock()

	if s.queue != nil {
		s.queue.SetStore(userStore)
	}

	if rememberMe {
		if err := s.global.SetCurrentUser(user); err != nil {
			logging.Warn("Failed to remember user", map[string]interface{}{"error": err.Error()})
		}
	}

	logging.Info("User logged in", map[string]interface{}{"user": user.Email})
	s.onUser.Emit(user)
	return nil
}

// Logout closes the user store and forgets any remembered user.
func (s *Session) Logout() error {
	s.mu.Lock()
	if s.userStore != nil {
		s.userStore.Close()
	}
	s.user = nil
	s.userStore = nil
	s.mu.Unlock()

	if s.queue != nil {
		s.queue.SetStore(nil)
	}

	if err := s.global.SetCurrentUser(nil); err != nil {
		return err
	}

	logging.Info("User logged out")
	s.onUser.Emit(nil)
	return nil
}

// RestoreRemembered logs the remembered user back in, if any.
func (s *Session) RestoreRemembered() (*models.User, error) {
	user, err := s.global.CurrentUser()
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if err := s.Login(user, false); err != nil {
		return nil, err
	}
	return user, nil
}
