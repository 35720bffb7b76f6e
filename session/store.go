// Package session holds the portal's belief about who is signed in.
//
// A Store is the single owner of that belief. Every mutation goes through its
// methods and is published to watchers in version order, so no observer sees
// LoggedIn without a User (or the reverse) outside the initial loading window.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/campus-portal/credentials"
	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
)

// State is an immutable snapshot of the session.
type State struct {
	LoggedIn   bool
	Loading    bool // true only while the bootstrapper is reconciling
	User       *User
	VerifiedAt time.Time // last successful profile lookup
	Version    uint64
}

// Store is the process-wide session state container.
type Store struct {
	mu       sync.Mutex
	state    State
	creds    credentials.Repo
	watchers map[chan State]struct{}
}

// NewStore returns a store in its start-up state: logged out and loading.
// Logout clears persisted credentials through creds.
func NewStore(creds credentials.Repo) *Store {
	return &Store{
		state:    State{Loading: true},
		creds:    creds,
		watchers: make(map[chan State]struct{}),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetLoggedIn sets the login flag. Marking the session logged in without a
// user returns ErrNoUser and leaves the state unchanged.
func (s *Store) SetLoggedIn(loggedIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loggedIn && s.state.User == nil {
		return apperrors.ErrNoUser
	}
	if s.state.LoggedIn == loggedIn {
		return nil
	}
	s.state.LoggedIn = loggedIn
	s.publishLocked()
	return nil
}

// SetUser replaces the user. Clearing the user of a logged-in session also
// clears the login flag.
func (s *Store) SetUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.User = copyUser(user)
	if user == nil {
		s.state.LoggedIn = false
	}
	s.publishLocked()
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Loading == loading {
		return
	}
	s.state.Loading = loading
	s.publishLocked()
}

// Establish signs user in: the user and the login flag change in one step
// and the verification time is recorded.
func (s *Store) Establish(user User, verifiedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.User = &user
	s.state.LoggedIn = true
	s.state.VerifiedAt = verifiedAt
	s.publishLocked()
}

// Logout removes the persisted credential pair and then clears the login
// flag and the user together. It is idempotent. A storage failure is
// returned, but the in-memory session is cleared regardless.
func (s *Store) Logout(ctx context.Context) error {
	var clearErr error
	if s.creds != nil {
		clearErr = s.creds.Clear(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.LoggedIn || s.state.User != nil || !s.state.VerifiedAt.IsZero() {
		s.state.LoggedIn = false
		s.state.User = nil
		s.state.VerifiedAt = time.Time{}
		s.publishLocked()
	}
	return apperrors.Wrapf(clearErr, "clear persisted credentials")
}

// Watch returns a channel carrying the latest state after every change,
// starting with the current one. A slow reader only ever misses intermediate
// states, never the newest. The channel is closed when ctx is done.
func (s *Store) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	ch <- s.state
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *Store) publishLocked() {
	s.state.Version++
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s.state
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
