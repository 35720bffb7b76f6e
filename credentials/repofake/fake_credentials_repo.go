package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/campus-portal/credentials"
	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
)

// FakeCredentialsRepo is an in-memory credentials.Repo for tests.
type FakeCredentialsRepo struct {
	mu      sync.RWMutex
	pair    *credentials.Pair
	clears  int
	LoadErr error // returned by Load when set
}

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

// NewFakeCredentialsRepo returns an empty repo.
func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{}
}

// NewFakeCredentialsRepoWith returns a repo already holding pair.
func NewFakeCredentialsRepoWith(pair credentials.Pair) *FakeCredentialsRepo {
	return &FakeCredentialsRepo{pair: &pair}
}

func (r *FakeCredentialsRepo) Load(_ context.Context) (credentials.Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.LoadErr != nil {
		return credentials.Pair{}, r.LoadErr
	}
	if r.pair == nil || !r.pair.Complete() {
		return credentials.Pair{}, credentials.ErrNotFound
	}
	return *r.pair, nil
}

func (r *FakeCredentialsRepo) Save(_ context.Context, pair credentials.Pair) error {
	if !pair.Complete() {
		return apperrors.ErrIncompletePair
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pair = &pair
	return nil
}

func (r *FakeCredentialsRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pair = nil
	r.clears++
	return nil
}

// Clears returns how many times Clear was called.
func (r *FakeCredentialsRepo) Clears() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clears
}
