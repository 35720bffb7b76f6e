// Package credentials persists the bearer token and user id pair that
// survives a portal restart.
//
// The two values are always written and removed together. A store holding
// only one of them reports ErrCredentialsNotFound, the same as an empty store.
package credentials

import (
	"context"

	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
)

// Storage keys, named after the keys the web client keeps in local storage.
const (
	KeyAccessToken = "access_token"
	KeyUserID      = "id"
	KeyRemember    = "remember"
)

// Pair is the persisted credential pair.
type Pair struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"id"`
	Remember    bool   `json:"remember,omitempty"` // advisory only
}

// Complete reports whether both halves of the pair are present.
func (p Pair) Complete() bool {
	return p.AccessToken != "" && p.UserID != ""
}

// Repo stores at most one credential pair.
type Repo interface {
	// Load returns the stored pair or ErrCredentialsNotFound.
	Load(ctx context.Context) (Pair, error)

	// Save replaces the stored pair. Incomplete pairs are rejected.
	Save(ctx context.Context, pair Pair) error

	// Clear removes the stored pair. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// ErrNotFound is returned by Load when no complete pair is stored.
var ErrNotFound = apperrors.ErrCredentialsNotFound

func validate(pair Pair) error {
	if !pair.Complete() {
		return apperrors.ErrIncompletePair
	}
	return nil
}
