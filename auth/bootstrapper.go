// Package auth reconciles the persisted credential pair with the in-memory
// session. It runs the startup login check, handles sign-in, and reacts to
// forced logouts raised elsewhere in the portal.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/campus-portal/credentials"
	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
	"github.com/jrsteele09/campus-portal/notice"
	"github.com/jrsteele09/campus-portal/session"
	"github.com/jrsteele09/campus-portal/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultRetryAttempts = 2
	DefaultRetryBackoff  = 500 * time.Millisecond
	DefaultMaxStaleness  = 30 * time.Minute
	DefaultRecheckEvery  = 5 * time.Second
)

// UserFetcher resolves the profile behind a credential pair.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID, accessToken string) (*session.User, error)
}

// Authenticator exchanges a user id and password for an access token.
type Authenticator interface {
	Login(ctx context.Context, userID, password string) (string, error)
}

// Deps holds the collaborators of a Bootstrapper.
type Deps struct {
	Credentials credentials.Repo // Persisted credential pair
	Users       UserFetcher      // Profile lookup against the REST API
	Store       *session.Store   // Shared session state
	Notifier    notice.Notifier  // Receives user-facing notices
}

// Bootstrapper validates persisted credentials and establishes or clears the session.
type Bootstrapper struct {
	deps          Deps
	authenticator Authenticator
	retryAttempts int
	retryBackoff  time.Duration
	maxStaleness  time.Duration
	limiter       *rate.Limiter
	nowFunc       func() time.Time

	mu       sync.Mutex // serializes checks so results land in call order
	degraded bool       // a ServiceDegraded notice is outstanding
}

type BootstrapperOption func(*Bootstrapper)

func WithNowFunc(now func() time.Time) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.nowFunc = now
	}
}

// WithRetry sets how many times a transient profile failure is retried and
// the initial backoff, which doubles per attempt.
func WithRetry(attempts int, backoff time.Duration) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.retryAttempts = attempts
		b.retryBackoff = backoff
	}
}

// WithMaxStaleness sets how long a session may go unverified before a
// transient failure produces a ServiceDegraded notice.
func WithMaxStaleness(d time.Duration) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.maxStaleness = d
	}
}

// WithRecheckLimit bounds how often Refresh actually runs a check.
func WithRecheckLimit(every time.Duration, burst int) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

func WithAuthenticator(a Authenticator) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.authenticator = a
	}
}

func NewBootstrapper(deps Deps, options ...BootstrapperOption) *Bootstrapper {
	b := &Bootstrapper{
		deps:          deps,
		retryAttempts: DefaultRetryAttempts,
		retryBackoff:  DefaultRetryBackoff,
		maxStaleness:  DefaultMaxStaleness,
	}

	for _, opt := range options {
		opt(b)
	}

	if b.deps.Notifier == nil {
		b.deps.Notifier = notice.Discard
	}
	if b.limiter == nil {
		b.limiter = rate.NewLimiter(rate.Every(DefaultRecheckEvery), 1)
	}
	if b.retryAttempts < 0 {
		b.retryAttempts = 0
	}
	if b.nowFunc == nil {
		b.nowFunc = time.Now
	}
	return b
}

// CheckLoginStatus reconciles the persisted pair with the session store.
//
// A missing pair signs the session out. An expired or undecodable token,
// or a profile request rejected with 401/403, clears the pair, signs out
// and raises a SessionExpired notice. A transient failure leaves the
// session as it was. Loading is false when the call returns, on every path.
// The returned error describes the failure for logging; the store is
// already consistent.
func (b *Bootstrapper) CheckLoginStatus(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	store := b.deps.Store
	store.SetLoading(true)
	defer store.SetLoading(false)

	pair, err := b.deps.Credentials.Load(ctx)
	if apperrors.Is(err, credentials.ErrNotFound) {
		store.SetUser(nil)
		return nil
	}
	if err != nil {
		log.Err(err).Msg("Unable to read persisted credentials")
		return apperrors.Wrapf(err, "load credentials")
	}

	now := b.nowFunc()
	payload := token.Decode(pair.AccessToken)
	if payload == nil {
		b.expire(ctx, now, "malformed token")
		return apperrors.ErrMalformedToken
	}
	if token.IsExpired(payload, now) {
		b.expire(ctx, now, "token expired")
		return apperrors.ErrTokenExpired
	}

	user, err := b.fetchUser(ctx, pair)
	switch {
	case err == nil:
		b.degraded = false
		store.Establish(*user, b.nowFunc())
		log.Debug().Str("user_id", user.ID).Str("role", user.Role).Msg("Session verified")
		return nil
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		b.expire(ctx, now, "profile request rejected")
		return err
	default:
		b.noteDegraded(now)
		log.Warn().Err(err).Msg("Profile lookup failed, keeping current session")
		return err
	}
}

// Refresh runs CheckLoginStatus unless a check ran too recently, in which
// case it returns ErrThrottled without touching the store.
func (b *Bootstrapper) Refresh(ctx context.Context) error {
	if !b.limiter.Allow() {
		return apperrors.ErrThrottled
	}
	return b.CheckLoginStatus(ctx)
}

// Login signs in against the REST API, persists the returned token with the
// user id, then verifies it through CheckLoginStatus.
func (b *Bootstrapper) Login(ctx context.Context, userID, password string, remember bool) error {
	if b.authenticator == nil {
		return apperrors.Wrapf(apperrors.ErrUnsupported, "login")
	}
	if userID == "" || password == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "user id and password are required")
	}

	accessToken, err := b.authenticator.Login(ctx, userID, password)
	if err != nil {
		return apperrors.Wrapf(err, "login %s", userID)
	}
	if token.Decode(accessToken) == nil {
		return apperrors.Wrapf(apperrors.ErrMalformedToken, "login %s", userID)
	}

	pair := credentials.Pair{AccessToken: accessToken, UserID: userID, Remember: remember}
	if err := b.deps.Credentials.Save(ctx, pair); err != nil {
		return apperrors.Wrapf(err, "persist credentials")
	}
	return b.CheckLoginStatus(ctx)
}

// Listen subscribes to sig until ctx is done. Each raise logs the session out
// and, if a session was active, raises a SessionExpired notice.
func (b *Bootstrapper) Listen(ctx context.Context, sig *Signal) {
	cancel := sig.Subscribe(func(reason string) {
		wasLoggedIn := b.deps.Store.Snapshot().LoggedIn
		if err := b.deps.Store.Logout(ctx); err != nil {
			log.Err(err).Msg("Forced logout could not clear credentials")
		}
		log.Info().Str("reason", reason).Msg("Forced logout")
		if wasLoggedIn {
			b.deps.Notifier.Notify(notice.New(notice.SessionExpired, b.nowFunc()))
		}
	})

	go func() {
		<-ctx.Done()
		cancel()
	}()
}

func (b *Bootstrapper) expire(ctx context.Context, now time.Time, reason string) {
	if err := b.deps.Store.Logout(ctx); err != nil {
		log.Err(err).Msg("Unable to clear credentials")
	}
	log.Info().Str("reason", reason).Msg("Session ended")
	b.deps.Notifier.Notify(notice.New(notice.SessionExpired, now))
}

// noteDegraded raises one ServiceDegraded notice per outage, and only when
// the session has gone unverified for longer than maxStaleness.
func (b *Bootstrapper) noteDegraded(now time.Time) {
	if b.degraded {
		return
	}
	verifiedAt := b.deps.Store.Snapshot().VerifiedAt
	if !verifiedAt.IsZero() && now.Sub(verifiedAt) <= b.maxStaleness {
		return
	}
	b.degraded = true
	b.deps.Notifier.Notify(notice.New(notice.ServiceDegraded, now))
}

func (b *Bootstrapper) fetchUser(ctx context.Context, pair credentials.Pair) (*session.User, error) {
	backoff := b.retryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		var user *session.User
		user, err = b.deps.Users.FetchUser(ctx, pair.UserID, pair.AccessToken)
		if err == nil && user == nil {
			err = apperrors.Wrapf(apperrors.ErrTransient, "empty profile for %s", pair.UserID)
		}
		if err == nil {
			return user, nil
		}
		if apperrors.Is(err, apperrors.ErrUnauthorized) || attempt >= b.retryAttempts {
			return nil, err
		}
		if waitErr := sleep(ctx, backoff); waitErr != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
