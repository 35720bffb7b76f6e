// Package monitor warns before the session token expires and ends the
// session when it does.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/campus-portal/credentials"
	"github.com/jrsteele09/campus-portal/internal/clock"
	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
	"github.com/jrsteele09/campus-portal/notice"
	"github.com/jrsteele09/campus-portal/session"
	"github.com/jrsteele09/campus-portal/token"
	"github.com/rs/zerolog/log"
)

const (
	DefaultWarningMinutes = 5
	DefaultCheckInterval  = 30 * time.Second
)

type Config struct {
	WarningMinutes int           // Lead time of the expiring-soon notice
	CheckInterval  time.Duration // Period of the recurring validity check
	AutoLogout     bool          // End the session when the token expires
}

func DefaultConfig() Config {
	return Config{
		WarningMinutes: DefaultWarningMinutes,
		CheckInterval:  DefaultCheckInterval,
		AutoLogout:     true,
	}
}

// Deps holds the collaborators of a Monitor.
type Deps struct {
	Credentials credentials.Repo // Source of the persisted token
	Store       *session.Store   // Logged out on expiry
	Notifier    notice.Notifier  // Receives expiring-soon and expired notices
	Clock       clock.Clock      // Defaults to clock.Real
	OnExpired   func()           // Called after the expiry path runs, optional
}

// Status is a point-in-time view of the monitor.
type Status struct {
	State        State
	Registration string
	ExpiresAt    time.Time
}

// Monitor schedules the warning, the expiry and the recurring check for the
// currently persisted token. Re-arming always tears the previous timers down
// first; every registration carries a generation and callbacks from an older
// generation do nothing.
type Monitor struct {
	cfg  Config
	deps Deps

	mu           sync.Mutex
	state        State
	token        string
	payload      *token.Payload
	registration string
	generation   uint64
	warnTimer    clock.Timer
	expiryTimer  clock.Timer
	checkTimer   clock.Timer
}

func New(cfg Config, deps Deps) *Monitor {
	if cfg.WarningMinutes < 0 {
		cfg.WarningMinutes = 0
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if deps.Notifier == nil {
		deps.Notifier = notice.Discard
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real
	}
	return &Monitor{cfg: cfg, deps: deps}
}

// Start arms the monitor from the persisted token.
func (m *Monitor) Start(ctx context.Context) error {
	accessToken, err := m.persistedToken(ctx)
	if err != nil {
		return err
	}
	m.Arm(accessToken)
	return nil
}

// Sync re-arms when the persisted token differs from the armed one and tears
// down when no token is persisted. An unchanged token keeps its timers.
func (m *Monitor) Sync(ctx context.Context) error {
	accessToken, err := m.persistedToken(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	next, _ := m.armIfChangedLocked(accessToken)
	m.mu.Unlock()
	m.safely(next)
	return nil
}

// Check re-derives validity of the persisted token immediately: it expires
// the session if the token is no longer valid and emits the warning if the
// token is inside the warning window. It runs on the recurring schedule and
// whenever the portal regains attention after a possible clock jump.
func (m *Monitor) Check(ctx context.Context) error {
	accessToken, err := m.persistedToken(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	next, rearmed := m.armIfChangedLocked(accessToken)
	gen := m.generation
	m.mu.Unlock()

	if rearmed {
		m.safely(next)
		return nil
	}
	m.safely(func() { m.evaluate(gen) })
	return nil
}

// Arm tears down the current registration and arms accessToken. An empty
// token leaves the monitor idle. A token that cannot be decoded or has
// already expired goes straight to the expiry path.
func (m *Monitor) Arm(accessToken string) {
	m.mu.Lock()
	next := m.armLocked(accessToken)
	m.mu.Unlock()
	m.safely(next)
}

// armIfChangedLocked compares and re-arms in one critical section so that
// concurrent callers observing the same new token arm it only once.
func (m *Monitor) armIfChangedLocked(accessToken string) (func(), bool) {
	if accessToken == m.token {
		return nil, false
	}
	return m.armLocked(accessToken), true
}

// armLocked installs a registration for accessToken and returns the work
// that must run once the lock is released: an immediate warning or expiry.
func (m *Monitor) armLocked(accessToken string) func() {
	m.teardownLocked()
	if accessToken == "" {
		return nil
	}

	gen := m.generation
	m.token = accessToken
	m.registration = uuid.NewString()
	m.payload = token.Decode(accessToken)
	m.state = Armed

	now := m.deps.Clock.Now()
	if m.payload == nil || token.IsExpired(m.payload, now) {
		return func() { m.expire(gen) }
	}

	exp, _ := m.payload.Expiry()
	expiresAt := time.Unix(exp, 0)
	warnAt := expiresAt.Add(-m.warningWindow())

	if warnAt.After(now) {
		m.warnTimer = m.deps.Clock.AfterFunc(warnAt.Sub(now), m.callback(gen, m.warn))
	}
	m.expiryTimer = m.deps.Clock.AfterFunc(expiresAt.Sub(now), m.callback(gen, m.expire))
	m.scheduleCheckLocked(gen)

	log.Debug().
		Str("registration", m.registration).
		Time("expires_at", expiresAt).
		Msg("Expiration monitor armed")

	if !warnAt.After(now) {
		return func() { m.warn(gen) }
	}
	return nil
}

// Stop tears down every timer and returns the monitor to Idle.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{State: m.state, Registration: m.registration}
	if exp, ok := m.payload.Expiry(); ok {
		st.ExpiresAt = time.Unix(exp, 0)
	}
	return st
}

func (m *Monitor) warningWindow() time.Duration {
	return time.Duration(m.cfg.WarningMinutes) * time.Minute
}

// persistedToken returns the stored access token, or "" when none is stored.
func (m *Monitor) persistedToken(ctx context.Context) (string, error) {
	pair, err := m.deps.Credentials.Load(ctx)
	if apperrors.Is(err, credentials.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		log.Err(err).Msg("Expiration monitor could not read credentials")
		return "", apperrors.Wrapf(err, "load credentials")
	}
	return pair.AccessToken, nil
}

func (m *Monitor) teardownLocked() {
	m.stopTimersLocked()
	m.generation++
	m.state = Idle
	m.token = ""
	m.payload = nil
	m.registration = ""
}

func (m *Monitor) stopTimersLocked() {
	for _, t := range []clock.Timer{m.warnTimer, m.expiryTimer, m.checkTimer} {
		if t != nil {
			t.Stop()
		}
	}
	m.warnTimer, m.expiryTimer, m.checkTimer = nil, nil, nil
}

func (m *Monitor) scheduleCheckLocked(gen uint64) {
	m.checkTimer = m.deps.Clock.AfterFunc(m.cfg.CheckInterval, m.callback(gen, m.recurringCheck))
}

func (m *Monitor) recurringCheck(gen uint64) {
	m.evaluate(gen)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation && m.state != Expired {
		m.scheduleCheckLocked(gen)
	}
}

func (m *Monitor) evaluate(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state == Idle || m.state == Expired {
		m.mu.Unlock()
		return
	}
	now := m.deps.Clock.Now()
	expired := token.IsExpired(m.payload, now)
	soon := token.IsExpiringSoon(m.payload, now, m.warningWindow())
	m.mu.Unlock()

	switch {
	case expired:
		m.expire(gen)
	case soon:
		m.warn(gen)
	}
}

// warn emits the expiring-soon notice once per registration.
func (m *Monitor) warn(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != Armed {
		m.mu.Unlock()
		return
	}
	m.state = Warned
	now := m.deps.Clock.Now()
	remaining := time.Duration(token.RemainingSeconds(m.payload, now)) * time.Second
	registration := m.registration
	m.mu.Unlock()

	log.Info().Str("registration", registration).Dur("remaining", remaining).Msg("Session expiring soon")
	m.deps.Notifier.Notify(notice.Expiring(remaining, now))
}

// expire runs the expiry path once per registration.
func (m *Monitor) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state == Idle || m.state == Expired {
		m.mu.Unlock()
		return
	}
	m.state = Expired
	m.stopTimersLocked()
	now := m.deps.Clock.Now()
	registration := m.registration
	m.mu.Unlock()

	log.Info().Str("registration", registration).Msg("Session token expired")
	if m.cfg.AutoLogout && m.deps.Store != nil {
		if err := m.deps.Store.Logout(context.Background()); err != nil {
			log.Err(err).Msg("Logout after expiry could not clear credentials")
		}
	}
	m.deps.Notifier.Notify(notice.New(notice.SessionExpired, now))
	if m.deps.OnExpired != nil {
		m.deps.OnExpired()
	}
}

// callback binds fn to a generation for use as a timer callback.
func (m *Monitor) callback(gen uint64, fn func(gen uint64)) func() {
	return func() {
		m.safely(func() { fn(gen) })
	}
}

// safely runs fn and keeps a panic in a notifier or the expiry hook from
// escaping to the caller or taking a timer goroutine down.
func (m *Monitor) safely(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Expiration monitor callback panicked")
		}
	}()
	fn()
}
