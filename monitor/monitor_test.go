package monitor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/campus-portal/credentials"
	"github.com/jrsteele09/campus-portal/credentials/repofake"
	"github.com/jrsteele09/campus-portal/internal/clocktest"
	"github.com/jrsteele09/campus-portal/internal/tokentest"
	"github.com/jrsteele09/campus-portal/monitor"
	"github.com/jrsteele09/campus-portal/notice"
	"github.com/jrsteele09/campus-portal/session"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testFixture struct {
	clock   *clocktest.Clock
	creds   *repofake.FakeCredentialsRepo
	store   *session.Store
	notices *notice.Queue
	expired int
	monitor *monitor.Monitor
}

func setupTestFixture(t *testing.T, cfg monitor.Config) *testFixture {
	t.Helper()

	f := &testFixture{
		clock:   clocktest.New(testStart),
		creds:   repofake.NewFakeCredentialsRepo(),
		notices: notice.NewQueue(notice.DefaultQueueSize),
	}
	f.store = session.NewStore(f.creds)
	f.monitor = monitor.New(cfg, monitor.Deps{
		Credentials: f.creds,
		Store:       f.store,
		Notifier:    f.notices,
		Clock:       f.clock,
		OnExpired:   func() { f.expired++ },
	})
	t.Cleanup(f.monitor.Stop)
	return f
}

// signIn persists a token expiring after ttl and marks the store logged in.
func (f *testFixture) signIn(t *testing.T, ttl time.Duration) string {
	t.Helper()

	raw := tokentest.Mint(t, "7", f.clock.Now().Add(ttl))
	require.NoError(t, f.creds.Save(context.Background(), credentials.Pair{AccessToken: raw, UserID: "7"}))
	f.store.Establish(session.User{ID: "7", Role: session.RoleStudent}, f.clock.Now())
	return raw
}

func (f *testFixture) kinds() []notice.Kind {
	var kinds []notice.Kind
	for _, n := range f.notices.Drain() {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func TestShortLivedTokenWarnsImmediately(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	f.signIn(t, 120*time.Second)

	require.NoError(t, f.monitor.Start(context.Background()))

	notices := f.notices.Drain()
	require.Len(t, notices, 1)
	require.Equal(t, notice.ExpiringSoon, notices[0].Kind)
	require.Equal(t, 120*time.Second, notices[0].Remaining)
	require.Equal(t, monitor.Warned, f.monitor.State())

	f.clock.Advance(119 * time.Second)
	require.Empty(t, f.kinds(), "recurring checks must not repeat the warning")
	require.True(t, f.store.Snapshot().LoggedIn)

	f.clock.Advance(time.Second)
	require.Equal(t, []notice.Kind{notice.SessionExpired}, f.kinds())
	require.Equal(t, monitor.Expired, f.monitor.State())
	require.False(t, f.store.Snapshot().LoggedIn)
	require.Equal(t, 1, f.expired)

	_, err := f.creds.Load(context.Background())
	require.ErrorIs(t, err, credentials.ErrNotFound)
	require.Zero(t, f.clock.Pending(), "no timers survive expiry")
}

func TestHourLongTokenTimeline(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	f.signIn(t, time.Hour)

	require.NoError(t, f.monitor.Start(context.Background()))
	require.Equal(t, monitor.Armed, f.monitor.State())

	f.clock.Advance(3000 * time.Second)
	require.Empty(t, f.kinds())

	f.clock.Advance(299 * time.Second)
	require.Empty(t, f.kinds())

	f.clock.Advance(time.Second)
	notices := f.notices.Drain()
	require.Len(t, notices, 1)
	require.Equal(t, notice.ExpiringSoon, notices[0].Kind)
	require.Equal(t, 5*time.Minute, notices[0].Remaining)

	f.clock.Advance(299 * time.Second)
	require.Empty(t, f.kinds(), "warned exactly once")
	require.True(t, f.store.Snapshot().LoggedIn)

	f.clock.Advance(time.Second)
	require.Equal(t, []notice.Kind{notice.SessionExpired}, f.kinds())
	require.False(t, f.store.Snapshot().LoggedIn)
	require.Equal(t, 1, f.expired)

	f.clock.Advance(time.Hour)
	require.Empty(t, f.kinds())
}

func TestSequentialMountsWarnOnceForSecondToken(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())

	f.signIn(t, time.Hour)
	require.NoError(t, f.monitor.Start(context.Background()))
	f.monitor.Stop()
	require.Equal(t, monitor.Idle, f.monitor.State())
	require.Zero(t, f.clock.Pending())

	f.signIn(t, 2*time.Hour)
	require.NoError(t, f.monitor.Start(context.Background()))
	require.NotEmpty(t, f.monitor.Status().Registration)

	f.clock.Advance(2 * time.Hour)
	require.Equal(t, []notice.Kind{notice.ExpiringSoon, notice.SessionExpired}, f.kinds())
	require.Equal(t, 1, f.expired)
}

func TestRepeatedArmKeepsOneRegistration(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	raw := f.signIn(t, time.Hour)

	f.monitor.Arm(raw)
	f.monitor.Arm(raw)
	f.monitor.Arm(raw)
	require.Equal(t, 3, f.clock.Pending(), "one warning, one expiry and one check timer")

	f.clock.Advance(time.Hour)
	require.Equal(t, []notice.Kind{notice.ExpiringSoon, notice.SessionExpired}, f.kinds())
	require.Equal(t, 1, f.expired)
}

func TestRearmCancelsPreviousTimers(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())

	f.signIn(t, 10*time.Minute)
	require.NoError(t, f.monitor.Start(context.Background()))
	firstReg := f.monitor.Status().Registration

	f.signIn(t, 3*time.Hour)
	require.NoError(t, f.monitor.Sync(context.Background()))
	require.NotEqual(t, firstReg, f.monitor.Status().Registration)

	f.clock.Advance(time.Hour)
	require.Empty(t, f.kinds(), "timers of the replaced token must not fire")
	require.True(t, f.store.Snapshot().LoggedIn)
}

func TestSyncKeepsUnchangedToken(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	f.signIn(t, time.Hour)
	require.NoError(t, f.monitor.Start(context.Background()))
	reg := f.monitor.Status().Registration

	require.NoError(t, f.monitor.Sync(context.Background()))
	require.Equal(t, reg, f.monitor.Status().Registration)
	require.Equal(t, time.Unix(testStart.Add(time.Hour).Unix(), 0), f.monitor.Status().ExpiresAt)
}

func TestMalformedTokenExpiresImmediately(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	require.NoError(t, f.creds.Save(context.Background(), credentials.Pair{AccessToken: "a.b", UserID: "7"}))
	f.store.Establish(session.User{ID: "7"}, testStart)

	require.NoError(t, f.monitor.Start(context.Background()))

	require.Equal(t, []notice.Kind{notice.SessionExpired}, f.kinds())
	require.Equal(t, monitor.Expired, f.monitor.State())
	require.False(t, f.store.Snapshot().LoggedIn)
	require.Zero(t, f.clock.Pending())
}

func TestCheckWithoutTokenIsQuiet(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())

	require.NoError(t, f.monitor.Start(context.Background()))
	require.NoError(t, f.monitor.Check(context.Background()))
	require.Equal(t, monitor.Idle, f.monitor.State())
	require.Empty(t, f.kinds())
	require.Zero(t, f.clock.Pending())

	f.signIn(t, time.Hour)
	require.NoError(t, f.monitor.Start(context.Background()))
	require.NoError(t, f.creds.Clear(context.Background()))
	require.NoError(t, f.monitor.Check(context.Background()))
	require.Equal(t, monitor.Idle, f.monitor.State())
	require.Zero(t, f.clock.Pending())
	require.Empty(t, f.kinds())
}

func TestCheckCatchesUpAfterClockJump(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	f.signIn(t, time.Hour)
	require.NoError(t, f.monitor.Start(context.Background()))

	// The host slept through the warning and the expiry.
	f.clock.Set(testStart.Add(2 * time.Hour))
	require.NoError(t, f.monitor.Check(context.Background()))

	require.Equal(t, []notice.Kind{notice.SessionExpired}, f.kinds())
	require.False(t, f.store.Snapshot().LoggedIn)

	f.clock.Advance(0)
	require.Empty(t, f.kinds(), "overdue timers of the expired registration stay quiet")
	require.Equal(t, 1, f.expired)
}

func TestCheckWarnsInsideWindow(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	f.signIn(t, time.Hour)
	require.NoError(t, f.monitor.Start(context.Background()))

	f.clock.Set(testStart.Add(57 * time.Minute))
	require.NoError(t, f.monitor.Check(context.Background()))
	require.Equal(t, []notice.Kind{notice.ExpiringSoon}, f.kinds())
	require.Equal(t, monitor.Warned, f.monitor.State())

	require.NoError(t, f.monitor.Check(context.Background()))
	f.clock.Advance(0)
	require.Empty(t, f.kinds())
}

func TestWithoutAutoLogoutKeepsSession(t *testing.T) {
	cfg := monitor.DefaultConfig()
	cfg.AutoLogout = false
	f := setupTestFixture(t, cfg)
	f.signIn(t, 10*time.Minute)
	require.NoError(t, f.monitor.Start(context.Background()))

	f.clock.Advance(10 * time.Minute)
	require.Equal(t, []notice.Kind{notice.ExpiringSoon, notice.SessionExpired}, f.kinds())
	require.True(t, f.store.Snapshot().LoggedIn)
	require.Equal(t, monitor.Expired, f.monitor.State())

	require.NoError(t, f.monitor.Check(context.Background()))
	require.Empty(t, f.kinds())
}

func TestPanickingHookDoesNotEscape(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	m := monitor.New(monitor.DefaultConfig(), monitor.Deps{
		Credentials: f.creds,
		Store:       f.store,
		Clock:       f.clock,
		OnExpired:   func() { panic("boom") },
	})
	f.signIn(t, time.Minute)
	require.NoError(t, m.Start(context.Background()))

	require.NotPanics(t, func() { f.clock.Advance(time.Minute) })
	require.Equal(t, monitor.Expired, m.State())
}

func TestPanickingNotifierDoesNotEscapeDirectPaths(t *testing.T) {
	f := setupTestFixture(t, monitor.DefaultConfig())
	m := monitor.New(monitor.DefaultConfig(), monitor.Deps{
		Credentials: f.creds,
		Store:       f.store,
		Clock:       f.clock,
		Notifier:    notice.NotifierFunc(func(notice.Notice) { panic("boom") }),
	})
	t.Cleanup(m.Stop)

	require.NoError(t, f.creds.Save(context.Background(), credentials.Pair{AccessToken: "a.b", UserID: "7"}))
	require.NotPanics(t, func() { require.NoError(t, m.Start(context.Background())) })
	require.Equal(t, monitor.Expired, m.State())

	f.signIn(t, time.Hour)
	require.NoError(t, m.Sync(context.Background()))
	require.Equal(t, monitor.Armed, m.State())

	f.clock.Set(testStart.Add(2 * time.Hour))
	require.NotPanics(t, func() { require.NoError(t, m.Check(context.Background())) })
	require.Equal(t, monitor.Expired, m.State())
}

// barrierRepo holds every Load until all expected callers have read the
// credentials, so they all race on the same token.
type barrierRepo struct {
	credentials.Repo
	arrived sync.WaitGroup
}

func (r *barrierRepo) Load(ctx context.Context) (credentials.Pair, error) {
	pair, err := r.Repo.Load(ctx)
	r.arrived.Done()
	r.arrived.Wait()
	return pair, err
}

func TestConcurrentSyncAndCheckWarnOnce(t *testing.T) {
	const callers = 8

	f := setupTestFixture(t, monitor.DefaultConfig())
	repo := &barrierRepo{Repo: f.creds}
	repo.arrived.Add(callers)
	m := monitor.New(monitor.DefaultConfig(), monitor.Deps{
		Credentials: repo,
		Store:       f.store,
		Notifier:    f.notices,
		Clock:       f.clock,
	})
	t.Cleanup(m.Stop)

	f.signIn(t, 2*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = m.Sync(context.Background())
			} else {
				_ = m.Check(context.Background())
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, []notice.Kind{notice.ExpiringSoon}, f.kinds())
	require.Equal(t, monitor.Warned, m.State())
	require.Equal(t, 2, f.clock.Pending(), "one expiry and one check timer")
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", monitor.Idle.String())
	require.Equal(t, "armed", monitor.Armed.String())
	require.Equal(t, "warned", monitor.Warned.String())
	require.Equal(t, "expired", monitor.Expired.String())
}
