package credentials_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/campus-portal/credentials"
	"github.com/jrsteele09/campus-portal/credentials/repofake"
	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testPair = credentials.Pair{
	AccessToken: "header.payload.signature",
	UserID:      "2021001",
	Remember:    true,
}

// requireRepoContract checks the behaviour every backend shares.
func requireRepoContract(t *testing.T, repo credentials.Repo) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Load(ctx)
	require.ErrorIs(t, err, credentials.ErrNotFound)

	require.ErrorIs(t, repo.Save(ctx, credentials.Pair{AccessToken: "only-token"}), apperrors.ErrIncompletePair)
	require.ErrorIs(t, repo.Save(ctx, credentials.Pair{UserID: "only-id"}), apperrors.ErrIncompletePair)
	_, err = repo.Load(ctx)
	require.ErrorIs(t, err, credentials.ErrNotFound)

	require.NoError(t, repo.Save(ctx, testPair))
	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, testPair, loaded)

	replacement := credentials.Pair{AccessToken: "a.b.c", UserID: "42"}
	require.NoError(t, repo.Save(ctx, replacement))
	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, replacement, loaded)

	require.NoError(t, repo.Clear(ctx))
	_, err = repo.Load(ctx)
	require.ErrorIs(t, err, credentials.ErrNotFound)

	require.NoError(t, repo.Clear(ctx), "clearing an empty store is not an error")
}

func TestFakeRepoContract(t *testing.T) {
	requireRepoContract(t, repofake.NewFakeCredentialsRepo())
}

func TestFileRepoContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", credentials.DefaultFileName)
	requireRepoContract(t, credentials.NewFileRepo(path))
}

func TestFileRepoPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), credentials.DefaultFileName)
	repo := credentials.NewFileRepo(path)
	require.NoError(t, repo.Save(context.Background(), testPair))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestFileRepoHalfPairIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), credentials.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"a.b.c"}`), 0o600))

	_, err := credentials.NewFileRepo(path).Load(context.Background())
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestFileRepoEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), credentials.DefaultFileName)
	ctx := context.Background()

	sealed := credentials.NewFileRepo(path, credentials.WithPassphrase("correct horse"))
	requireRepoContract(t, sealed)

	require.NoError(t, sealed.Save(ctx, testPair))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), testPair.AccessToken)

	_, err = credentials.NewFileRepo(path).Load(ctx)
	require.ErrorIs(t, err, apperrors.ErrCredentialsSealed)

	_, err = credentials.NewFileRepo(path, credentials.WithPassphrase("wrong")).Load(ctx)
	require.Error(t, err)

	loaded, err := credentials.NewFileRepo(path, credentials.WithPassphrase("correct horse")).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, testPair, loaded)
}

func TestFileRepoReadsPlaintextWithPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), credentials.DefaultFileName)
	ctx := context.Background()
	require.NoError(t, credentials.NewFileRepo(path).Save(ctx, testPair))

	loaded, err := credentials.NewFileRepo(path, credentials.WithPassphrase("new")).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, testPair, loaded)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisRepoContract(t *testing.T) {
	_, client := newTestRedis(t)
	requireRepoContract(t, credentials.NewRedisRepo(client, ""))
}

func TestRedisRepoStoresOneHash(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := credentials.NewRedisRepo(client, "portal:test")
	require.NoError(t, repo.Save(context.Background(), testPair))

	require.Equal(t, testPair.AccessToken, mr.HGet("portal:test", credentials.KeyAccessToken))
	require.Equal(t, testPair.UserID, mr.HGet("portal:test", credentials.KeyUserID))

	mr.HDel("portal:test", credentials.KeyUserID)
	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestRedisRepoUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := credentials.NewRedisRepo(client, "")
	mr.Close()

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, credentials.ErrNotFound)
}

func TestSQLiteRepoContract(t *testing.T) {
	repo, err := credentials.OpenSQLiteRepo(context.Background(), filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	requireRepoContract(t, repo)
}

func TestSQLiteRepoSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "portal.db")

	repo, err := credentials.OpenSQLiteRepo(ctx, path)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, testPair))
	require.NoError(t, repo.Close())

	reopened, err := credentials.OpenSQLiteRepo(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, testPair, loaded)
}

func TestWatchReportsSaveAndClear(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), credentials.DefaultFileName)
	changes := make(chan struct{}, 16)
	require.NoError(t, credentials.Watch(ctx, path, func() { changes <- struct{}{} }))

	repo := credentials.NewFileRepo(path)
	require.NoError(t, repo.Save(ctx, testPair))
	requireChange(t, changes)

	drain(changes)
	require.NoError(t, repo.Clear(ctx))
	requireChange(t, changes)
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	changes := make(chan struct{}, 16)
	require.NoError(t, credentials.Watch(ctx, filepath.Join(dir, credentials.DefaultFileName), func() { changes <- struct{}{} }))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))
	select {
	case <-changes:
		t.Fatal("unexpected change notification")
	case <-time.After(200 * time.Millisecond):
	}
}

func requireChange(t *testing.T, changes <-chan struct{}) {
	t.Helper()
	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func drain(changes <-chan struct{}) {
	for {
		select {
		case <-changes:
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}
