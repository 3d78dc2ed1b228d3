package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
	"github.com/dropDatabas3/learnhabit/internal/store"
)

func newRepoForTest(t *testing.T) (*miniredis.Miniredis, *Repo) {
	t.Helper()
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return m, New(rdb, "lht", 24*time.Hour)
}

func sample(email, pin string) *repository.VerificationRecord {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &repository.VerificationRecord{
		ID: "id-" + pin, Email: email, PIN: pin,
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute), MaxAttempts: 3,
	}
}

func TestOpenThroughRegistry(t *testing.T) {
	m := miniredis.RunT(t)
	repo, err := store.Open(context.Background(), store.AdapterConfig{Name: "redis", RedisAddr: m.Addr(), Prefix: "lht"})
	require.NoError(t, err)
	defer repo.Close()
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestPutSetsKeyWithTTL(t *testing.T) {
	m, repo := newRepoForTest(t)
	ctx := context.Background()

	rec := sample("Ana@Example.com", "123456")
	require.NoError(t, repo.Put(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	assert.True(t, m.Exists("lht:evpin:ana@example.com"))
	assert.Equal(t, 24*time.Hour, m.TTL("lht:evpin:ana@example.com"))
}

func TestPutReplacesAndBumpsVersion(t *testing.T) {
	_, repo := newRepoForTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, sample("ana@example.com", "111111")))
	second := sample("ana@example.com", "222222")
	require.NoError(t, repo.Put(ctx, second))
	assert.Equal(t, int64(2), second.Version)

	got, err := repo.Get(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", got.PIN)
	assert.Equal(t, second.ExpiresAt, got.ExpiresAt.UTC())
}

func TestGetMissing(t *testing.T) {
	_, repo := newRepoForTest(t)
	_, err := repo.Get(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateAttemptsKeepsTTLAndGuardsVersion(t *testing.T) {
	m, repo := newRepoForTest(t)
	ctx := context.Background()

	rec := sample("ana@example.com", "123456")
	require.NoError(t, repo.Put(ctx, rec))
	m.FastForward(time.Hour)

	require.NoError(t, repo.UpdateAttempts(ctx, "ana@example.com", 1, true, rec.Version))
	assert.Equal(t, 23*time.Hour, m.TTL("lht:evpin:ana@example.com"))

	got, err := repo.Get(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, got.Verified)
	assert.Equal(t, int64(2), got.Version)

	assert.ErrorIs(t, repo.UpdateAttempts(ctx, "ana@example.com", 2, false, 1), repository.ErrVersionConflict)
	assert.ErrorIs(t, repo.UpdateAttempts(ctx, "nobody@example.com", 1, false, 1), repository.ErrNotFound)

	require.NoError(t, repo.UpdateAttempts(ctx, "ana@example.com", 2, false, 2))
	got, err = repo.Get(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, got.Verified)
}
