package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow/pkg/adapters/redis"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunSnapshotStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := redis.NewFromClient(client, redis.WithTTL(24*time.Hour), redis.WithPrefix("test:"), redis.WithClock(clock))
	ctx := context.Background()

	snap := &domain.Snapshot{Session: *domain.NewSession("s-ttl", "c", now), SavedAt: now}
	require.NoError(t, store.Save(ctx, "s-ttl", snap))

	assert.Equal(t, 24*time.Hour, mr.TTL("test:s-ttl"))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-ttl"}, ids)

	// Past the window both the value and the index entry are gone.
	mr.FastForward(24*time.Hour + time.Second)
	now = now.Add(24*time.Hour + time.Second)

	_, err = store.Load(ctx, "s-ttl")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_NoTTLByDefault(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	snap := &domain.Snapshot{Session: *domain.NewSession("s-1", "c", time.Now())}
	require.NoError(t, store.Save(ctx, "s-1", snap))
	assert.Zero(t, mr.TTL("leadflow:snapshot:s-1"))
}
