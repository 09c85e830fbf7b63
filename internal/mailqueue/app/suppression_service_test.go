package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpress/mailout/internal/mailqueue/domain"
	"github.com/openpress/mailout/internal/platform/cache"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, cache.NewRedisCache(rdb, time.Minute)
}

func TestSuppressionService_IsSuppressed(t *testing.T) {
	ctx := context.Background()

	t.Run("SecondLookupServedFromCache", func(t *testing.T) {
		_, c := newTestCache(t)
		repo := newMemSuppression()
		repo.entries["gone@example.com"] = "h1"
		svc := NewSuppressionService(repo, newMemLedger(), c, testLogger())

		suppressed, err := svc.IsSuppressed(ctx, "gone@example.com")
		require.NoError(t, err)
		assert.True(t, suppressed)

		suppressed, err = svc.IsSuppressed(ctx, "gone@example.com")
		require.NoError(t, err)
		assert.True(t, suppressed)
		assert.Equal(t, 1, repo.containsCalls)
	})

	t.Run("NegativeResultIsAlsoCached", func(t *testing.T) {
		_, c := newTestCache(t)
		repo := newMemSuppression()
		svc := NewSuppressionService(repo, newMemLedger(), c, testLogger())

		for i := 0; i < 3; i++ {
			suppressed, err := svc.IsSuppressed(ctx, "here@example.com")
			require.NoError(t, err)
			assert.False(t, suppressed)
		}
		assert.Equal(t, 1, repo.containsCalls)
	})

	t.Run("NoCacheConfigured", func(t *testing.T) {
		repo := newMemSuppression()
		svc := NewSuppressionService(repo, newMemLedger(), nil, testLogger())

		suppressed, err := svc.IsSuppressed(ctx, "x@example.com")
		require.NoError(t, err)
		assert.False(t, suppressed)
	})
}

func TestSuppressionService_Suppress(t *testing.T) {
	ctx := context.Background()

	seedLedger := func(t *testing.T) *memLedger {
		t.Helper()
		ledger := newMemLedger()
		require.NoError(t, ledger.Record(ctx, &domain.DeliveryRecord{
			MessageHash: "h1", ToAddress: "gone@example.com", Kind: domain.KindShare, SentAt: time.Now().UTC(),
		}))
		return ledger
	}

	t.Run("ResolvesHashAndAdds", func(t *testing.T) {
		_, c := newTestCache(t)
		repo := newMemSuppression()
		svc := NewSuppressionService(repo, seedLedger(t), c, testLogger())

		address, added, err := svc.Suppress(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "gone@example.com", address)
		assert.True(t, added)
		assert.Equal(t, "h1", repo.entries["gone@example.com"])
	})

	t.Run("SecondSuppressIsIdempotent", func(t *testing.T) {
		_, c := newTestCache(t)
		svc := NewSuppressionService(newMemSuppression(), seedLedger(t), c, testLogger())

		_, added, err := svc.Suppress(ctx, "h1")
		require.NoError(t, err)
		assert.True(t, added)

		address, added, err := svc.Suppress(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "gone@example.com", address)
		assert.False(t, added)
	})

	t.Run("UnknownHashIsSilentNoOp", func(t *testing.T) {
		_, c := newTestCache(t)
		repo := newMemSuppression()
		svc := NewSuppressionService(repo, newMemLedger(), c, testLogger())

		address, added, err := svc.Suppress(ctx, "never-issued")
		assert.NoError(t, err)
		assert.Equal(t, "", address)
		assert.False(t, added)
		assert.Empty(t, repo.entries)
	})

	t.Run("InvalidatesCachedLookup", func(t *testing.T) {
		mr, c := newTestCache(t)
		repo := newMemSuppression()
		svc := NewSuppressionService(repo, seedLedger(t), c, testLogger())

		// Prime the cache with the pre-suppression answer.
		suppressed, err := svc.IsSuppressed(ctx, "gone@example.com")
		require.NoError(t, err)
		assert.False(t, suppressed)
		assert.True(t, mr.Exists("optout:gone@example.com"))

		_, _, err = svc.Suppress(ctx, "h1")
		require.NoError(t, err)
		assert.False(t, mr.Exists("optout:gone@example.com"))

		suppressed, err = svc.IsSuppressed(ctx, "gone@example.com")
		require.NoError(t, err)
		assert.True(t, suppressed)
	})
}

func TestSuppressionService_Unsuppress(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesResolvedAddress", func(t *testing.T) {
		_, c := newTestCache(t)
		ledger := newMemLedger()
		require.NoError(t, ledger.Record(ctx, &domain.DeliveryRecord{
			MessageHash: "h1", ToAddress: "back@example.com", SentAt: time.Now().UTC(),
		}))
		repo := newMemSuppression()
		repo.entries["back@example.com"] = "h1"
		svc := NewSuppressionService(repo, ledger, c, testLogger())

		address, removed, err := svc.Unsuppress(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "back@example.com", address)
		assert.True(t, removed)
		assert.Empty(t, repo.entries)

		_, removed, err = svc.Unsuppress(ctx, "h1")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("UnknownHashIsSilentNoOp", func(t *testing.T) {
		_, c := newTestCache(t)
		svc := NewSuppressionService(newMemSuppression(), newMemLedger(), c, testLogger())

		address, removed, err := svc.Unsuppress(ctx, "never-issued")
		assert.NoError(t, err)
		assert.Equal(t, "", address)
		assert.False(t, removed)
	})
}
