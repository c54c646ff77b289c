package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEntry(token, owner string, typ core.TokenType, ttl time.Duration) *core.LedgerEntry {
	return &core.LedgerEntry{
		Token:     token,
		Type:      typ,
		OwnerID:   owner,
		ExpiresAt: epoch.Add(ttl),
		CreatedAt: epoch,
	}
}

// runLedgerContract exercises behaviour every Ledger backend must share.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) ports.Ledger) {
	ctx := context.Background()

	t.Run("record and find", func(t *testing.T) {
		l := newLedger(t)
		id, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour))
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		got, err := l.FindValid(ctx, "tok-1", core.TokenTypeRenewal, "user-1")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "tok-1", got.Token)
		assert.Equal(t, "user-1", got.OwnerID)
		assert.Equal(t, core.TokenTypeRenewal, got.Type)
		assert.True(t, epoch.Add(time.Hour).Equal(got.ExpiresAt))
		assert.False(t, got.Revoked)
	})

	t.Run("record keeps caller id", func(t *testing.T) {
		l := newLedger(t)
		entry := newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour)
		entry.ID = "fixed-id"
		id, err := l.Record(ctx, entry)
		require.NoError(t, err)
		assert.Equal(t, "fixed-id", id)
	})

	t.Run("duplicate token conflicts", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour))
		require.NoError(t, err)
		_, err = l.Record(ctx, newEntry("tok-1", "user-2", core.TokenTypeRenewal, time.Hour))
		assert.ErrorIs(t, err, core.ErrConflict)
	})

	t.Run("find requires all keys to match", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour))
		require.NoError(t, err)

		_, err = l.FindValid(ctx, "tok-1", core.TokenTypeResetPassword, "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = l.FindValid(ctx, "tok-1", core.TokenTypeRenewal, "user-2")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = l.FindValid(ctx, "tok-2", core.TokenTypeRenewal, "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("revoked entries are invisible", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour))
		require.NoError(t, err)

		require.NoError(t, l.Revoke(ctx, "tok-1"))
		_, err = l.FindValid(ctx, "tok-1", core.TokenTypeRenewal, "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)

		// revoking twice or revoking nothing is harmless
		assert.NoError(t, l.Revoke(ctx, "tok-1"))
		assert.NoError(t, l.Revoke(ctx, "missing"))
	})

	t.Run("consume is single use", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour))
		require.NoError(t, err)

		require.NoError(t, l.Consume(ctx, "tok-1"))
		assert.ErrorIs(t, l.Consume(ctx, "tok-1"), core.ErrNotFound)
		_, err = l.FindValid(ctx, "tok-1", core.TokenTypeRenewal, "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("consume refuses a revoked entry", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour))
		require.NoError(t, err)
		require.NoError(t, l.Revoke(ctx, "tok-1"))

		assert.ErrorIs(t, l.Consume(ctx, "tok-1"), core.ErrNotFound)

		// still there for the janitor
		n, err := l.PurgeExpired(ctx, epoch.Add(time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour))
		require.NoError(t, err)

		const workers = 16
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Consume(ctx, "tok-1") == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("purge by owner and type", func(t *testing.T) {
		l := newLedger(t)
		for _, e := range []*core.LedgerEntry{
			newEntry("reset-1", "user-1", core.TokenTypeResetPassword, time.Hour),
			newEntry("reset-2", "user-1", core.TokenTypeResetPassword, time.Hour),
			newEntry("renew-1", "user-1", core.TokenTypeRenewal, time.Hour),
			newEntry("reset-3", "user-2", core.TokenTypeResetPassword, time.Hour),
		} {
			_, err := l.Record(ctx, e)
			require.NoError(t, err)
		}

		require.NoError(t, l.PurgeByOwnerAndType(ctx, "user-1", core.TokenTypeResetPassword))

		_, err := l.FindValid(ctx, "reset-1", core.TokenTypeResetPassword, "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = l.FindValid(ctx, "reset-2", core.TokenTypeResetPassword, "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = l.FindValid(ctx, "renew-1", core.TokenTypeRenewal, "user-1")
		assert.NoError(t, err)
		_, err = l.FindValid(ctx, "reset-3", core.TokenTypeResetPassword, "user-2")
		assert.NoError(t, err)

		// purging an owner with nothing left succeeds
		assert.NoError(t, l.PurgeByOwnerAndType(ctx, "user-1", core.TokenTypeResetPassword))
	})

	t.Run("owner ids containing separators stay distinct", func(t *testing.T) {
		l := newLedger(t)
		for _, e := range []*core.LedgerEntry{
			newEntry("tok-a", "user-1", core.TokenTypeRenewal, time.Hour),
			newEntry("tok-b", "user-1:session:renewal", core.TokenTypeRenewal, time.Hour),
			newEntry("tok-c", "session:renewal:user-1", core.TokenTypeRenewal, time.Hour),
		} {
			_, err := l.Record(ctx, e)
			require.NoError(t, err)
		}

		require.NoError(t, l.PurgeByOwnerAndType(ctx, "user-1", core.TokenTypeRenewal))

		_, err := l.FindValid(ctx, "tok-a", core.TokenTypeRenewal, "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = l.FindValid(ctx, "tok-b", core.TokenTypeRenewal, "user-1:session:renewal")
		assert.NoError(t, err)
		_, err = l.FindValid(ctx, "tok-c", core.TokenTypeRenewal, "session:renewal:user-1")
		assert.NoError(t, err)
	})

	t.Run("purge expired", func(t *testing.T) {
		l := newLedger(t)
		for _, e := range []*core.LedgerEntry{
			newEntry("short", "user-1", core.TokenTypeVerifyEmail, time.Minute),
			newEntry("edge", "user-1", core.TokenTypeRenewal, 2*time.Minute),
			newEntry("long", "user-1", core.TokenTypeRenewal, time.Hour),
		} {
			_, err := l.Record(ctx, e)
			require.NoError(t, err)
		}

		n, err := l.PurgeExpired(ctx, epoch.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = l.FindValid(ctx, "long", core.TokenTypeRenewal, "user-1")
		assert.NoError(t, err)
		assert.ErrorIs(t, l.Consume(ctx, "edge"), core.ErrNotFound)

		n, err = l.PurgeExpired(ctx, epoch.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
