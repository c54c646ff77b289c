package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLedger(t *testing.T) (ports.Ledger, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLedger(client), s
}

func TestRedisLedger(t *testing.T) {
	runLedgerContract(t, func(t *testing.T) ports.Ledger {
		l, _ := newRedisLedger(t)
		return l
	})
}

func TestRedisLedger_IndexesFollowConsume(t *testing.T) {
	ctx := context.Background()
	l, s := newRedisLedger(t)

	_, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeResetPassword, time.Hour))
	require.NoError(t, err)

	members, err := s.SMembers("warden:ledger:owner:session:reset_password:user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, members)
	assert.True(t, s.Exists("warden:ledger:expiry"))

	require.NoError(t, l.Consume(ctx, "tok-1"))

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	assert.False(t, s.Exists("warden:ledger:token:tok-1"))
	assert.False(t, client.SIsMember(ctx, "warden:ledger:owner:session:reset_password:user-1", "tok-1").Val())
	assert.ErrorIs(t, client.ZScore(ctx, "warden:ledger:expiry", "tok-1").Err(), redis.Nil)
}

func TestRedisLedger_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	l, s := newRedisLedger(t)

	s.HSet("warden:ledger:token:bad", "owner", "user-1", "type", "session:renewal", "expires", "soon", "created", "0")

	_, err := l.FindValid(ctx, "bad", core.TokenTypeRenewal, "user-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestRedisLedger_ConnectionError(t *testing.T) {
	ctx := context.Background()
	l, s := newRedisLedger(t)
	s.Close()

	_, err := l.Record(ctx, newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour))
	assert.Error(t, err)
	assert.Error(t, l.Consume(ctx, "tok-1"))
}
