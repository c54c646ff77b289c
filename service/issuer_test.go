package service

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/warden/adapters/ledger"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/clocktest"
	"github.com/layer-3/warden/metrics"
	"github.com/layer-3/warden/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T) (*Issuer, *ledger.MemoryLedger, ports.Tokenizer) {
	t.Helper()
	// Sub-second start: expiries must still be whole seconds.
	clock := clocktest.New(start.Add(400 * time.Millisecond))
	l := ledger.NewMemoryLedger().(*ledger.MemoryLedger)
	tok := tokenizer.NewJWTTokenizer([]byte("0123456789abcdef"), clock)
	return NewIssuer(tok, l, DefaultLifetimes(), clock), l, tok
}

func TestIssuer_AccessAndRenewal(t *testing.T) {
	ctx := context.Background()
	issuer, l, tok := newIssuer(t)

	set, err := issuer.IssueAccessAndRenewal(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, start.Add(15*time.Minute), set.Access.Expires)
	assert.Equal(t, start.Add(30*24*time.Hour), set.Renewal.Expires)

	access, err := tok.Verify(set.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, core.TokenTypeAccess, access.Type)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, set.Access.Expires, access.ExpiresAt)

	// Only the renewal credential is recorded.
	assert.Equal(t, 1, l.Len())
	entry, err := l.FindValid(ctx, set.Renewal.Token, core.TokenTypeRenewal, "user-1")
	require.NoError(t, err)
	assert.Equal(t, set.Renewal.Expires, entry.ExpiresAt)
	_, err = l.FindValid(ctx, set.Access.Token, core.TokenTypeAccess, "user-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestIssuer_SinglePurpose(t *testing.T) {
	ctx := context.Background()
	issuer, l, tok := newIssuer(t)

	reset, err := issuer.IssueSinglePurpose(ctx, "user-1", core.TokenTypeResetPassword)
	require.NoError(t, err)
	assert.Equal(t, start.Add(30*time.Minute), reset.Expires)

	verify, err := issuer.IssueSinglePurpose(ctx, "user-1", core.TokenTypeVerifyEmail)
	require.NoError(t, err)
	assert.Equal(t, start.Add(24*time.Hour), verify.Expires)

	claims, err := tok.Verify(verify.Token)
	require.NoError(t, err)
	assert.Equal(t, core.TokenTypeVerifyEmail, claims.Type)

	// A second reset token does not replace the first.
	_, err = issuer.IssueSinglePurpose(ctx, "user-1", core.TokenTypeResetPassword)
	require.NoError(t, err)
	_, err = l.FindValid(ctx, reset.Token, core.TokenTypeResetPassword, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, 3, l.Len())
}

func TestIssuer_RejectsSessionTypes(t *testing.T) {
	issuer, l, _ := newIssuer(t)

	for _, typ := range []core.TokenType{core.TokenTypeAccess, core.TokenTypeRenewal, "session:other"} {
		_, err := issuer.IssueSinglePurpose(context.Background(), "user-1", typ)
		assert.ErrorIs(t, err, core.ErrUnsupportedTokenType, typ)
	}
	assert.Equal(t, 0, l.Len())
}

func TestIssuer_SigningFault(t *testing.T) {
	clock := clocktest.New(start)
	l := ledger.NewMemoryLedger().(*ledger.MemoryLedger)
	issuer := NewIssuer(tokenizer.NewJWTTokenizer(nil, clock), l, DefaultLifetimes(), clock)

	_, err := issuer.IssueAccessAndRenewal(context.Background(), "user-1")
	assert.ErrorIs(t, err, core.ErrSigning)
	assert.Equal(t, 0, l.Len())
}

func TestIssuer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	issuer, _, _ := newIssuer(t)
	issuer.WithMetrics(m)

	_, err := issuer.IssueAccessAndRenewal(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = issuer.IssueSinglePurpose(context.Background(), "user-1", core.TokenTypeResetPassword)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "warden_tokens_issued_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
