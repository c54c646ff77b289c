package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger(t *testing.T) {
	runLedgerContract(t, func(t *testing.T) ports.Ledger {
		return NewMemoryLedger()
	})
}

func TestMemoryLedger_StoresCopy(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	entry := newEntry("tok-1", "user-1", core.TokenTypeRenewal, time.Hour)
	_, err := l.Record(ctx, entry)
	require.NoError(t, err)

	entry.OwnerID = "someone-else"
	entry.Revoked = true

	got, err := l.FindValid(ctx, "tok-1", core.TokenTypeRenewal, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Empty(t, entry.ID, "caller entry must not be mutated")
	assert.Equal(t, 1, l.(*MemoryLedger).Len())
}
