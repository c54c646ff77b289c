package ports

import (
	"context"
	"time"

	"github.com/layer-3/warden/core"
)

// Ledger is the durable record of every non-access token that was issued.
// It is a passive store: it never expires rows on its own and callers check
// LedgerEntry.ExpiresAt themselves.
type Ledger interface {
	// Record inserts a new entry and returns its ID
	Record(ctx context.Context, entry *core.LedgerEntry) (string, error)

	// FindValid returns the non-revoked entry matching token, type and owner,
	// or core.ErrNotFound
	FindValid(ctx context.Context, token string, tokenType core.TokenType, ownerID string) (*core.LedgerEntry, error)

	// Revoke flags the entry as revoked. Absent tokens are ignored.
	Revoke(ctx context.Context, token string) error

	// Consume deletes the entry unless it is revoked. It returns
	// core.ErrNotFound when nothing was deleted, which is how the loser of a
	// concurrent consume, or of a race with Revoke, learns about it.
	Consume(ctx context.Context, token string) error

	// PurgeByOwnerAndType deletes every entry of tokenType owned by ownerID
	PurgeByOwnerAndType(ctx context.Context, ownerID string, tokenType core.TokenType) error

	// PurgeExpired deletes entries that expired at or before the given time
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
