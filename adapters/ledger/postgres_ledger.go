package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/layer-3/warden/adapters/postgres"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/samber/oops"
)

// PostgresLedger is a PostgreSQL implementation of the Ledger interface
type PostgresLedger struct {
	db postgres.DBTX
}

// NewPostgresLedger creates a ledger over a pool or transaction
func NewPostgresLedger(db postgres.DBTX) ports.Ledger {
	return &PostgresLedger{db: db}
}

// Record inserts a new entry
func (l *PostgresLedger) Record(ctx context.Context, entry *core.LedgerEntry) (string, error) {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := l.db.Exec(ctx, `
		INSERT INTO ledger_entries (id, token, owner_id, type, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`, id, entry.Token, entry.OwnerID, string(entry.Type), entry.ExpiresAt, entry.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return "", core.ErrConflict
		}
		return "", oops.Code("LEDGER_RECORD_FAILED").
			With("operation", "insert ledger entry").
			With("owner_id", entry.OwnerID).
			Wrap(err)
	}

	return id, nil
}

// FindValid returns the non-revoked entry matching token, type and owner
func (l *PostgresLedger) FindValid(ctx context.Context, token string, tokenType core.TokenType, ownerID string) (*core.LedgerEntry, error) {
	row := l.db.QueryRow(ctx, `
		SELECT id, token, owner_id, type, expires_at, revoked, created_at
		FROM ledger_entries
		WHERE token = $1 AND type = $2 AND owner_id = $3 AND revoked = FALSE
	`, token, string(tokenType), ownerID)

	var (
		entry   core.LedgerEntry
		typeStr string
	)
	err := row.Scan(&entry.ID, &entry.Token, &entry.OwnerID, &typeStr, &entry.ExpiresAt, &entry.Revoked, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("LEDGER_FIND_FAILED").
			With("operation", "select ledger entry").
			Wrap(err)
	}
	entry.Type = core.TokenType(typeStr)

	return &entry, nil
}

// Revoke flags the entry as revoked; a missing row is not an error
func (l *PostgresLedger) Revoke(ctx context.Context, token string) error {
	_, err := l.db.Exec(ctx, `
		UPDATE ledger_entries SET revoked = TRUE WHERE token = $1
	`, token)
	if err != nil {
		return oops.Code("LEDGER_REVOKE_FAILED").
			With("operation", "revoke ledger entry").
			Wrap(err)
	}
	return nil
}

// Consume deletes a live entry and reports core.ErrNotFound if nothing was
// deleted. Revoked rows are left for PurgeExpired.
func (l *PostgresLedger) Consume(ctx context.Context, token string) error {
	result, err := l.db.Exec(ctx, `
		DELETE FROM ledger_entries WHERE token = $1 AND revoked = FALSE
	`, token)
	if err != nil {
		return oops.Code("LEDGER_CONSUME_FAILED").
			With("operation", "delete ledger entry").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// PurgeByOwnerAndType removes all entries of a type for an owner
func (l *PostgresLedger) PurgeByOwnerAndType(ctx context.Context, ownerID string, tokenType core.TokenType) error {
	_, err := l.db.Exec(ctx, `
		DELETE FROM ledger_entries WHERE owner_id = $1 AND type = $2
	`, ownerID, string(tokenType))
	if err != nil {
		return oops.Code("LEDGER_PURGE_FAILED").
			With("operation", "delete ledger entries by owner").
			With("owner_id", ownerID).
			With("type", string(tokenType)).
			Wrap(err)
	}
	// No ErrNotFound when nothing matched; an owner without entries is fine.
	return nil
}

// PurgeExpired removes entries that expired at or before the given time
func (l *PostgresLedger) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := l.db.Exec(ctx, `
		DELETE FROM ledger_entries WHERE expires_at <= $1
	`, before)
	if err != nil {
		return 0, oops.Code("LEDGER_PURGE_EXPIRED_FAILED").
			With("operation", "delete expired ledger entries").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}
