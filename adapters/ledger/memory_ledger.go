package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// MemoryLedger is an in-memory implementation of the Ledger interface.
// It is used by tests and single-instance development setups.
type MemoryLedger struct {
	entries map[string]core.LedgerEntry
	mu      sync.RWMutex
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger() ports.Ledger {
	return &MemoryLedger{
		entries: make(map[string]core.LedgerEntry),
	}
}

// Record stores a copy of the entry
func (l *MemoryLedger) Record(ctx context.Context, entry *core.LedgerEntry) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[entry.Token]; exists {
		return "", core.ErrConflict
	}

	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	l.entries[stored.Token] = stored

	return stored.ID, nil
}

// FindValid looks up a non-revoked entry matching all three keys
func (l *MemoryLedger) FindValid(ctx context.Context, token string, tokenType core.TokenType, ownerID string) (*core.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[token]
	if !ok || entry.Type != tokenType || entry.OwnerID != ownerID || entry.Revoked {
		return nil, core.ErrNotFound
	}

	return &entry, nil
}

// Revoke flags an entry as revoked
func (l *MemoryLedger) Revoke(ctx context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[token]; ok {
		entry.Revoked = true
		l.entries[token] = entry
	}

	return nil
}

// Consume deletes an entry if it is still present and not revoked
func (l *MemoryLedger) Consume(ctx context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[token]
	if !ok || entry.Revoked {
		return core.ErrNotFound
	}
	delete(l.entries, token)

	return nil
}

// PurgeByOwnerAndType deletes every entry of a type for an owner
func (l *MemoryLedger) PurgeByOwnerAndType(ctx context.Context, ownerID string, tokenType core.TokenType) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for token, entry := range l.entries {
		if entry.OwnerID == ownerID && entry.Type == tokenType {
			delete(l.entries, token)
		}
	}

	return nil
}

// PurgeExpired deletes entries expired at or before the given time
func (l *MemoryLedger) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for token, entry := range l.entries {
		if entry.Expired(before) {
			delete(l.entries, token)
			n++
		}
	}

	return n, nil
}

// Len returns the number of stored entries
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}
