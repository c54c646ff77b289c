package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Key layout, all under the store prefix:
//
//	token:<token>         hash with the entry fields
//	owner:<type>:<owner>  set of tokens, used by PurgeByOwnerAndType
//	expiry                sorted set of tokens scored by expiry (unix ms)
//
// The type comes first: types are a fixed set and none is a prefix of
// another, so owner IDs containing ':' cannot make two owner/type pairs
// share a key.
//
// Every mutation runs as a Lua script so the hash and both indexes move
// together. Scripts derive token and owner keys from the prefix, so the
// ledger needs a single-node client.
var (
	recordScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "owner", ARGV[2], "type", ARGV[3], "expires", ARGV[4], "created", ARGV[5], "revoked", "0")
redis.call("SADD", KEYS[2], ARGV[6])
redis.call("ZADD", KEYS[3], ARGV[4], ARGV[6])
return 1
`)

	revokeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "revoked", "1")
end
return 1
`)

	consumeScript = redis.NewScript(`
local fields = redis.call("HMGET", KEYS[1], "owner", "type", "revoked")
local owner, typ, revoked = fields[1], fields[2], fields[3]
if revoked == "1" then
  return 0
end
if redis.call("DEL", KEYS[1]) == 0 then
  return 0
end
if owner and typ then
  redis.call("SREM", ARGV[1] .. "owner:" .. typ .. ":" .. owner, ARGV[2])
end
redis.call("ZREM", KEYS[2], ARGV[2])
return 1
`)

	purgeOwnerScript = redis.NewScript(`
local tokens = redis.call("SMEMBERS", KEYS[1])
for _, token in ipairs(tokens) do
  redis.call("DEL", ARGV[1] .. "token:" .. token)
  redis.call("ZREM", KEYS[2], token)
end
redis.call("DEL", KEYS[1])
return #tokens
`)

	purgeExpiredScript = redis.NewScript(`
local tokens = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
for _, token in ipairs(tokens) do
  local key = ARGV[1] .. "token:" .. token
  local owner = redis.call("HGET", key, "owner")
  local typ = redis.call("HGET", key, "type")
  redis.call("DEL", key)
  if owner and typ then
    redis.call("SREM", ARGV[1] .. "owner:" .. typ .. ":" .. owner, token)
  end
  redis.call("ZREM", KEYS[1], token)
end
return #tokens
`)
)

// RedisLedger is a Redis implementation of the Ledger interface
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisLedger creates a new Redis ledger
func NewRedisLedger(client *redis.Client) ports.Ledger {
	return &RedisLedger{
		client: client,
		prefix: "warden:ledger:",
	}
}

// Record inserts the entry unless the token is already present
func (l *RedisLedger) Record(ctx context.Context, entry *core.LedgerEntry) (string, error) {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	res, err := recordScript.Run(ctx, l.client,
		[]string{l.tokenKey(entry.Token), l.ownerKey(entry.OwnerID, entry.Type), l.expiryKey()},
		id,
		entry.OwnerID,
		string(entry.Type),
		entry.ExpiresAt.UnixMilli(),
		entry.CreatedAt.UnixMilli(),
		entry.Token,
	).Int()
	if err != nil {
		return "", oops.Code("LEDGER_RECORD_FAILED").
			With("operation", "record ledger entry").
			With("owner_id", entry.OwnerID).
			Wrap(err)
	}
	if res == 0 {
		return "", core.ErrConflict
	}

	return id, nil
}

// FindValid loads the entry hash and matches it against type and owner
func (l *RedisLedger) FindValid(ctx context.Context, token string, tokenType core.TokenType, ownerID string) (*core.LedgerEntry, error) {
	fields, err := l.client.HGetAll(ctx, l.tokenKey(token)).Result()
	if err != nil {
		return nil, oops.Code("LEDGER_FIND_FAILED").
			With("operation", "load ledger entry").
			Wrap(err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}

	entry, err := entryFromHash(token, fields)
	if err != nil {
		return nil, oops.Code("LEDGER_CORRUPT_ENTRY").Wrap(err)
	}
	if entry.Type != tokenType || entry.OwnerID != ownerID || entry.Revoked {
		return nil, core.ErrNotFound
	}

	return entry, nil
}

// Revoke flags the entry as revoked
func (l *RedisLedger) Revoke(ctx context.Context, token string) error {
	if err := revokeScript.Run(ctx, l.client, []string{l.tokenKey(token)}).Err(); err != nil {
		return oops.Code("LEDGER_REVOKE_FAILED").
			With("operation", "revoke ledger entry").
			Wrap(err)
	}
	return nil
}

// Consume deletes a live entry; the DEL count decides who won a race.
// Revoked entries are left for the janitor.
func (l *RedisLedger) Consume(ctx context.Context, token string) error {
	res, err := consumeScript.Run(ctx, l.client,
		[]string{l.tokenKey(token), l.expiryKey()},
		l.prefix,
		token,
	).Int()
	if err != nil {
		return oops.Code("LEDGER_CONSUME_FAILED").
			With("operation", "consume ledger entry").
			Wrap(err)
	}
	if res == 0 {
		return core.ErrNotFound
	}
	return nil
}

// PurgeByOwnerAndType deletes every entry in the owner/type index
func (l *RedisLedger) PurgeByOwnerAndType(ctx context.Context, ownerID string, tokenType core.TokenType) error {
	err := purgeOwnerScript.Run(ctx, l.client,
		[]string{l.ownerKey(ownerID, tokenType), l.expiryKey()},
		l.prefix,
	).Err()
	if err != nil {
		return oops.Code("LEDGER_PURGE_FAILED").
			With("operation", "purge ledger entries").
			With("owner_id", ownerID).
			With("type", string(tokenType)).
			Wrap(err)
	}
	return nil
}

// PurgeExpired deletes entries whose expiry is at or before the given time
func (l *RedisLedger) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := purgeExpiredScript.Run(ctx, l.client,
		[]string{l.expiryKey()},
		l.prefix,
		before.UnixMilli(),
	).Int64()
	if err != nil {
		return 0, oops.Code("LEDGER_PURGE_EXPIRED_FAILED").
			With("operation", "purge expired ledger entries").
			Wrap(err)
	}
	return n, nil
}

func (l *RedisLedger) tokenKey(token string) string {
	return l.prefix + "token:" + token
}

func (l *RedisLedger) ownerKey(ownerID string, tokenType core.TokenType) string {
	return l.prefix + "owner:" + string(tokenType) + ":" + ownerID
}

func (l *RedisLedger) expiryKey() string {
	return l.prefix + "expiry"
}

func entryFromHash(token string, fields map[string]string) (*core.LedgerEntry, error) {
	expires, err := strconv.ParseInt(fields["expires"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expires: %w", err)
	}
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse created: %w", err)
	}

	return &core.LedgerEntry{
		ID:        fields["id"],
		Token:     token,
		Type:      core.TokenType(fields["type"]),
		OwnerID:   fields["owner"],
		ExpiresAt: time.UnixMilli(expires).UTC(),
		Revoked:   fields["revoked"] == "1",
		CreatedAt: time.UnixMilli(created).UTC(),
	}, nil
}
