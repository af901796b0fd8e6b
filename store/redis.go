package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	scriptStatusNotFound       int64 = 0
	scriptStatusAlreadyRevoked int64 = 1
	scriptStatusRevoked        int64 = 2
	scriptStatusConflict       int64 = 3
	scriptStatusInserted       int64 = 4
)

const insertRecordScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 3
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1],
  "token", ARGV[2],
  "sub", ARGV[3],
  "exp", ARGV[4],
  "created", ARGV[5],
  "revoked", "0")
redis.call("PEXPIRE", KEYS[1], ARGV[6])
return 4
`

var insertRecordLua = redis.NewScript(insertRecordScript)

const revokeIfActiveScript = `
local revoked = redis.call("HGET", KEYS[1], "revoked")
if not revoked then
  return 0
end
if revoked == "1" then
  return 1
end
redis.call("HSET", KEYS[1], "revoked", "1", "revoked_at", ARGV[1])
return 2
`

var revokeIfActiveLua = redis.NewScript(revokeIfActiveScript)

const rotateScript = `
local revoked = redis.call("HGET", KEYS[1], "revoked")
if not revoked then
  return 0
end
if revoked == "1" then
  return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 3
end
redis.call("HSET", KEYS[1], "revoked", "1", "revoked_at", ARGV[1])
redis.call("HSET", KEYS[2],
  "id", ARGV[2],
  "token", ARGV[3],
  "sub", ARGV[4],
  "exp", ARGV[5],
  "created", ARGV[6],
  "revoked", "0")
redis.call("PEXPIRE", KEYS[2], ARGV[7])
return 2
`

var rotateLua = redis.NewScript(rotateScript)

// RedisStore keeps each record in a Redis hash keyed by the SHA-256 of the
// token. Keys expire retention after the token's own expiry, so a revoked
// record outlives every moment at which the token could still verify.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore creates a [RedisStore]. prefix namespaces the keys; retention
// is how long a record is kept past its expiry.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gt"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

func (s *RedisStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + ":rt:" + hex.EncodeToString(sum[:])
}

func (s *RedisStore) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(s.now()) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// Insert stores rec. Returns ErrConflict when the token is already present.
//
//	Performance: 1 Lua EVALSHA.
func (s *RedisStore) Insert(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	code, err := insertRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.key(rec.Token)},
		rec.ID,
		rec.Token,
		rec.Subject,
		rec.ExpiresAt.UnixMilli(),
		created.UnixMilli(),
		s.ttl(rec.ExpiresAt).Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	switch code {
	case scriptStatusInserted:
		return nil
	case scriptStatusConflict:
		return ErrConflict
	default:
		return fmt.Errorf("%w: unknown insert script status %d", ErrPersistence, code)
	}
}

// FindByToken loads the record for token or returns ErrNotFound.
//
//	Performance: 1 Redis HGETALL.
func (s *RedisStore) FindByToken(ctx context.Context, token string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec, err := decodeRecord(fields)
	if err != nil {
		return nil, errors.Join(ErrPersistence, ErrCorrupt, err)
	}
	if rec.Token != token {
		return nil, errors.Join(ErrPersistence, ErrCorrupt, errors.New("token field mismatch"))
	}
	return rec, nil
}

// RevokeIfActive flips the revoked flag with a Lua compare-and-set.
//
//	Performance: 1 Lua EVALSHA.
//	Security: the script runs atomically, so concurrent callers see exactly one RevokeRevoked.
func (s *RedisStore) RevokeIfActive(ctx context.Context, token string) (RevokeResult, error) {
	code, err := revokeIfActiveLua.Run(
		ctx,
		s.redis,
		[]string{s.key(token)},
		s.now().UnixMilli(),
	).Int64()
	if err != nil {
		return RevokeFailed, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return revokeResultFromStatus(code)
}

// Rotate revokes oldToken and inserts next in a single script.
//
//	Performance: 1 Lua EVALSHA.
func (s *RedisStore) Rotate(ctx context.Context, oldToken string, next Record) (RevokeResult, error) {
	if err := validateRecord(next); err != nil {
		return RevokeFailed, err
	}
	now := s.now()
	created := next.CreatedAt
	if created.IsZero() {
		created = now
	}

	code, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(oldToken), s.key(next.Token)},
		now.UnixMilli(),
		next.ID,
		next.Token,
		next.Subject,
		next.ExpiresAt.UnixMilli(),
		created.UnixMilli(),
		s.ttl(next.ExpiresAt).Milliseconds(),
	).Int64()
	if err != nil {
		return RevokeFailed, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if code == scriptStatusConflict {
		return RevokeFailed, ErrConflict
	}
	return revokeResultFromStatus(code)
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return time.Since(start), nil
}

func revokeResultFromStatus(code int64) (RevokeResult, error) {
	switch code {
	case scriptStatusNotFound:
		return RevokeNotFound, nil
	case scriptStatusAlreadyRevoked:
		return RevokeAlreadyRevoked, nil
	case scriptStatusRevoked:
		return RevokeRevoked, nil
	default:
		return RevokeFailed, fmt.Errorf("%w: unknown revoke script status %d", ErrPersistence, code)
	}
}

func decodeRecord(fields map[string]string) (*Record, error) {
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("exp: %w", err)
	}
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("created: %w", err)
	}

	rec := &Record{
		ID:        fields["id"],
		Token:     fields["token"],
		Subject:   fields["sub"],
		ExpiresAt: time.UnixMilli(exp).UTC(),
		CreatedAt: time.UnixMilli(created).UTC(),
	}
	switch fields["revoked"] {
	case "0":
	case "1":
		rec.Revoked = true
	default:
		return nil, fmt.Errorf("revoked flag %q", fields["revoked"])
	}
	if raw, ok := fields["revoked_at"]; ok {
		revokedAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("revoked_at: %w", err)
		}
		rec.RevokedAt = time.UnixMilli(revokedAt).UTC()
	}
	if rec.ID == "" || rec.Subject == "" {
		return nil, errors.New("missing identity fields")
	}
	return rec, nil
}
