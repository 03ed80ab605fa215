package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/common"
	"github.com/dmitrijs2005/gophtoken/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisRepository.
const DefaultRedisPrefix = "gophtoken:rt:"

// Record fields of the hash stored under rec:<id>.
const (
	fieldID         = "id"
	fieldUserID     = "user_id"
	fieldDigest     = "token_digest"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
	fieldRevoked    = "revoked"
	fieldRevokedAt  = "revoked_at"
	fieldReplacedBy = "replaced_by"
	fieldVersion    = "version"
)

// KEYS: record, digest index, user set, expiry zset.
// ARGV: id, expiry score, field/value pairs...
const createScript = `
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('ZADD', KEYS[4], ARGV[2], ARGV[1])
return 1
`

// KEYS: record. ARGV: expected version, new version, revoked, revoked_at, replaced_by.
const updateScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], 'version') ~= ARGV[1] then
  return 0
end
if ARGV[3] == '1' then
  redis.call('HSET', KEYS[1], 'revoked', '1')
  local at = redis.call('HGET', KEYS[1], 'revoked_at')
  if not at or at == '' then
    redis.call('HSET', KEYS[1], 'revoked_at', ARGV[4])
  end
end
redis.call('HSET', KEYS[1], 'replaced_by', ARGV[5], 'version', ARGV[2])
return 1
`

// KEYS: record. ARGV: revoked_at, new version.
const revokeScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], 'revoked') == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'revoked', '1', 'revoked_at', ARGV[1], 'version', ARGV[2])
return 1
`

// KEYS: user set. ARGV: record key prefix, revoked_at, new version.
const revokeAllScript = `
local n = 0
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local key = ARGV[1] .. id
  if redis.call('HGET', key, 'revoked') == '0' then
    redis.call('HSET', key, 'revoked', '1', 'revoked_at', ARGV[2], 'version', ARGV[3])
    n = n + 1
  end
end
return n
`

// KEYS: expiry zset. ARGV: record prefix, digest prefix, user prefix, cutoff score.
const deleteExpiredScript = `
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[4])
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  local f = redis.call('HMGET', key, 'token_digest', 'user_id')
  if f[1] then redis.call('DEL', ARGV[2] .. f[1]) end
  if f[2] then redis.call('SREM', ARGV[3] .. f[2], id) end
  redis.call('DEL', key)
  redis.call('ZREM', KEYS[1], id)
end
return #ids
`

var (
	createLua        = redis.NewScript(createScript)
	updateLua        = redis.NewScript(updateScript)
	revokeLua        = redis.NewScript(revokeScript)
	revokeAllLua     = redis.NewScript(revokeAllScript)
	deleteExpiredLua = redis.NewScript(deleteExpiredScript)
)

// RedisRepository keeps each token as a hash plus three indexes: digest to
// id, user to id set, and an expiry sorted set. Conditional writes run as Lua
// scripts so compare and write happen atomically on the server.
//
// The scripts derive keys from the prefix at run time, so all keys must live
// on one node.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepository returns a store using prefix, or DefaultRedisPrefix when
// prefix is empty.
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) recordPrefix() string { return r.prefix + "rec:" }
func (r *RedisRepository) digestPrefix() string { return r.prefix + "dig:" }
func (r *RedisRepository) userPrefix() string   { return r.prefix + "usr:" }
func (r *RedisRepository) expiryKey() string    { return r.prefix + "exp" }

func (r *RedisRepository) recordKey(id string) string { return r.recordPrefix() + id }
func (r *RedisRepository) digestKey(d string) string  { return r.digestPrefix() + d }
func (r *RedisRepository) userKey(id string) string   { return r.userPrefix() + id }

func (r *RedisRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	version := newVersion()
	stored := *token
	stored.Version = version

	args := append([]any{token.ID, token.ExpiresAt.UnixMilli()}, encodeRecord(&stored)...)
	keys := []string{
		r.recordKey(token.ID),
		r.digestKey(token.TokenDigest),
		r.userKey(token.UserID),
		r.expiryKey(),
	}

	res, err := createLua.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if res == 0 {
		return common.ErrorAlreadyExists
	}
	token.Version = version
	return nil
}

func (r *RedisRepository) FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	id, err := r.client.Get(ctx, r.digestKey(digest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	fields, err := r.client.HGetAll(ctx, r.recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}
	return decodeRecord(fields)
}

func (r *RedisRepository) Update(ctx context.Context, token *models.RefreshToken) error {
	version := newVersion()
	res, err := updateLua.Run(ctx, r.client, []string{r.recordKey(token.ID)},
		token.Version, version, boolField(token.Revoked), timeField(token.RevokedAt), token.ReplacedBy,
	).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	switch res {
	case -1:
		return common.ErrorNotFound
	case 0:
		return common.ErrVersionConflict
	}
	token.Version = version
	return nil
}

func (r *RedisRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := revokeLua.Run(ctx, r.client, []string{r.recordKey(id)}, timeField(&at), newVersion()).Int()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	if res == -1 {
		return false, common.ErrorNotFound
	}
	return res == 1, nil
}

func (r *RedisRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	n, err := revokeAllLua.Run(ctx, r.client, []string{r.userKey(userID)},
		r.recordPrefix(), timeField(&at), newVersion(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

func (r *RedisRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := deleteExpiredLua.Run(ctx, r.client, []string{r.expiryKey()},
		r.recordPrefix(), r.digestPrefix(), r.userPrefix(), cutoff.UnixMilli(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

func encodeRecord(t *models.RefreshToken) []any {
	return []any{
		fieldID, t.ID,
		fieldUserID, t.UserID,
		fieldDigest, t.TokenDigest,
		fieldCreatedAt, strconv.FormatInt(t.CreatedAt.UnixNano(), 10),
		fieldExpiresAt, strconv.FormatInt(t.ExpiresAt.UnixNano(), 10),
		fieldRevoked, boolField(t.Revoked),
		fieldRevokedAt, timeField(t.RevokedAt),
		fieldReplacedBy, t.ReplacedBy,
		fieldVersion, t.Version,
	}
}

func decodeRecord(f map[string]string) (*models.RefreshToken, error) {
	created, err := parseNanos(f[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", fieldCreatedAt, err)
	}
	expires, err := parseNanos(f[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", fieldExpiresAt, err)
	}

	t := &models.RefreshToken{
		ID:          f[fieldID],
		UserID:      f[fieldUserID],
		TokenDigest: f[fieldDigest],
		CreatedAt:   created,
		ExpiresAt:   expires,
		Revoked:     f[fieldRevoked] == "1",
		ReplacedBy:  f[fieldReplacedBy],
		Version:     f[fieldVersion],
	}
	if s := f[fieldRevokedAt]; s != "" {
		at, err := parseNanos(s)
		if err != nil {
			return nil, fmt.Errorf("bad %s: %w", fieldRevokedAt, err)
		}
		t.RevokedAt = &at
	}
	return t, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func timeField(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseNanos(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
