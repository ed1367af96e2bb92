package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "auth:refresh:"

// RedisLedger keeps each record in a hash that expires with the record, so
// Redis itself performs the expiry sweep.
type RedisLedger struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client, prefix: defaultRedisPrefix, now: time.Now}
}

func (l *RedisLedger) key(id string) string { return l.prefix + id }

func (l *RedisLedger) Create(ctx context.Context, rec Record) (Record, error) {
	n, err := l.client.Incr(ctx, l.prefix+"seq").Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: allocate id: %w", ErrPersistence, err)
	}
	rec.ID = strconv.FormatInt(n, 10)

	key := l.key(rec.ID)
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", strconv.FormatUint(uint64(rec.UserID), 10),
			"expires_at", strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
		)
		pipe.ExpireAt(ctx, key, rec.ExpiresAt)
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("%w: store record: %w", ErrPersistence, err)
	}
	return rec, nil
}

func (l *RedisLedger) Delete(ctx context.Context, id string) (bool, error) {
	n, err := l.client.Del(ctx, l.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: delete record: %w", ErrPersistence, err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Find(ctx context.Context, id string) (Record, error) {
	vals, err := l.client.HGetAll(ctx, l.key(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: find record: %w", ErrPersistence, err)
	}
	if len(vals) == 0 {
		return Record{}, ErrNotFound
	}

	userID, err := strconv.ParseUint(vals["user_id"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: corrupt user_id for %s: %w", ErrPersistence, id, err)
	}
	ms, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: corrupt expires_at for %s: %w", ErrPersistence, id, err)
	}

	rec := Record{ID: id, UserID: uint(userID), ExpiresAt: time.UnixMilli(ms)}
	if rec.expired(l.now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// PurgeExpired is a no-op: keys carry their own EXPIREAT.
func (l *RedisLedger) PurgeExpired(context.Context) (int64, error) {
	return 0, nil
}
