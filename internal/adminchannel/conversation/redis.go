package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

const (
	redisKeyPrefix  = "adminchannel:conversation:"
	defaultRedisTTL = 7 * 24 * time.Hour
)

// redisBackend is the slice of Redis the store needs. swap must apply value
// only if check accepts the current value, atomically.
type redisBackend interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	swap(ctx context.Context, key string, check func(current []byte, exists bool) error, value []byte, ttl time.Duration) error
	expire(ctx context.Context, key string, ttl time.Duration) error
	close() error
}

// redisStore keeps each snapshot as a JSON string with a sliding TTL.
type redisStore struct {
	backend redisBackend
	ttl     time.Duration
}

func (s *redisStore) key(id string) string { return redisKeyPrefix + id }

func (s *redisStore) LoadRecentHistory(ctx context.Context, id string, limit int) ([]session.HistoryEntry, error) {
	return recentHistory(ctx, s, id, limit)
}

// Load refreshes the TTL on every read.
func (s *redisStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	key := s.key(id)
	b, ok, err := s.backend.get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	snap, err := decode(b)
	if err != nil {
		return nil, err
	}
	// A failed refresh only shortens the conversation's life.
	_ = s.backend.expire(ctx, key, s.ttl)
	return snap, nil
}

func (s *redisStore) Persist(ctx context.Context, id string, snap Snapshot) error {
	expected := snap.Version
	snap.ConversationID = id
	snap.Version++
	snap.UpdatedAt = time.Now().UTC()
	b, err := encode(snap)
	if err != nil {
		return err
	}

	return s.backend.swap(ctx, s.key(id), func(current []byte, exists bool) error {
		var stored int64
		if exists {
			cur, err := decode(current)
			if err != nil {
				return err
			}
			stored = cur.Version
		}
		if stored != expected {
			return ErrVersionConflict
		}
		return nil
	}, b, s.ttl)
}

func (s *redisStore) Close() error { return s.backend.close() }

// clientBackend implements redisBackend on go-redis with WATCH/MULTI/EXEC.
type clientBackend struct {
	client *redis.Client
}

func (c clientBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c clientBackend) swap(ctx context.Context, key string, check func([]byte, bool) error, value []byte, ttl time.Duration) error {
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}
		if err := check(cur, exists); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			return ErrVersionConflict
		}
		return err
	}, key)
}

func (c clientBackend) expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c clientBackend) close() error { return c.client.Close() }
