package aliasstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps one JSON merge table per account under merges:{account}.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisStore connects to Redis. The connection is lazy; call Ping to check it.
func NewRedisStore(opts RedisOptions) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return NewRedisStoreFromClient(rdb)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Fetch satisfies the same contract as Client.Fetch so the pipeline can read the table
// straight from Redis.
func (s *RedisStore) Fetch(ctx context.Context, account string) (Merges, error) {
	m, err := s.Get(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return m, nil
}

// Get returns the account's merge table, empty when none is stored.
func (s *RedisStore) Get(ctx context.Context, account string) (Merges, error) {
	return getMerges(ctx, s.rdb, Key(account))
}

// Put stores merge under canonicalID, stamping mergedAt and user ("anonymous" when empty),
// and returns the updated table.
func (s *RedisStore) Put(ctx context.Context, account, canonicalID string, merge Merge, user string) (Merges, error) {
	if user == "" {
		user = "anonymous"
	}
	merge.MergedAt = s.now().UTC().Format(time.RFC3339Nano)
	merge.User = user
	if merge.Absorbed == nil {
		merge.Absorbed = []string{}
	}
	if merge.Aliases == nil {
		merge.Aliases = []string{}
	}
	if merge.MergedSnippets == nil {
		merge.MergedSnippets = []string{}
	}

	var out Merges
	err := s.update(ctx, Key(account), func(m Merges) {
		m[canonicalID] = merge
		out = m
	})
	return out, err
}

// Delete removes canonicalID and returns the remaining table plus the removed merge's
// absorbed ids (nil when it did not exist).
func (s *RedisStore) Delete(ctx context.Context, account, canonicalID string) (Merges, []string, error) {
	var (
		out      Merges
		unmerged []string
	)
	err := s.update(ctx, Key(account), func(m Merges) {
		if prev, ok := m[canonicalID]; ok {
			unmerged = prev.Absorbed
		}
		delete(m, canonicalID)
		out = m
	})
	return out, unmerged, err
}

// update runs a WATCHed read-modify-write of one key, retrying when the key changed underneath.
func (s *RedisStore) update(ctx context.Context, key string, mutate func(Merges)) error {
	txf := func(tx *redis.Tx) error {
		m, err := getMerges(ctx, tx, key)
		if err != nil {
			return err
		}
		mutate(m)
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode merges: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: too much contention", key)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getMerges(ctx context.Context, c stringGetter, key string) (Merges, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Merges{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var m Merges
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if m == nil {
		m = Merges{}
	}
	return m, nil
}
