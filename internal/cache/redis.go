package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"receiptmaker/internal/receipt"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "receiptmaker:section-defaults:"

// RedisStore shares defaults between replicas. Each configured kind is stored
// as section JSON; a marker key records that the set was loaded.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: defaultKeyPrefix, ttl: ttl}
}

func (r *RedisStore) markerKey() string { return r.prefix + "loaded" }

func (r *RedisStore) kindKey(kind receipt.Kind) string { return r.prefix + "kind:" + string(kind) }

func (r *RedisStore) Get(ctx context.Context, kind receipt.Kind) (receipt.Section, bool, error) {
	vals, err := r.rdb.MGet(ctx, r.markerKey(), r.kindKey(kind)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis mget: %w", err)
	}
	if vals[0] == nil {
		return nil, false, nil
	}
	raw, ok := vals[1].(string)
	if !ok {
		return nil, true, nil
	}
	sec, err := receipt.UnmarshalSection([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("decode cached %s default: %w", kind, err)
	}
	return sec, true, nil
}

func (r *RedisStore) Fill(ctx context.Context, defaults map[receipt.Kind]receipt.Section) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, kind := range receipt.Kinds() {
			pipe.Del(ctx, r.kindKey(kind))
		}
		for kind, sec := range defaults {
			if sec == nil {
				continue
			}
			raw, err := json.Marshal(sec)
			if err != nil {
				return fmt.Errorf("encode %s default: %w", kind, err)
			}
			pipe.Set(ctx, r.kindKey(kind), raw, r.ttl)
		}
		pipe.Set(ctx, r.markerKey(), "1", r.ttl)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis fill: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	keys := []string{r.markerKey()}
	for _, kind := range receipt.Kinds() {
		keys = append(keys, r.kindKey(kind))
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}
