package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/redis/go-redis/v9"
)

// Listings caches the public car listings. Readers take Generation before
// reading the store and pass it to Set; Invalidate bumps the generation, so
// a read that raced a car write can never repopulate the cache with a list
// missing that car.
type Listings interface {
	Generation(ctx context.Context) (uint64, error)
	Get(ctx context.Context, key string) ([]car.Car, bool, error)
	Set(ctx context.Context, gen uint64, key string, cars []car.Car) error
	Invalidate(ctx context.Context) error
}

type MemoryListings struct {
	mu  sync.Mutex
	gen uint64
	c   *TTL[[]car.Car]
}

func NewMemoryListings(ttl time.Duration) *MemoryListings {
	return &MemoryListings{c: NewTTL[[]car.Car](ttl, 0)}
}

func (m *MemoryListings) Generation(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}

func (m *MemoryListings) Get(_ context.Context, key string) ([]car.Car, bool, error) {
	cars, ok := m.c.Get(key)
	return cars, ok, nil
}

// Set drops the write when gen is no longer current.
func (m *MemoryListings) Set(_ context.Context, gen uint64, key string, cars []car.Car) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return nil
	}
	m.c.Set(key, cars)
	return nil
}

func (m *MemoryListings) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.c.Clear()
	return nil
}

// RedisListings keeps each generation of listings in its own hash,
// <prefix>:g<gen>. Invalidate INCRs <prefix>:gen and deletes the previous
// hash; a late Set for an old generation lands in a hash nobody reads and
// expires with its TTL.
type RedisListings struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

const defaultListingsPrefix = "carshare:cars:listings"

func NewRedisListings(rdb *redis.Client, ttl time.Duration) *RedisListings {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisListings{rdb: rdb, prefix: defaultListingsPrefix, ttl: ttl}
}

func (r *RedisListings) genKey() string {
	return r.prefix + ":gen"
}

func (r *RedisListings) hashKey(gen uint64) string {
	return r.prefix + ":g" + strconv.FormatUint(gen, 10)
}

func (r *RedisListings) Generation(ctx context.Context) (uint64, error) {
	gen, err := r.rdb.Get(ctx, r.genKey()).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return gen, nil
}

func (r *RedisListings) Get(ctx context.Context, key string) ([]car.Car, bool, error) {
	gen, err := r.Generation(ctx)
	if err != nil {
		return nil, false, err
	}

	raw, err := r.rdb.HGet(ctx, r.hashKey(gen), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cars []car.Car
	if err := json.Unmarshal(raw, &cars); err != nil {
		// drop the corrupt field and treat it as a miss
		_ = r.rdb.HDel(ctx, r.hashKey(gen), key).Err()
		return nil, false, nil
	}
	return cars, true, nil
}

func (r *RedisListings) Set(ctx context.Context, gen uint64, key string, cars []car.Car) error {
	raw, err := json.Marshal(cars)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.hashKey(gen), key, raw)
	pipe.Expire(ctx, r.hashKey(gen), r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisListings) Invalidate(ctx context.Context) error {
	next, err := r.rdb.Incr(ctx, r.genKey()).Uint64()
	if err != nil {
		return err
	}
	return r.rdb.Del(ctx, r.hashKey(next-1)).Err()
}
