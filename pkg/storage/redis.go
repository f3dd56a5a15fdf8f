package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dwisc:run:"

// RedisStore keeps snapshots in Redis under dwisc:run:{id} with a TTL, so a
// status reader in another process can follow a run.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig configures NewRedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// TTL of each snapshot. Zero means 24 hours.
	TTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if cfg.DB < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(runID string) string {
	return redisKeyPrefix + runID
}

// Put stores snapshot as JSON, resetting its TTL.
func (r *RedisStore) Put(ctx context.Context, snapshot Snapshot) error {
	if err := ValidateRunID(snapshot.RunID); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(snapshot.RunID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// GetLatest loads the snapshot for runID. A missing key is not an error.
func (r *RedisStore) GetLatest(ctx context.Context, runID string) (Snapshot, bool, error) {
	if err := ValidateRunID(runID); err != nil {
		return Snapshot{}, false, err
	}

	data, err := r.client.Get(ctx, redisKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	err := r.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
