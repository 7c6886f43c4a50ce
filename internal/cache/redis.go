package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const statusHashKey = "wfm:presence:last"

// RedisStatusStore keeps last-known statuses in a Redis hash so that several
// backend instances share one view and restarts do not re-log every agent.
type RedisStatusStore struct {
	client *redis.Client
	key    string
}

// NewRedisStatusStore connects to Redis and verifies the connection
func NewRedisStatusStore(ctx context.Context, redisURL string) (*RedisStatusStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStatusStore{client: client, key: statusHashKey}, nil
}

// Close closes the Redis connection
func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}

// Get returns the last known entry for an agent
func (s *RedisStatusStore) Get(ctx context.Context, agentID string) (StatusEntry, bool, error) {
	raw, err := s.client.HGet(ctx, s.key, agentID).Result()
	if errors.Is(err, redis.Nil) {
		return StatusEntry{}, false, nil
	}
	if err != nil {
		return StatusEntry{}, false, err
	}

	var entry StatusEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return StatusEntry{}, false, fmt.Errorf("corrupt status entry for %s: %w", agentID, err)
	}
	return entry, true, nil
}

// Set records the last known entry for an agent
func (s *RedisStatusStore) Set(ctx context.Context, agentID string, entry StatusEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key, agentID, data).Err()
}

// Snapshot returns all entries
func (s *RedisStatusStore) Snapshot(ctx context.Context) (map[string]StatusEntry, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]StatusEntry, len(raw))
	for id, value := range raw {
		var entry StatusEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			continue
		}
		out[id] = entry
	}
	return out, nil
}

// Reset deletes the hash and returns how many agents were cleared
func (s *RedisStatusStore) Reset(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, err
	}
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return 0, err
	}
	return int(n), nil
}
