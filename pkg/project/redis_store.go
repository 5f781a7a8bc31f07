package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists each project as a JSON document at
// warren:project:{id} and maintains a summary index hash for listing.
// The client is thread-safe; Save is a plain upsert by project ID so
// concurrent writers for the same project serialize on Redis.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a store on the given Redis connection options.
func NewRedisStore(redisOpts *redis.Options) *RedisStore {
	return &RedisStore{rdb: redis.NewClient(redisOpts)}
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for startup health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, id, ownerID string) (*State, error) {
	data, err := s.rdb.Get(ctx, Key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project from Redis: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to deserialize project %s: %w", id, err)
	}

	if !authorized(&state, ownerID) {
		return nil, ErrNotFound
	}

	state.normalize()
	return &state, nil
}

// Save implements Store. The document write and the index update are
// pipelined; a failed write surfaces to the caller rather than being
// silently absorbed, because losing a save would corrupt phase
// progression.
func (s *RedisStore) Save(ctx context.Context, state *State) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid project state: %w", err)
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize project: %w", err)
	}

	summaryJSON, err := json.Marshal(Summary{
		ID:            state.ID,
		Name:          state.Name,
		OwnerID:       state.OwnerID,
		LastUpdatedMs: state.LastUpdatedMs,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize project summary: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, Key(state.ID), stateJSON, 0)
	pipe.HSet(ctx, IndexKey(), state.ID, summaryJSON)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write project to Redis: %w", err)
	}

	return nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, ownerID string) ([]Summary, error) {
	raw, err := s.rdb.HGetAll(ctx, IndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read project index: %w", err)
	}

	summaries := make([]Summary, 0, len(raw))
	for id, summaryJSON := range raw {
		var summary Summary
		if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
			return nil, fmt.Errorf("corrupt index entry for project %s: %w", id, err)
		}
		if !visible(ownerID, summary.OwnerID) {
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}
