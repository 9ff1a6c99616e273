package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
)

// suspended reports whether a state belongs in the deadline index.
func suspended(state continuation.State) bool {
	return state == continuation.StateRegistered || state == continuation.StatePending
}

// RegisterContinuation persists a new record as a JSON value and indexes
// it by state and deadline.
func (s *Store) RegisterContinuation(ctx context.Context, r *continuation.Record) error {
	token := r.ID.String()
	key := contKey(token)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("callout/redis: register check exists: %w", err)
	}
	if exists > 0 {
		return callout.ErrContinuationExists
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("callout/redis: marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, contIDsKey, token)
	pipe.SAdd(ctx, stateKey(string(r.State)), token)
	if suspended(r.State) {
		pipe.ZAdd(ctx, deadlinesKey, goredis.Z{Score: float64(r.Deadline.UnixMilli()), Member: token})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("callout/redis: register continuation: %w", err)
	}
	return nil
}

// GetContinuation retrieves a record by token.
func (s *Store) GetContinuation(ctx context.Context, token id.ContinuationID) (*continuation.Record, error) {
	data, err := s.client.Get(ctx, contKey(token.String())).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, callout.ErrContinuationNotFound
		}
		return nil, fmt.Errorf("callout/redis: get continuation: %w", err)
	}

	var r continuation.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("callout/redis: unmarshal record: %w", err)
	}
	return &r, nil
}

// UpdateContinuation persists changes to an existing record and moves
// its state and deadline indexes.
func (s *Store) UpdateContinuation(ctx context.Context, r *continuation.Record) error {
	token := r.ID.String()
	key := contKey(token)

	prev, err := s.GetContinuation(ctx, r.ID)
	if err != nil {
		return err
	}

	r.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("callout/redis: marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	if prev.State != r.State {
		pipe.SRem(ctx, stateKey(string(prev.State)), token)
		pipe.SAdd(ctx, stateKey(string(r.State)), token)
	}
	if suspended(r.State) {
		pipe.ZAdd(ctx, deadlinesKey, goredis.Z{Score: float64(r.Deadline.UnixMilli()), Member: token})
	} else {
		pipe.ZRem(ctx, deadlinesKey, token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("callout/redis: update continuation: %w", err)
	}
	return nil
}

// DeleteContinuation removes a record by token.
func (s *Store) DeleteContinuation(ctx context.Context, token id.ContinuationID) error {
	r, err := s.GetContinuation(ctx, token)
	if err != nil {
		return err
	}

	t := token.String()
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, contKey(t))
	pipe.SRem(ctx, contIDsKey, t)
	pipe.SRem(ctx, stateKey(string(r.State)), t)
	pipe.ZRem(ctx, deadlinesKey, t)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("callout/redis: delete continuation: %w", err)
	}
	return nil
}

// ListContinuationsByState returns records matching the given state.
func (s *Store) ListContinuationsByState(ctx context.Context, state continuation.State, opts continuation.ListOpts) ([]*continuation.Record, error) {
	tokens, err := s.client.SMembers(ctx, stateKey(string(state))).Result()
	if err != nil {
		return nil, fmt.Errorf("callout/redis: list continuations smembers: %w", err)
	}

	records := make([]*continuation.Record, 0, len(tokens))
	for _, t := range tokens {
		parsed, parseErr := id.ParseContinuationID(t)
		if parseErr != nil {
			continue
		}
		r, getErr := s.GetContinuation(ctx, parsed)
		if getErr != nil {
			continue // index may lag deletes
		}
		if r.State != state {
			continue
		}
		if opts.Handler != "" && r.Handler != opts.Handler {
			continue
		}
		records = append(records, r)
	}

	if opts.Offset > 0 && opts.Offset < len(records) {
		records = records[opts.Offset:]
	} else if opts.Offset >= len(records) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}
	return records, nil
}

// ExpiredContinuations returns suspended records whose deadline is at or
// before the given time, using the deadline Sorted Set.
func (s *Store) ExpiredContinuations(ctx context.Context, now time.Time) ([]*continuation.Record, error) {
	tokens, err := s.client.ZRangeByScore(ctx, deadlinesKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("callout/redis: expired zrangebyscore: %w", err)
	}

	var expired []*continuation.Record
	for _, t := range tokens {
		parsed, parseErr := id.ParseContinuationID(t)
		if parseErr != nil {
			continue
		}
		r, getErr := s.GetContinuation(ctx, parsed)
		if getErr != nil {
			continue
		}
		if !suspended(r.State) {
			continue
		}
		expired = append(expired, r)
	}
	return expired, nil
}

// CountContinuations returns the number of records in the given state.
// An empty state counts everything.
func (s *Store) CountContinuations(ctx context.Context, state continuation.State) (int64, error) {
	if state == "" {
		count, err := s.client.SCard(ctx, contIDsKey).Result()
		if err != nil {
			return 0, fmt.Errorf("callout/redis: count continuations: %w", err)
		}
		return count, nil
	}

	count, err := s.client.SCard(ctx, stateKey(string(state))).Result()
	if err != nil {
		return 0, fmt.Errorf("callout/redis: count continuations by state: %w", err)
	}
	return count, nil
}
