package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/darts"

	"github.com/redis/go-redis/v9"
)

const maxMatchUpdateAttempts = 5

var errMatchNotFound = fmt.Errorf("%w: match", apperr.ErrNotFound)

// MatchStore keeps in-flight match sessions in Redis with a TTL, so any
// replica can serve any request of a session.
type MatchStore struct {
	rdb *redis.Client
}

// NewMatchStore creates a match session store
func NewMatchStore(rdb *redis.Client) *MatchStore {
	return &MatchStore{rdb: rdb}
}

func matchKey(id string) string { return "match:" + id }

// Create stores a new match. It fails if the id is already taken.
func (s *MatchStore) Create(ctx context.Context, m *darts.Match, ttl time.Duration) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, matchKey(m.ID), raw, ttl).Result()
	if err != nil {
		return apperr.Store(err)
	}
	if !ok {
		return fmt.Errorf("%w: match %s already exists", apperr.ErrConflict, m.ID)
	}
	return nil
}

// Get loads a match.
func (s *MatchStore) Get(ctx context.Context, id string) (*darts.Match, error) {
	raw, err := s.rdb.Get(ctx, matchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errMatchNotFound
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	var m darts.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	return &m, nil
}

// Update applies fn to the stored match under optimistic concurrency control:
// the key is WATCHed, and the write is retried if another request changed the
// match in between. Errors returned by fn abort the update and are passed
// through unchanged; nothing is written in that case.
func (s *MatchStore) Update(ctx context.Context, id string, fn func(m *darts.Match) error) (*darts.Match, error) {
	key := matchKey(id)
	var (
		out   *darts.Match
		fnErr error
	)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			fnErr = errMatchNotFound
			return fnErr
		}
		if err != nil {
			return err
		}
		var m darts.Match
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decode match %s: %w", id, err)
		}
		if fnErr = fn(&m); fnErr != nil {
			return fnErr
		}
		payload, err := json.Marshal(&m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err == nil {
			out = &m
		}
		return err
	}

	for attempt := 0; attempt < maxMatchUpdateAttempts; attempt++ {
		fnErr = nil
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if fnErr != nil {
			return nil, fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, apperr.Store(err)
	}
	return nil, fmt.Errorf("%w: match %s is being updated concurrently", apperr.ErrConflict, id)
}

// Expire shortens the lifetime of a finished match so late reads still work.
func (s *MatchStore) Expire(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, matchKey(id), ttl).Err(); err != nil {
		return apperr.Store(err)
	}
	return nil
}
