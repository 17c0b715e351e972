// Package session persists registration flow snapshots in Redis so a
// browser session can continue across stateless HTTP requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/flow"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

const keyPrefix = "regflow:session:"

// Store holds one flow snapshot per session ID with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a session store.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, ttl: ttl, logger: logger}
}

// Save writes the snapshot and refreshes the TTL.
func (s *Store) Save(ctx context.Context, sessionID string, snap flow.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+sessionID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns the snapshot for sessionID.
func (s *Store) Load(ctx context.Context, sessionID string) (flow.Snapshot, error) {
	raw, err := s.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return flow.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return flow.Snapshot{}, fmt.Errorf("load session: %w", err)
	}
	var snap flow.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn("corrupt session snapshot", zap.String("session_id", sessionID), zap.Error(err))
		return flow.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// Delete removes a finished session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
