package redis

import (
	"context"
	"errors"
	"time"

	"github.com/lxlibrary/lx-backend/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// SessionSlots stores one browsing session's snapshots. Every save refreshes
// the TTL, so the slots disappear once the session goes idle.
type SessionSlots struct {
	client    *Client
	sessionID string
	ttl       time.Duration
}

var _ storage.Slots = (*SessionSlots)(nil)

// SessionSlots scopes the client to sessionID.
func (c *Client) SessionSlots(sessionID string, ttl time.Duration) *SessionSlots {
	return &SessionSlots{client: c, sessionID: sessionID, ttl: ttl}
}

func (s *SessionSlots) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, storage.ErrNotInitialized
	}
	val, err := s.client.Get(ctx, s.client.SessionKey(s.sessionID, key))
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (s *SessionSlots) Save(ctx context.Context, key string, payload []byte) error {
	if s == nil || s.client == nil {
		return storage.ErrNotInitialized
	}
	return s.client.Set(ctx, s.client.SessionKey(s.sessionID, key), string(payload), s.ttl)
}
