package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "applygate/pkg/domain"
)

// RedisStore persists the session registry in Redis so invalidation is
// visible across instances immediately.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID id.SessionID) string {
	return "session:" + sessionID.String()
}

func userSessionsKey(userID id.UserID) string {
	return "user_sessions:" + userID.String()
}

func (s *RedisStore) Save(ctx context.Context, session Session) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), session.UserID.String(), s.ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.ID.String())
	pipe.Expire(ctx, userSessionsKey(session.UserID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) IsActive(ctx context.Context, sessionID id.SessionID) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, sessionID id.SessionID) error {
	userID, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, "user_sessions:"+userID, sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

func (s *RedisStore) InvalidateUser(ctx context.Context, userID id.UserID) error {
	sessionIDs, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, sid := range sessionIDs {
		pipe.Del(ctx, "session:"+sid)
	}
	pipe.Del(ctx, userSessionsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate user sessions: %w", err)
	}
	return nil
}
