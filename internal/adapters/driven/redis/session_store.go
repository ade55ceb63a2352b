package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionStore = (*SessionStore)(nil)

const (
	sessKeyPrefix    = "conecta:sess:"
	refreshKeyPrefix = "conecta:sess:refresh:"
	userSetPrefix    = "conecta:sess:user:"

	// The per-user session set must outlive the longest refresh
	// window so DeleteByUser can still find every session ID.
	userSetTTL = 30 * 24 * time.Hour
)

// SessionStore keeps console sessions in Redis. The session blob and
// its refresh index carry the session's own TTL, so expiry needs no
// sweeper.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a Redis-backed SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessKeyPrefix+session.ID, data, ttl)
	if session.RefreshToken != "" {
		pipe.Set(ctx, refreshKeyPrefix+session.RefreshToken, session.ID, ttl)
	}
	pipe.SAdd(ctx, userSetPrefix+session.UserID, session.ID)
	pipe.Expire(ctx, userSetPrefix+session.UserID, userSetTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	id, err := s.client.Get(ctx, refreshKeyPrefix+refreshToken).Result()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve refresh token: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err == domain.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessKeyPrefix+session.ID)
	if session.RefreshToken != "" {
		pipe.Del(ctx, refreshKeyPrefix+session.RefreshToken)
	}
	pipe.SRem(ctx, userSetPrefix+session.UserID, session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	ids, err := s.client.SMembers(ctx, userSetPrefix+userID).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}

	// Expired IDs linger in the set until this sweep; Delete skips them.
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	if err := s.client.Del(ctx, userSetPrefix+userID).Err(); err != nil {
		return fmt.Errorf("drop user session set: %w", err)
	}
	return nil
}
