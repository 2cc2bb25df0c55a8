package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bookingerrors "turnera/internal/booking/errors"
	"turnera/pkg/config"
	"turnera/pkg/model"

	"github.com/redis/go-redis/v9"
)

// Store persists per-conversation booking sessions. Entries are
// TTL-bounded: an abandoned conversation simply expires back to IDLE.
type Store interface {
	Get(ctx context.Context, conversationID string) (*model.BookingSession, error)
	Save(ctx context.Context, session *model.BookingSession) error
	Delete(ctx context.Context, conversationID string) error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(cfg *config.Config) Store {
	return &redisStore{
		client: cfg.Client.Redis,
		ttl:    cfg.SessionTTL,
	}
}

func sessionKey(conversationID string) string {
	return "session:" + conversationID
}

func (s *redisStore) Get(ctx context.Context, conversationID string) (*model.BookingSession, error) {
	data, err := s.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, bookingerrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load booking session: %w", err)
	}

	var session model.BookingSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode booking session: %w", err)
	}

	return &session, nil
}

func (s *redisStore) Save(ctx context.Context, session *model.BookingSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode booking session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.ConversationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save booking session: %w", err)
	}

	return nil
}

func (s *redisStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, sessionKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to delete booking session: %w", err)
	}
	return nil
}
