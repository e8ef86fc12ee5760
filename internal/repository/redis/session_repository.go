package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rag-chatbot-ui/internal/entity"
	"rag-chatbot-ui/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chatui:session:"

// SessionRepository stores each session as one JSON value with a sliding TTL.
type SessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ contract.SessionRepository = &SessionRepository{}

func NewSessionRepository(rdb *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{rdb: rdb, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (r *SessionRepository) Save(ctx context.Context, session *entity.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, key(session.Id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", session.Id, err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*entity.Session, error) {
	data, err := r.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var s entity.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	s.Normalize()
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, key(id)).Err()
}
