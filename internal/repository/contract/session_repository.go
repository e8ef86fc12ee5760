package contract

import (
	"context"

	"rag-chatbot-ui/internal/entity"
)

// SessionRepository persists UI sessions. Get returns (nil, nil) when the session is unknown.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*entity.Session, error)
	Save(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, id string) error
}
