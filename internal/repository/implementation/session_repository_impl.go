package implementation

import (
	"context"
	"errors"
	"time"

	"rag-chatbot-ui/internal/entity"
	"rag-chatbot-ui/internal/mapper"
	"rag-chatbot-ui/internal/model"
	"rag-chatbot-ui/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
	ttl    time.Duration
}

var _ contract.SessionRepository = &SessionRepositoryImpl{}

func NewSessionRepository(db *gorm.DB, ttl time.Duration) *SessionRepositoryImpl {
	return &SessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
		ttl:    ttl,
	}
}

func (r *SessionRepositoryImpl) Save(ctx context.Context, session *entity.Session) error {
	m, err := r.mapper.SessionToModel(session, r.ttl)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"thread_id", "state", "updated_at", "expires_at"}),
	}).Create(m).Error
}

func (r *SessionRepositoryImpl) Get(ctx context.Context, id string) (*entity.Session, error) {
	var m model.UISession
	err := r.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, time.Now()).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m)
}

func (r *SessionRepositoryImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.UISession{}, "id = ?", id).Error
}

// DeleteExpired purges sessions whose TTL has passed.
func (r *SessionRepositoryImpl) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&model.UISession{})
	return res.RowsAffected, res.Error
}
