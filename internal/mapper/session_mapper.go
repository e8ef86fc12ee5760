package mapper

import (
	"encoding/json"
	"time"

	"rag-chatbot-ui/internal/entity"
	"rag-chatbot-ui/internal/model"

	"gorm.io/datatypes"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

// sessionState is the JSON document kept in ui_sessions.state.
type sessionState struct {
	History      []entity.Message                   `json:"message_history"`
	ChatThreads  []string                           `json:"chat_threads"`
	IngestedDocs map[string][]entity.DocumentRecord `json:"ingested_docs"`
}

func (m *SessionMapper) SessionToEntity(s *model.UISession) (*entity.Session, error) {
	if s == nil {
		return nil, nil
	}

	var state sessionState
	if len(s.State) > 0 {
		if err := json.Unmarshal(s.State, &state); err != nil {
			return nil, err
		}
	}

	e := &entity.Session{
		Id:           s.Id,
		ThreadId:     s.ThreadId,
		History:      state.History,
		ChatThreads:  state.ChatThreads,
		IngestedDocs: state.IngestedDocs,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	e.Normalize()
	return e, nil
}

func (m *SessionMapper) SessionToModel(s *entity.Session, ttl time.Duration) (*model.UISession, error) {
	if s == nil {
		return nil, nil
	}

	data, err := json.Marshal(sessionState{
		History:      s.History,
		ChatThreads:  s.ChatThreads,
		IngestedDocs: s.IngestedDocs,
	})
	if err != nil {
		return nil, err
	}

	return &model.UISession{
		Id:        s.Id,
		ThreadId:  s.ThreadId,
		State:     datatypes.JSON(data),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}
