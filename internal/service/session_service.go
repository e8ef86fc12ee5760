package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"rag-chatbot-ui/internal/constant"
	"rag-chatbot-ui/internal/dto"
	"rag-chatbot-ui/internal/entity"
	"rag-chatbot-ui/internal/pkg/logger"
	"rag-chatbot-ui/internal/repository/contract"
	"rag-chatbot-ui/pkg/backend"
	"rag-chatbot-ui/pkg/events"

	"github.com/google/uuid"
)

var (
	ErrThreadNotFound      = errors.New("thread not found in this session")
	ErrUnsupportedDocument = errors.New("only PDF documents can be uploaded")
	ErrEmptyMessage        = errors.New("message must not be empty")
)

// StreamSink receives assistant increments as they arrive. Returning an error aborts
// the turn and cancels the backend stream.
type StreamSink func(delta string) error

type ISessionService interface {
	Initialize(ctx context.Context, sessionId string) (*dto.SessionViewResponse, error)
	NewChat(ctx context.Context, sessionId string) (*dto.SessionViewResponse, error)
	UploadDocument(ctx context.Context, sessionId string, filename string, data []byte) (*dto.UploadDocumentResponse, error)
	GetThreads(ctx context.Context, sessionId string) (*dto.GetThreadsResponse, error)
	SelectThread(ctx context.Context, sessionId string, request *dto.SelectThreadRequest) (*dto.SessionViewResponse, error)
	GetHistory(ctx context.Context, sessionId string) ([]dto.MessageDTO, error)
	SubmitTurn(ctx context.Context, sessionId string, request *dto.SubmitTurnRequest, sink StreamSink) (*dto.SubmitTurnResponse, error)
}

type sessionService struct {
	repo      contract.SessionRepository
	backend   backend.Backend
	publisher IPublisherService
	logger    logger.ILogger
	locks     *sessionLocks

	newThreadId func() string
	now         func() time.Time
}

func NewSessionService(
	repo contract.SessionRepository,
	be backend.Backend,
	publisher IPublisherService,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		repo:        repo,
		backend:     be,
		publisher:   publisher,
		logger:      log,
		locks:       newSessionLocks(),
		newThreadId: uuid.NewString,
		now:         time.Now,
	}
}

// Initialize creates the session on first use and returns the current view.
func (ss *sessionService) Initialize(ctx context.Context, sessionId string) (*dto.SessionViewResponse, error) {
	unlock := ss.locks.Lock(sessionId)
	defer unlock()

	sess, err := ss.load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return buildView(sess), nil
}

// NewChat starts a fresh thread with an empty history.
func (ss *sessionService) NewChat(ctx context.Context, sessionId string) (*dto.SessionViewResponse, error) {
	unlock := ss.locks.Lock(sessionId)
	defer unlock()

	sess, err := ss.load(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	threadId := ss.freshThreadId(sess.ChatThreads)
	sess.SwitchThread(threadId)
	sess.History = []entity.Message{}

	if err := ss.save(ctx, sess); err != nil {
		return nil, err
	}

	ss.publish(ctx, events.NewSessionEvent(events.TypeThreadCreated, sess.Id, threadId, nil))
	return buildView(sess), nil
}

// UploadDocument ingests a PDF into the active thread once per filename.
func (ss *sessionService) UploadDocument(ctx context.Context, sessionId string, filename string, data []byte) (*dto.UploadDocumentResponse, error) {
	filename = filepath.Base(filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, filename)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnsupportedDocument, filename)
	}

	unlock := ss.locks.Lock(sessionId)
	defer unlock()

	sess, err := ss.load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	threadId := sess.ThreadId

	if _, ok := sess.FindDoc(threadId, filename); ok {
		return &dto.UploadDocumentResponse{
			Status: constant.UploadStatusProcessed,
			Notice: dto.NoticeDTO{Level: constant.NoticeInfo, Text: fmt.Sprintf(constant.AlreadyProcessedFormat, filename)},
		}, nil
	}

	summary, err := ss.backend.IngestPDF(ctx, data, threadId, filename)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", filename, err)
	}

	// Keyed by the uploaded name so re-uploads are detected; the backend's summary is kept as reported.
	record := entity.IngestionSummary{
		Filename:  summary.Filename,
		Chunks:    summary.Chunks,
		Documents: summary.Documents,
	}
	if record.Filename == "" {
		record.Filename = filename
	}
	sess.RecordDoc(threadId, filename, record)

	if err := ss.save(ctx, sess); err != nil {
		return nil, err
	}

	ss.logger.Info("SessionService", "Document indexed", map[string]interface{}{
		"session_id": sess.Id,
		"thread_id":  threadId,
		"filename":   filename,
		"chunks":     record.Chunks,
	})
	ss.publish(ctx, events.NewSessionEvent(events.TypeDocumentIngested, sess.Id, threadId, map[string]interface{}{
		"filename":  record.Filename,
		"chunks":    record.Chunks,
		"documents": record.Documents,
	}))

	return &dto.UploadDocumentResponse{
		Status:  constant.UploadStatusIndexed,
		Notice:  dto.NoticeDTO{Level: constant.NoticeSuccess, Text: constant.DocumentIndexedStatus},
		Summary: toSummaryDTO(record),
	}, nil
}

// GetThreads lists known threads newest first.
func (ss *sessionService) GetThreads(ctx context.Context, sessionId string) (*dto.GetThreadsResponse, error) {
	unlock := ss.locks.Lock(sessionId)
	defer unlock()

	sess, err := ss.load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return &dto.GetThreadsResponse{
		ActiveThreadId: sess.ThreadId,
		Threads:        sess.ThreadsNewestFirst(),
	}, nil
}

// SelectThread replaces the history with the thread's persisted messages.
func (ss *sessionService) SelectThread(ctx context.Context, sessionId string, request *dto.SelectThreadRequest) (*dto.SessionViewResponse, error) {
	unlock := ss.locks.Lock(sessionId)
	defer unlock()

	sess, err := ss.load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if !sess.HasThread(request.ThreadId) {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, request.ThreadId)
	}

	state, err := ss.backend.GetState(ctx, request.ThreadId)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", request.ThreadId, err)
	}

	history := make([]entity.Message, 0, len(state.Messages))
	for _, msg := range state.Messages {
		history = append(history, entity.Message{Role: roleOf(msg.Kind), Content: msg.Content})
	}

	sess.SwitchThread(request.ThreadId)
	sess.History = history

	if err := ss.save(ctx, sess); err != nil {
		return nil, err
	}

	ss.publish(ctx, events.NewSessionEvent(events.TypeThreadSelected, sess.Id, request.ThreadId, map[string]interface{}{
		"messages": len(history),
	}))
	return buildView(sess), nil
}

func (ss *sessionService) GetHistory(ctx context.Context, sessionId string) ([]dto.MessageDTO, error) {
	unlock := ss.locks.Lock(sessionId)
	defer unlock()

	sess, err := ss.load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return toMessageDTOs(sess.History), nil
}

// SubmitTurn records the user message, streams the assistant reply through sink and
// records the reply once the stream completes. A failed or cancelled stream leaves
// the user message in place and records no reply.
func (ss *sessionService) SubmitTurn(ctx context.Context, sessionId string, request *dto.SubmitTurnRequest, sink StreamSink) (*dto.SubmitTurnResponse, error) {
	if strings.TrimSpace(request.Content) == "" {
		return nil, ErrEmptyMessage
	}

	unlock := ss.locks.Lock(sessionId)
	defer unlock()

	sess, err := ss.load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	threadId := sess.ThreadId

	sess.Append(entity.RoleUser, request.Content)
	if err := ss.save(ctx, sess); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	input := backend.StreamInput{Messages: []backend.Message{{Kind: backend.KindUser, Content: request.Content}}}
	stream, err := ss.backend.Stream(streamCtx, input, backend.NewRunConfig(threadId), backend.StreamModeMessages)
	if err != nil {
		return nil, fmt.Errorf("stream chat turn: %w", err)
	}

	reply, err := collectAssistant(streamCtx, stream, sink)
	if err != nil {
		ss.logger.Warn("SessionService", "Chat turn aborted", map[string]interface{}{
			"session_id": sess.Id,
			"thread_id":  threadId,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("stream chat turn: %w", err)
	}

	sess.Append(entity.RoleAssistant, reply)
	if err := ss.save(ctx, sess); err != nil {
		return nil, err
	}

	resp := &dto.SubmitTurnResponse{ThreadId: threadId, Reply: reply}

	meta, err := ss.backend.ThreadDocumentMetadata(ctx, threadId)
	if err != nil {
		return nil, fmt.Errorf("thread document metadata: %w", err)
	}
	if meta != nil {
		resp.Caption = fmt.Sprintf(constant.DocumentCaptionFormat, meta.Filename, meta.Chunks, meta.Documents)
	}

	ss.publish(ctx, events.NewSessionEvent(events.TypeTurnCompleted, sess.Id, threadId, map[string]interface{}{
		"reply_length": len(reply),
	}))
	return resp, nil
}

// collectAssistant forwards assistant increments to sink and drops tool output.
func collectAssistant(ctx context.Context, stream <-chan backend.StreamEvent, sink StreamSink) (string, error) {
	var reply strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-stream:
			if !ok {
				if err := ctx.Err(); err != nil {
					return "", err
				}
				return reply.String(), nil
			}
			if ev.Err != nil {
				return "", ev.Err
			}
			if ev.Message.Kind != backend.KindAssistant || ev.Message.Content == "" {
				continue
			}
			reply.WriteString(ev.Message.Content)
			if sink != nil {
				if err := sink(ev.Message.Content); err != nil {
					return "", fmt.Errorf("deliver increment: %w", err)
				}
			}
		}
	}
}

// load returns the stored session or initializes a new one.
func (ss *sessionService) load(ctx context.Context, sessionId string) (*entity.Session, error) {
	sess, err := ss.repo.Get(ctx, sessionId)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess != nil {
		sess.Normalize()
		return sess, nil
	}

	threads, err := ss.backend.ListThreads(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve threads: %w", err)
	}

	sess = entity.NewSession(sessionId, ss.freshThreadId(threads), threads, ss.now())
	if err := ss.save(ctx, sess); err != nil {
		return nil, err
	}

	ss.logger.Info("SessionService", "Session initialized", map[string]interface{}{
		"session_id":    sessionId,
		"thread_id":     sess.ThreadId,
		"known_threads": len(threads),
	})
	ss.publish(ctx, events.NewSessionEvent(events.TypeSessionStarted, sessionId, sess.ThreadId, nil))
	return sess, nil
}

func (ss *sessionService) save(ctx context.Context, sess *entity.Session) error {
	sess.UpdatedAt = ss.now()
	if err := ss.repo.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (ss *sessionService) freshThreadId(known []string) string {
	for {
		id := ss.newThreadId()
		taken := false
		for _, t := range known {
			if t == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}

func (ss *sessionService) publish(ctx context.Context, event events.Event) {
	if ss.publisher != nil {
		ss.publisher.Publish(ctx, event)
	}
}

func roleOf(kind backend.MessageKind) entity.Role {
	if kind == backend.KindUser {
		return entity.RoleUser
	}
	return entity.RoleAssistant
}

func buildView(sess *entity.Session) *dto.SessionViewResponse {
	status := dto.NoticeDTO{Level: constant.NoticeInfo, Text: constant.NoDocumentNotice}
	if latest, ok := sess.LatestDoc(sess.ThreadId); ok {
		status = dto.NoticeDTO{
			Level: constant.NoticeSuccess,
			Text:  fmt.Sprintf(constant.DocumentInUseFormat, latest.Filename, latest.Chunks, latest.Documents),
		}
	}

	sidebar := dto.SidebarResponse{
		Title:          constant.SidebarTitle,
		ThreadId:       sess.ThreadId,
		DocumentStatus: status,
		PastThreads:    sess.ThreadsNewestFirst(),
	}
	if len(sidebar.PastThreads) == 0 {
		sidebar.EmptyThreads = constant.NoPastThreadsNotice
	}

	return &dto.SessionViewResponse{
		Sidebar: sidebar,
		Title:   constant.MainTitle,
		History: toMessageDTOs(sess.History),
	}
}

func toMessageDTOs(history []entity.Message) []dto.MessageDTO {
	out := make([]dto.MessageDTO, 0, len(history))
	for _, m := range history {
		out = append(out, dto.MessageDTO{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func toSummaryDTO(s entity.IngestionSummary) *dto.IngestionSummaryDTO {
	return &dto.IngestionSummaryDTO{
		Filename:  s.Filename,
		Chunks:    s.Chunks,
		Documents: s.Documents,
	}
}
