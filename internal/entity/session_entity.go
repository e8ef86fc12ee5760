package entity

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type IngestionSummary struct {
	Filename  string `json:"filename"`
	Chunks    int    `json:"chunks"`
	Documents int    `json:"documents"`
}

// DocumentRecord is one upload of a thread: Key is the uploaded filename, Summary is
// what the backend reported for it.
type DocumentRecord struct {
	Key     string           `json:"key"`
	Summary IngestionSummary `json:"summary"`
}

// Session is the UI state of one browser session.
type Session struct {
	Id           string                      `json:"id"`
	ThreadId     string                      `json:"thread_id"`
	History      []Message                   `json:"message_history"`
	ChatThreads  []string                    `json:"chat_threads"`
	IngestedDocs map[string][]DocumentRecord `json:"ingested_docs"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func NewSession(id, threadId string, knownThreads []string, now time.Time) *Session {
	s := &Session{
		Id:           id,
		History:      []Message{},
		ChatThreads:  []string{},
		IngestedDocs: map[string][]DocumentRecord{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, t := range knownThreads {
		s.AddThread(t)
	}
	s.SwitchThread(threadId)
	return s
}

// HasThread reports whether id is one of the known threads.
func (s *Session) HasThread(id string) bool {
	for _, t := range s.ChatThreads {
		if t == id {
			return true
		}
	}
	return false
}

// AddThread registers id once; repeated calls are no-ops.
func (s *Session) AddThread(id string) {
	if id == "" || s.HasThread(id) {
		return
	}
	s.ChatThreads = append(s.ChatThreads, id)
}

// SwitchThread makes id the active thread and restores both session invariants.
func (s *Session) SwitchThread(id string) {
	s.ThreadId = id
	s.AddThread(id)
	s.EnsureDocs(id)
}

// Normalize repairs a session decoded from storage.
func (s *Session) Normalize() {
	if s.History == nil {
		s.History = []Message{}
	}
	if s.ChatThreads == nil {
		s.ChatThreads = []string{}
	}
	if s.IngestedDocs == nil {
		s.IngestedDocs = map[string][]DocumentRecord{}
	}
	s.AddThread(s.ThreadId)
	s.EnsureDocs(s.ThreadId)
}

func (s *Session) EnsureDocs(threadId string) {
	if s.IngestedDocs == nil {
		s.IngestedDocs = map[string][]DocumentRecord{}
	}
	if _, ok := s.IngestedDocs[threadId]; !ok {
		s.IngestedDocs[threadId] = []DocumentRecord{}
	}
}

func (s *Session) ThreadDocs(threadId string) []DocumentRecord {
	return s.IngestedDocs[threadId]
}

func (s *Session) FindDoc(threadId, key string) (IngestionSummary, bool) {
	for _, d := range s.IngestedDocs[threadId] {
		if d.Key == key {
			return d.Summary, true
		}
	}
	return IngestionSummary{}, false
}

// RecordDoc stores summary under key, replacing an earlier entry in place.
func (s *Session) RecordDoc(threadId, key string, summary IngestionSummary) {
	s.EnsureDocs(threadId)
	docs := s.IngestedDocs[threadId]
	for i, d := range docs {
		if d.Key == key {
			docs[i].Summary = summary
			return
		}
	}
	s.IngestedDocs[threadId] = append(docs, DocumentRecord{Key: key, Summary: summary})
}

// LatestDoc returns the summary of the most recently recorded document of the thread.
func (s *Session) LatestDoc(threadId string) (IngestionSummary, bool) {
	docs := s.IngestedDocs[threadId]
	if len(docs) == 0 {
		return IngestionSummary{}, false
	}
	return docs[len(docs)-1].Summary, true
}

// ThreadsNewestFirst is the sidebar order.
func (s *Session) ThreadsNewestFirst() []string {
	out := make([]string, len(s.ChatThreads))
	for i, t := range s.ChatThreads {
		out[len(out)-1-i] = t
	}
	return out
}

func (s *Session) Append(role Role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]Message{}, s.History...)
	c.ChatThreads = append([]string{}, s.ChatThreads...)
	c.IngestedDocs = make(map[string][]DocumentRecord, len(s.IngestedDocs))
	for k, v := range s.IngestedDocs {
		c.IngestedDocs[k] = append([]DocumentRecord{}, v...)
	}
	return &c
}
