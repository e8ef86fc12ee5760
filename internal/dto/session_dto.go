package dto

type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type IngestionSummaryDTO struct {
	Filename  string `json:"filename"`
	Chunks    int    `json:"chunks"`
	Documents int    `json:"documents"`
}

// NoticeDTO is a rendered status line. Level is "success" or "info".
type NoticeDTO struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

type SidebarResponse struct {
	Title          string    `json:"title"`
	ThreadId       string    `json:"thread_id"`
	DocumentStatus NoticeDTO `json:"document_status"`
	PastThreads    []string  `json:"past_threads"`
	EmptyThreads   string    `json:"empty_threads,omitempty"`
}

type SessionViewResponse struct {
	Sidebar SidebarResponse `json:"sidebar"`
	Title   string          `json:"title"`
	History []MessageDTO    `json:"history"`
}

type UploadDocumentResponse struct {
	Status  string               `json:"status"` // "indexed" | "already_processed"
	Notice  NoticeDTO            `json:"notice"`
	Summary *IngestionSummaryDTO `json:"summary,omitempty"`
}

type GetThreadsResponse struct {
	ActiveThreadId string   `json:"active_thread_id"`
	Threads        []string `json:"threads"`
}

type SelectThreadRequest struct {
	ThreadId string `json:"thread_id" validate:"required,max=128"`
}

type SubmitTurnRequest struct {
	Content string `json:"content" validate:"required,max=32000"`
}

type SubmitTurnResponse struct {
	ThreadId string `json:"thread_id"`
	Reply    string `json:"reply"`
	Caption  string `json:"caption,omitempty"`
}

// StreamFrame is one server-sent message of a streamed turn.
type StreamFrame struct {
	Type    string              `json:"type"` // "delta" | "done" | "error"
	Content string              `json:"content,omitempty"`
	Done    *SubmitTurnResponse `json:"done,omitempty"`
	Error   string              `json:"error,omitempty"`
}
