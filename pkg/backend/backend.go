package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageKind is decided once, when a message is decoded from the backend.
type MessageKind int

const (
	KindOther MessageKind = iota
	KindUser
	KindAssistant
	KindTool
)

func (k MessageKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAssistant:
		return "assistant"
	case KindTool:
		return "tool"
	default:
		return "other"
	}
}

// ParseKind maps a wire message type to its kind. Chunk variants share the kind of
// their full message type.
func ParseKind(wireType string) MessageKind {
	switch strings.ToLower(wireType) {
	case "human", "humanmessage", "humanmessagechunk", "user":
		return KindUser
	case "ai", "aimessage", "aimessagechunk", "assistant":
		return KindAssistant
	case "tool", "toolmessage", "toolmessagechunk":
		return KindTool
	default:
		return KindOther
	}
}

// Message is one conversation message as stored or streamed by the backend.
type Message struct {
	Kind    MessageKind
	Content string
	Name    string
}

type wireMessage struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	Name    string          `json:"name,omitempty"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := flattenContent(w.Content)
	if err != nil {
		return fmt.Errorf("decode %s message content: %w", w.Type, err)
	}
	m.Kind = ParseKind(w.Type)
	m.Content = content
	m.Name = w.Name
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	wireType := "ai"
	switch m.Kind {
	case KindUser:
		wireType = "human"
	case KindTool:
		wireType = "tool"
	case KindOther:
		wireType = "other"
	}
	content, _ := json.Marshal(m.Content)
	return json.Marshal(wireMessage{Type: wireType, Content: content, Name: m.Name})
}

// flattenContent accepts either a plain string or a list of content parts.
func flattenContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, part := range parts {
		var text string
		if err := json.Unmarshal(part, &text); err == nil {
			b.WriteString(text)
			continue
		}
		var block struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(part, &block); err != nil {
			return "", err
		}
		if block.Type == "" || block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// IngestionSummary is what the backend reports after indexing a document.
type IngestionSummary struct {
	Filename  string `json:"filename"`
	Chunks    int    `json:"chunks"`
	Documents int    `json:"documents"`
}

// ThreadState is the persisted state of one conversation thread.
type ThreadState struct {
	Messages []Message
}

type StreamMode string

const StreamModeMessages StreamMode = "messages"

type StreamInput struct {
	Messages []Message `json:"messages"`
}

type Configurable struct {
	ThreadID string `json:"thread_id"`
}

// RunConfig travels with every streamed turn so the backend can continue the thread.
type RunConfig struct {
	Configurable Configurable      `json:"configurable"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RunName      string            `json:"run_name,omitempty"`
}

func NewRunConfig(threadID string) RunConfig {
	return RunConfig{
		Configurable: Configurable{ThreadID: threadID},
		Metadata:     map[string]string{"thread_id": threadID},
		RunName:      "chat_turn",
	}
}

// StreamEvent is one (message, metadata) pair. A non-nil Err is always the last event.
type StreamEvent struct {
	Message  Message
	Metadata map[string]interface{}
	Err      error
}

// Backend is the contract of the conversation backend that owns models, indexes and
// persisted threads.
type Backend interface {
	ListThreads(ctx context.Context) ([]string, error)
	IngestPDF(ctx context.Context, data []byte, threadID, filename string) (*IngestionSummary, error)
	// ThreadDocumentMetadata returns nil when the thread has no indexed document.
	ThreadDocumentMetadata(ctx context.Context, threadID string) (*IngestionSummary, error)
	GetState(ctx context.Context, threadID string) (*ThreadState, error)
	// Stream runs one turn. The channel is closed when the turn ends or ctx is done.
	Stream(ctx context.Context, input StreamInput, cfg RunConfig, mode StreamMode) (<-chan StreamEvent, error)
}

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s: status %d, body: %s", e.Op, e.StatusCode, e.Body)
}

// ErrUnavailable marks transport failures talking to the backend.
var ErrUnavailable = errors.New("backend unavailable")

// IsBackendError reports whether err came from the backend rather than from this service.
func IsBackendError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) || errors.Is(err, ErrUnavailable)
}
