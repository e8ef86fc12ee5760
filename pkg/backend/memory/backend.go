package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"rag-chatbot-ui/pkg/backend"
	"rag-chatbot-ui/pkg/utils"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

type thread struct {
	messages []backend.Message
	document *backend.IngestionSummary
	text     string
}

// Backend is an in-process stand-in for the conversation backend. It keeps threads in
// memory and answers every turn by quoting the indexed document, or echoing the
// question when nothing is indexed.
type Backend struct {
	mu      sync.Mutex
	threads map[string]*thread
	order   []string

	// Delay between streamed increments.
	Delay time.Duration
}

// Ensure Backend implements backend.Backend
var _ backend.Backend = &Backend{}

func NewBackend() *Backend {
	return &Backend{threads: make(map[string]*thread)}
}

func (b *Backend) thread(id string) *thread {
	t, ok := b.threads[id]
	if !ok {
		t = &thread{}
		b.threads[id] = t
		b.order = append(b.order, id)
	}
	return t
}

func (b *Backend) ListThreads(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.order))
	copy(out, b.order)
	return out, nil
}

func (b *Backend) IngestPDF(ctx context.Context, data []byte, threadID, filename string) (*backend.IngestionSummary, error) {
	if len(data) == 0 {
		return nil, &backend.StatusError{Op: "ingest pdf", StatusCode: 422, Body: "empty document"}
	}

	text := utils.ExtractPDFText(data)
	summary := &backend.IngestionSummary{
		Filename:  filename,
		Chunks:    len(utils.SplitText(text, chunkSize, chunkOverlap)),
		Documents: utils.CountPDFPages(data),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.thread(threadID)
	t.document = summary
	t.text = text

	copied := *summary
	return &copied, nil
}

func (b *Backend) ThreadDocumentMetadata(ctx context.Context, threadID string) (*backend.IngestionSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.threads[threadID]
	if !ok || t.document == nil {
		return nil, nil
	}
	copied := *t.document
	return &copied, nil
}

func (b *Backend) GetState(ctx context.Context, threadID string) (*backend.ThreadState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.threads[threadID]
	if !ok {
		return &backend.ThreadState{}, nil
	}
	msgs := make([]backend.Message, len(t.messages))
	copy(msgs, t.messages)
	return &backend.ThreadState{Messages: msgs}, nil
}

func (b *Backend) Stream(ctx context.Context, input backend.StreamInput, cfg backend.RunConfig, mode backend.StreamMode) (<-chan backend.StreamEvent, error) {
	if mode != backend.StreamModeMessages {
		return nil, &backend.StatusError{Op: "stream", StatusCode: 400, Body: fmt.Sprintf("unsupported stream mode %q", mode)}
	}
	threadID := cfg.Configurable.ThreadID
	if threadID == "" {
		return nil, &backend.StatusError{Op: "stream", StatusCode: 400, Body: "missing thread_id"}
	}

	b.mu.Lock()
	t := b.thread(threadID)
	t.messages = append(t.messages, input.Messages...)
	question := lastUserContent(input.Messages)
	answer, toolOutput := compose(question, t)
	b.mu.Unlock()

	meta := map[string]interface{}{"thread_id": threadID, "run_name": cfg.RunName}
	events := make(chan backend.StreamEvent)

	go func() {
		defer close(events)

		send := func(ev backend.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if toolOutput != "" {
			if !send(backend.StreamEvent{Message: backend.Message{Kind: backend.KindTool, Name: "rag_tool", Content: toolOutput}, Metadata: meta}) {
				return
			}
		}

		var full strings.Builder
		for _, word := range strings.SplitAfter(answer, " ") {
			if b.Delay > 0 {
				select {
				case <-time.After(b.Delay):
				case <-ctx.Done():
					return
				}
			}
			if !send(backend.StreamEvent{Message: backend.Message{Kind: backend.KindAssistant, Content: word}, Metadata: meta}) {
				return
			}
			full.WriteString(word)
		}

		b.mu.Lock()
		t.messages = append(t.messages, backend.Message{Kind: backend.KindAssistant, Content: full.String()})
		b.mu.Unlock()
	}()

	return events, nil
}

func lastUserContent(msgs []backend.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == backend.KindUser {
			return msgs[i].Content
		}
	}
	return ""
}

func compose(question string, t *thread) (answer, toolOutput string) {
	if t.document == nil {
		return fmt.Sprintf("You said: %s", question), ""
	}
	chunks := utils.SplitText(t.text, chunkSize, chunkOverlap)
	excerpt := ""
	if len(chunks) > 0 {
		excerpt = strings.Join(strings.Fields(chunks[0]), " ")
	}
	toolOutput = fmt.Sprintf(`{"source_file":%q,"context":[%q]}`, t.document.Filename, excerpt)
	return fmt.Sprintf("From %s: %s", t.document.Filename, excerpt), toolOutput
}
