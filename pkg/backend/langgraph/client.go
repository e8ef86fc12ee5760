package langgraph

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rag-chatbot-ui/pkg/backend"
)

// Client talks to a LangGraph-style conversation backend over HTTP/JSON.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// Ensure Client implements backend.Backend
var _ backend.Backend = &Client{}

// NewClient builds a client. The timeout applies to request/response calls only;
// streamed turns are bounded by the caller's context instead.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type listThreadsResponse struct {
	Threads []string `json:"threads"`
}

type stateResponse struct {
	Values struct {
		Messages []backend.Message `json:"messages"`
	} `json:"values"`
}

type streamRequest struct {
	Input      backend.StreamInput `json:"input"`
	Config     backend.RunConfig   `json:"config"`
	StreamMode backend.StreamMode  `json:"stream_mode"`
}

type streamLine struct {
	Message  *backend.Message       `json:"message"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    string                 `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (c *Client) ListThreads(ctx context.Context) ([]string, error) {
	var out listThreadsResponse
	if err := c.getJSON(ctx, "list threads", "/threads", &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

func (c *Client) IngestPDF(ctx context.Context, data []byte, threadID, filename string) (*backend.IngestionSummary, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("filename", filename); err != nil {
		return nil, fmt.Errorf("write filename field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.threadURL(threadID, "documents"), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var summary backend.IngestionSummary
	if err := c.doJSON(req, "ingest pdf", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) ThreadDocumentMetadata(ctx context.Context, threadID string) (*backend.IngestionSummary, error) {
	var summary backend.IngestionSummary
	err := c.getJSON(ctx, "thread document metadata", "/threads/"+url.PathEscape(threadID)+"/document", &summary)
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if summary.Filename == "" {
		return nil, nil
	}
	return &summary, nil
}

func (c *Client) GetState(ctx context.Context, threadID string) (*backend.ThreadState, error) {
	var out stateResponse
	if err := c.getJSON(ctx, "get state", "/threads/"+url.PathEscape(threadID)+"/state", &out); err != nil {
		return nil, err
	}
	return &backend.ThreadState{Messages: out.Values.Messages}, nil
}

func (c *Client) Stream(ctx context.Context, input backend.StreamInput, cfg backend.RunConfig, mode backend.StreamMode) (<-chan backend.StreamEvent, error) {
	payload, err := json.Marshal(streamRequest{Input: input, Config: cfg, StreamMode: mode})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.threadURL(cfg.Configurable.ThreadID, "stream"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	// The shared client timeout would cut long generations short.
	streamClient := *c.Client
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: stream: %v", backend.ErrUnavailable, err)
	}
	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &backend.StatusError{Op: "stream", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	events := make(chan backend.StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		readStream(ctx, resp.Body, events)
	}()
	return events, nil
}

func readStream(ctx context.Context, body io.Reader, events chan<- backend.StreamEvent) {
	send := func(ev backend.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var sl streamLine
		if err := json.Unmarshal(line, &sl); err != nil {
			send(backend.StreamEvent{Err: fmt.Errorf("decode stream line: %w", err)})
			return
		}
		if sl.Error != "" {
			send(backend.StreamEvent{Err: &backend.StatusError{Op: "stream", StatusCode: http.StatusBadGateway, Body: sl.Error}})
			return
		}
		if sl.Message == nil {
			continue
		}
		if !send(backend.StreamEvent{Message: *sl.Message, Metadata: sl.Metadata}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			send(backend.StreamEvent{Err: ctx.Err()})
			return
		}
		send(backend.StreamEvent{Err: fmt.Errorf("%w: read stream: %v", backend.ErrUnavailable, err)})
	}
}

func isSuccess(code int) bool {
	return code >= 200 && code <= 299
}

func (c *Client) threadURL(threadID, suffix string) string {
	return c.BaseURL + "/threads/" + url.PathEscape(threadID) + "/" + suffix
}

func (c *Client) getJSON(ctx context.Context, op, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(req, op, out)
}

func (c *Client) doJSON(req *http.Request, op string, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", backend.ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %v", backend.ErrUnavailable, op, err)
	}

	if !isSuccess(resp.StatusCode) {
		return &backend.StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", op, err)
	}
	return nil
}
