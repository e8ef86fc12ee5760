package controller

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rag-chatbot-ui/internal/constant"
	"rag-chatbot-ui/internal/dto"
	"rag-chatbot-ui/internal/pkg/logger"
	"rag-chatbot-ui/internal/pkg/serverutils"
	"rag-chatbot-ui/internal/repository/memory"
	"rag-chatbot-ui/internal/service"
	memoryBackend "rag-chatbot-ui/pkg/backend/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "chat_session"

const samplePDF = "%PDF-1.4\n1 0 obj << /Type /Pages /Kids [2 0 R] >> endobj\n" +
	"2 0 obj << /Type /Page /Parent 1 0 R >> endobj\n" +
	"BT (Quarterly revenue grew) Tj ET\n%%EOF"

type testClient struct {
	t      *testing.T
	app    *fiber.App
	cookie *http.Cookie
}

func newTestApp(t *testing.T) *testClient {
	t.Helper()
	log := logger.NewNopLogger()
	svc := service.NewSessionService(memory.NewSessionRepository(time.Hour), memoryBackend.NewBackend(), nil, log)
	ctrl := NewSessionController(svc, nil, serverutils.SessionMiddleware(testCookie, "secret", time.Hour), log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	ctrl.RegisterRoutes(app.Group("/api"))
	return &testClient{t: t, app: app}
}

func (c *testClient) do(req *http.Request) *http.Response {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Name == testCookie {
			c.cookie = &http.Cookie{Name: ck.Name, Value: ck.Value}
		}
	}
	return resp
}

func (c *testClient) doJSON(method, path string, body interface{}) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var body serverutils.Response[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	return body.Data
}

func (c *testClient) upload(filename, content string) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(c.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/session/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

type sseEvent struct {
	name  string
	frame dto.StreamFrame
}

func readEvents(t *testing.T, r io.Reader) []sseEvent {
	t.Helper()
	var out []sseEvent
	var name string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var frame dto.StreamFrame
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
			out = append(out, sseEvent{name: name, frame: frame})
		}
	}
	return out
}

func TestShowIsStablePerCookie(t *testing.T) {
	c := newTestApp(t)

	resp := c.doJSON(http.MethodGet, "/api/session/v1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[dto.SessionViewResponse](t, resp)

	assert.Equal(t, constant.SidebarTitle, first.Sidebar.Title)
	assert.Equal(t, constant.MainTitle, first.Title)
	assert.Equal(t, constant.NoDocumentNotice, first.Sidebar.DocumentStatus.Text)
	assert.Equal(t, []string{first.Sidebar.ThreadId}, first.Sidebar.PastThreads)

	second := decode[dto.SessionViewResponse](t, c.doJSON(http.MethodGet, "/api/session/v1", nil))
	assert.Equal(t, first.Sidebar.ThreadId, second.Sidebar.ThreadId)

	// Without the cookie a different browser session starts.
	other := newTestApp(t)
	third := decode[dto.SessionViewResponse](t, other.doJSON(http.MethodGet, "/api/session/v1", nil))
	assert.NotEqual(t, first.Sidebar.ThreadId, third.Sidebar.ThreadId)
}

func TestChatStreamsServerSentEvents(t *testing.T) {
	c := newTestApp(t)
	view := decode[dto.SessionViewResponse](t, c.doJSON(http.MethodGet, "/api/session/v1", nil))

	resp := c.doJSON(http.MethodPost, "/api/session/v1/chat", dto.SubmitTurnRequest{Content: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	evs := readEvents(t, resp.Body)
	require.NotEmpty(t, evs)

	var reply strings.Builder
	for _, ev := range evs[:len(evs)-1] {
		assert.Equal(t, "delta", ev.name)
		reply.WriteString(ev.frame.Content)
	}
	last := evs[len(evs)-1]
	require.Equal(t, "done", last.name)
	assert.Equal(t, "You said: hello", reply.String())
	assert.Equal(t, &dto.SubmitTurnResponse{ThreadId: view.Sidebar.ThreadId, Reply: "You said: hello"}, last.frame.Done)

	history := decode[[]dto.MessageDTO](t, c.doJSON(http.MethodGet, "/api/session/v1/history", nil))
	assert.Equal(t, []dto.MessageDTO{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "You said: hello"},
	}, history)
}

func TestChatRejectsEmptyContent(t *testing.T) {
	c := newTestApp(t)

	resp := c.doJSON(http.MethodPost, "/api/session/v1/chat", dto.SubmitTurnRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadDocument(t *testing.T) {
	c := newTestApp(t)

	res := decode[dto.UploadDocumentResponse](t, c.upload("report.pdf", samplePDF))
	assert.Equal(t, constant.UploadStatusIndexed, res.Status)
	assert.Equal(t, constant.DocumentIndexedStatus, res.Notice.Text)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 1, res.Summary.Documents)

	res = decode[dto.UploadDocumentResponse](t, c.upload("report.pdf", samplePDF))
	assert.Equal(t, constant.UploadStatusProcessed, res.Status)
	assert.Equal(t, "`report.pdf` already processed for this chat.", res.Notice.Text)

	view := decode[dto.SessionViewResponse](t, c.doJSON(http.MethodGet, "/api/session/v1", nil))
	assert.Equal(t, constant.NoticeSuccess, view.Sidebar.DocumentStatus.Level)
	assert.Equal(t, "Using `report.pdf` (1 chunks from 1 pages)", view.Sidebar.DocumentStatus.Text)

	resp := c.doJSON(http.MethodPost, "/api/session/v1/chat", dto.SubmitTurnRequest{Content: "summary?"})
	evs := readEvents(t, resp.Body)
	require.NotEmpty(t, evs)
	done := evs[len(evs)-1].frame.Done
	require.NotNil(t, done)
	assert.Equal(t, "Document indexed: report.pdf (chunks: 1, pages: 1)", done.Caption)
	assert.Contains(t, done.Reply, "Quarterly revenue grew")
}

func TestUploadRejectsNonPDF(t *testing.T) {
	c := newTestApp(t)

	resp := c.upload("notes.txt", "plain text")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/api/session/v1/documents", nil)
	resp = c.do(req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestThreadsAndSelect(t *testing.T) {
	c := newTestApp(t)

	first := decode[dto.SessionViewResponse](t, c.doJSON(http.MethodGet, "/api/session/v1", nil))
	evs := readEvents(t, c.doJSON(http.MethodPost, "/api/session/v1/chat", dto.SubmitTurnRequest{Content: "first thread"}).Body)
	require.NotEmpty(t, evs)

	second := decode[dto.SessionViewResponse](t, c.doJSON(http.MethodPost, "/api/session/v1/new-chat", nil))
	assert.NotEqual(t, first.Sidebar.ThreadId, second.Sidebar.ThreadId)
	assert.Empty(t, second.History)

	threads := decode[dto.GetThreadsResponse](t, c.doJSON(http.MethodGet, "/api/session/v1/threads", nil))
	assert.Equal(t, second.Sidebar.ThreadId, threads.ActiveThreadId)
	assert.Equal(t, []string{second.Sidebar.ThreadId, first.Sidebar.ThreadId}, threads.Threads)

	selected := decode[dto.SessionViewResponse](t, c.doJSON(http.MethodPost, "/api/session/v1/threads/select", dto.SelectThreadRequest{ThreadId: first.Sidebar.ThreadId}))
	assert.Equal(t, first.Sidebar.ThreadId, selected.Sidebar.ThreadId)
	assert.Equal(t, []dto.MessageDTO{
		{Role: "user", Content: "first thread"},
		{Role: "assistant", Content: "You said: first thread"},
	}, selected.History)

	resp := c.doJSON(http.MethodPost, "/api/session/v1/threads/select", dto.SelectThreadRequest{ThreadId: "unknown"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = c.doJSON(http.MethodPost, "/api/session/v1/threads/select", dto.SelectThreadRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	c := newTestApp(t)

	resp := c.doJSON(http.MethodGet, "/api/session/v1/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
