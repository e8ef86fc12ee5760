package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"rag-chatbot-ui/internal/constant"
	"rag-chatbot-ui/internal/dto"
	"rag-chatbot-ui/internal/pkg/logger"
	"rag-chatbot-ui/internal/pkg/serverutils"
	"rag-chatbot-ui/internal/service"
	internalWS "rag-chatbot-ui/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
	NewChat(ctx *fiber.Ctx) error
	UploadDocument(ctx *fiber.Ctx) error
	GetThreads(ctx *fiber.Ctx) error
	SelectThread(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
	HandleWebSocket(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
	hub            *internalWS.Hub
	session        fiber.Handler
	logger         logger.ILogger
}

// NewSessionController wires socket submissions of hub to the session service. hub may be nil.
func NewSessionController(sessionService service.ISessionService, hub *internalWS.Hub, sessionMiddleware fiber.Handler, log logger.ILogger) ISessionController {
	c := &sessionController{
		sessionService: sessionService,
		hub:            hub,
		session:        sessionMiddleware,
		logger:         log,
	}
	if hub != nil {
		hub.OnTurn(c.runSocketTurn)
	}
	return c
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Use(c.session)
	h.Get("", c.Show)
	h.Post("new-chat", c.NewChat)
	h.Post("documents", c.UploadDocument)
	h.Get("threads", c.GetThreads)
	h.Post("threads/select", c.SelectThread)
	h.Get("history", c.GetHistory)
	h.Post("chat", c.Chat)
	h.Get("ws", c.HandleWebSocket)
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Initialize(ctx.UserContext(), serverutils.SessionId(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session view", res))
}

func (c *sessionController) NewChat(ctx *fiber.Ctx) error {
	res, err := c.sessionService.NewChat(ctx.UserContext(), serverutils.SessionId(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success start new chat", res))
}

func (c *sessionController) UploadDocument(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "PDF file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	res, err := c.sessionService.UploadDocument(ctx.UserContext(), serverutils.SessionId(ctx), fileHeader.Filename, data)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success upload document", res))
}

func (c *sessionController) GetThreads(ctx *fiber.Ctx) error {
	res, err := c.sessionService.GetThreads(ctx.UserContext(), serverutils.SessionId(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Past conversations", res))
}

func (c *sessionController) SelectThread(ctx *fiber.Ctx) error {
	var req dto.SelectThreadRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.SelectThread(ctx.UserContext(), serverutils.SessionId(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success select thread", res))
}

func (c *sessionController) GetHistory(ctx *fiber.Ctx) error {
	res, err := c.sessionService.GetHistory(ctx.UserContext(), serverutils.SessionId(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Message history", res))
}

// Chat streams one turn as server-sent events: delta per assistant increment, then done or error.
func (c *sessionController) Chat(ctx *fiber.Ctx) error {
	var req dto.SubmitTurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// Values read from ctx must be captured now, the stream writer runs after the handler returns.
	sessionId := serverutils.SessionId(ctx)
	reqCtx := ctx.UserContext()

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		turnCtx, cancel := context.WithCancel(reqCtx)
		defer cancel()

		sink := func(delta string) error {
			return writeEvent(w, dto.StreamFrame{Type: constant.FrameDelta, Content: delta})
		}

		res, err := c.sessionService.SubmitTurn(turnCtx, sessionId, &req, sink)
		if err != nil {
			c.logger.Warn("SessionController", "Chat stream failed", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
			writeEvent(w, dto.StreamFrame{Type: constant.FrameError, Error: err.Error()})
			return
		}
		writeEvent(w, dto.StreamFrame{Type: constant.FrameDone, Done: res})
	})
	return nil
}

// writeEvent fails once the client has gone, which aborts the turn.
func writeEvent(w *bufio.Writer, frame dto.StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Type, data); err != nil {
		return err
	}
	return w.Flush()
}

func (c *sessionController) HandleWebSocket(ctx *fiber.Ctx) error {
	if c.hub == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Websocket transport is disabled")
	}
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	sessionId := serverutils.SessionId(ctx)
	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info("SessionController", "Starting WebSocket session", map[string]interface{}{"session_id": sessionId})
		internalWS.ServeWs(c.hub, conn, sessionId)
		c.logger.Info("SessionController", "WebSocket session ended", map[string]interface{}{"session_id": sessionId})
	})(ctx)
}

// runSocketTurn streams a socket submission to every socket of the session.
func (c *sessionController) runSocketTurn(ctx context.Context, sessionId string, content string) {
	req := dto.SubmitTurnRequest{Content: content}
	if err := serverutils.ValidateRequest(req); err != nil {
		c.hub.Send(sessionId, dto.StreamFrame{Type: constant.FrameError, Error: err.Error()})
		return
	}

	res, err := c.sessionService.SubmitTurn(ctx, sessionId, &req, func(delta string) error {
		c.hub.Send(sessionId, dto.StreamFrame{Type: constant.FrameDelta, Content: delta})
		return nil
	})
	if err != nil {
		c.hub.Send(sessionId, dto.StreamFrame{Type: constant.FrameError, Error: err.Error()})
		return
	}
	c.hub.Send(sessionId, dto.StreamFrame{Type: constant.FrameDone, Done: res})
}
