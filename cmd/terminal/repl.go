package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"rag-chatbot-ui/internal/constant"
	"rag-chatbot-ui/internal/dto"
	"rag-chatbot-ui/internal/service"

	"github.com/fatih/color"
)

const helpText = `/new              start a new chat
/threads          list past conversations
/select <id>      switch to a past conversation
/upload <path>    index a PDF into this chat
/history          print this conversation
/quit             exit`

var (
	userColor      = color.New(color.FgCyan, color.Bold)
	assistantColor = color.New(color.FgGreen, color.Bold)
	noticeColor    = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	captionColor   = color.New(color.Faint)
)

type repl struct {
	svc       service.ISessionService
	sessionId string
	in        *bufio.Scanner
	out       io.Writer

	readFile func(string) ([]byte, error)
	// turnContext scopes one streamed reply; Ctrl-C cancels the reply, not the program.
	turnContext func(context.Context) (context.Context, context.CancelFunc)
}

func newREPL(svc service.ISessionService, sessionId string, in io.Reader, out io.Writer) *repl {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &repl{
		svc:       svc,
		sessionId: sessionId,
		in:        scanner,
		out:       out,
		readFile:  os.ReadFile,
		turnContext: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

func (r *repl) run(ctx context.Context) error {
	view, err := r.svc.Initialize(ctx, r.sessionId)
	if err != nil {
		return err
	}
	r.printView(view)
	fmt.Fprintln(r.out, helpText)

	for {
		userColor.Fprint(r.out, "\n> ")
		if !r.in.Scan() {
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}

		quit, err := r.handle(ctx, line)
		if err != nil {
			errorColor.Fprintf(r.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, r.chat(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		view, err := r.svc.NewChat(ctx, r.sessionId)
		if err != nil {
			return false, err
		}
		noticeColor.Fprintf(r.out, "Thread ID: %s\n", view.Sidebar.ThreadId)
		return false, nil

	case "/threads":
		res, err := r.svc.GetThreads(ctx, r.sessionId)
		if err != nil {
			return false, err
		}
		if len(res.Threads) == 0 {
			fmt.Fprintln(r.out, constant.NoPastThreadsNotice)
			return false, nil
		}
		for _, id := range res.Threads {
			marker := "  "
			if id == res.ActiveThreadId {
				marker = "* "
			}
			fmt.Fprintln(r.out, marker+id)
		}
		return false, nil

	case "/select":
		if arg == "" {
			return false, errors.New("usage: /select <thread id>")
		}
		view, err := r.svc.SelectThread(ctx, r.sessionId, &dto.SelectThreadRequest{ThreadId: arg})
		if err != nil {
			return false, err
		}
		r.printView(view)
		return false, nil

	case "/upload":
		if arg == "" {
			return false, errors.New("usage: /upload <path to pdf>")
		}
		data, err := r.readFile(arg)
		if err != nil {
			return false, err
		}
		res, err := r.svc.UploadDocument(ctx, r.sessionId, filepath.Base(arg), data)
		if err != nil {
			return false, err
		}
		noticeColor.Fprintln(r.out, res.Notice.Text)
		if res.Summary != nil {
			fmt.Fprintf(r.out, constant.DocumentInUseFormat+"\n", res.Summary.Filename, res.Summary.Chunks, res.Summary.Documents)
		}
		return false, nil

	case "/history":
		history, err := r.svc.GetHistory(ctx, r.sessionId)
		if err != nil {
			return false, err
		}
		r.printHistory(history)
		return false, nil

	case "/help":
		fmt.Fprintln(r.out, helpText)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

func (r *repl) chat(ctx context.Context, content string) error {
	turnCtx, cancel := r.turnContext(ctx)
	defer cancel()

	assistantColor.Fprint(r.out, "assistant: ")
	res, err := r.svc.SubmitTurn(turnCtx, r.sessionId, &dto.SubmitTurnRequest{Content: content}, func(delta string) error {
		_, err := fmt.Fprint(r.out, delta)
		return err
	})
	fmt.Fprintln(r.out)
	if err != nil {
		return err
	}
	if res.Caption != "" {
		captionColor.Fprintln(r.out, res.Caption)
	}
	return nil
}

func (r *repl) printView(view *dto.SessionViewResponse) {
	noticeColor.Fprintln(r.out, view.Sidebar.Title)
	fmt.Fprintf(r.out, "Thread ID: %s\n", view.Sidebar.ThreadId)
	fmt.Fprintln(r.out, view.Sidebar.DocumentStatus.Text)
	noticeColor.Fprintln(r.out, view.Title)
	r.printHistory(view.History)
}

func (r *repl) printHistory(history []dto.MessageDTO) {
	for _, m := range history {
		c := assistantColor
		if m.Role == "user" {
			c = userColor
		}
		c.Fprintf(r.out, "%s: ", m.Role)
		fmt.Fprintln(r.out, m.Content)
	}
}
