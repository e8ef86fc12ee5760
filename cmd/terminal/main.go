package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rag-chatbot-ui/internal/bootstrap"
	"rag-chatbot-ui/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	backendFlag    string
	backendURLFlag string
	sessionFlag    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatui",
		Short: "Terminal front-end for the RAG chatbot",
		Long:  "chatui drives the same session controller as the web front-end from an interactive prompt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminal(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringVarP(&backendFlag, "backend", "b", "", "override backend provider (http|memory)")
	rootCmd.Flags().StringVar(&backendURLFlag, "backend-url", "", "override backend base URL")
	rootCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "resume a stored session id")

	ctx, stop := rootContext()
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootContext ends the program on SIGTERM only. Ctrl-C belongs to the running reply,
// see repl.turnContext; at the prompt it keeps its default action.
func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM)
}

func runTerminal(ctx context.Context) error {
	cfg := config.Load()
	if backendFlag != "" {
		cfg.Backend.Provider = backendFlag
	}
	if backendURLFlag != "" {
		cfg.Backend.BaseURL = backendURLFlag
	}

	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.Start(ctx); err != nil {
		return err
	}

	sessionId := sessionFlag
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	r := newREPL(container.SessionService, sessionId, os.Stdin, os.Stdout)
	return r.run(ctx)
}
