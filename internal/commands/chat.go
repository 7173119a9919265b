package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cryptobuddy/internal/app"
	"github.com/cryptobuddy/internal/chat"
	"github.com/cryptobuddy/internal/responder"
	"github.com/cryptobuddy/pkg/models"
)

var (
	chatSessionID string
	chatNoDelay   bool
)

// chatCmd runs an interactive chat in the terminal
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with CryptoBuddy in the terminal",
	Long: `Start an interactive chat session.

Type a question and press enter. Type "quit" or "exit" to leave.
When a user is signed in (see the REST API), turns are saved to their history.

Examples:
  cryptobuddy chat                 # New conversation
  cryptobuddy chat --no-delay      # Skip the simulated thinking delay
  cryptobuddy chat --session <id>  # Continue a saved session`,
	RunE: runChat,
}

// chatWatchCmd prints turn events published to NATS
var chatWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow chat turns published to NATS",
	RunE:  runChatWatch,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.AddCommand(chatWatchCmd)

	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Session id to continue")
	chatCmd.Flags().BoolVar(&chatNoDelay, "no-delay", false, "Disable the simulated thinking delay")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	if chatNoDelay {
		cfg.Chat.SimulateDelay = false
	}
	if !verbose {
		setLevel(log, "warn")
	}

	application := app.New(cfg, log)
	if err := application.Initialize(); err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return chatLoop(ctx, application.Orchestrator(), os.Stdin, os.Stdout, chatSessionID)
}

// turnHandler answers one chat turn
type turnHandler interface {
	HandleTurn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResult, error)
}

// chatLoop reads one question per line until quit or EOF
func chatLoop(ctx context.Context, turns turnHandler, in io.Reader, out io.Writer, sessionID string) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "🤖 CryptoBuddy: %s\n\n", responder.Greeting)

	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(text) {
		case "":
			continue
		case "quit", "exit":
			fmt.Fprintln(out, "🤖 CryptoBuddy: Goodbye! 👋 Come back anytime for the latest crypto insights.")
			return nil
		}

		fmt.Fprintln(out, "🤖 CryptoBuddy is thinking...")

		result, err := turns.HandleTurn(ctx, chat.TurnRequest{SessionID: sessionID, Text: text})
		if err != nil {
			return err
		}
		if result.SessionID != "" {
			sessionID = result.SessionID
		}

		fmt.Fprintf(out, "\n🤖 CryptoBuddy: %s\n", result.Reply.Text)
		if len(result.Suggestions) > 0 {
			fmt.Fprintln(out, "\n💡 Try asking:")
			for _, s := range result.Suggestions {
				fmt.Fprintf(out, "  • %s\n", s)
			}
		}
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func runChatWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	if !cfg.NATS.Enabled {
		return fmt.Errorf("NATS is disabled, set NATS_ENABLED=true")
	}

	application := app.New(cfg, log)
	if err := application.Initialize(); err != nil {
		return err
	}
	defer application.Close()

	err = application.NATS().SubscribeTurns(func(e models.TurnEvent) {
		session := e.SessionID
		if session == "" {
			session = "anonymous"
		}
		fmt.Printf("%s  %-36s  %-16s  %-10s  %.2f  %dms  %q\n",
			e.Timestamp.Format("15:04:05"), session, e.ReplyKind, e.Complexity, e.Confidence, e.DurationMS, e.Query)
	})
	if err != nil {
		return err
	}

	fmt.Println("Watching chat turns, press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return nil
}
