package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petal-labs/showroom/chat"
	"github.com/petal-labs/showroom/core"
)

type chatFlags struct {
	stream       bool
	sessionID    string
	historyFile  string
	userID       string
	noProducts   bool
	productLimit int
}

func (a *App) newChatCommand() *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the product assistant",
		Long: `Send a message to the product assistant.

Without --stream the full reply is printed once it is ready. With --stream
the reply is printed as it arrives.

Examples:
  showroom chat "Which chairs are in stock?"
  showroom chat --stream --session my-session "Show me glass doors"
  showroom chat --stream --history ./history.json "And in oak?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			if f.stream {
				return a.runStreamingChat(cmd, message, f)
			}
			return a.runChat(cmd, message)
		},
	}
	cmd.Flags().BoolVar(&f.stream, "stream", false, "stream the reply")
	cmd.Flags().StringVar(&f.sessionID, "session", "", "session id for --stream (default: a new random id)")
	cmd.Flags().StringVar(&f.historyFile, "history", "", "JSON file with prior messages for --stream")
	cmd.Flags().StringVar(&f.userID, "user", "", "user id for --stream")
	cmd.Flags().BoolVar(&f.noProducts, "no-products", false, "do not include product context in --stream")
	cmd.Flags().IntVar(&f.productLimit, "product-limit", 0, fmt.Sprintf("products to include in --stream, at most %d", chat.MaxProductLimit))
	return cmd
}

func (a *App) runChat(cmd *cobra.Command, message string) error {
	c, err := a.newClient()
	if err != nil {
		return err
	}
	reply, err := chat.New(c).Send(cmd.Context(), message)
	if err != nil {
		return err
	}
	if a.jsonOutput {
		return a.printJSON(map[string]string{"reply": reply})
	}
	fmt.Fprintln(a.stdout, reply)
	return nil
}

func (a *App) runStreamingChat(cmd *cobra.Command, message string, f chatFlags) error {
	req := &chat.StreamRequest{
		Message:   message,
		SessionID: f.sessionID,
		UserID:    f.userID,
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if f.historyFile != "" {
		history, err := readHistory(f.historyFile)
		if err != nil {
			return err
		}
		req.ChatHistory = history
	}
	if f.noProducts {
		off := false
		req.IncludeProducts = &off
	}
	if cmd.Flags().Changed("product-limit") {
		req.ProductLimit = &f.productLimit
	}

	c, err := a.newClient()
	if err != nil {
		return err
	}
	s, err := chat.New(c).Stream(cmd.Context(), req)
	if err != nil {
		return err
	}
	defer s.Close()

	if a.jsonOutput {
		reply, err := chat.Collect(s)
		if err != nil {
			return err
		}
		return a.printJSON(map[string]string{"sessionId": req.SessionID, "reply": reply})
	}

	for ev := range s.Events() {
		switch ev := ev.(type) {
		case chat.Connected:
			a.logger.Debug("stream connected", zap.String("session_id", req.SessionID))
		case chat.ResponseChunk:
			fmt.Fprint(a.stdout, ev.Data)
		case chat.ErrorEvent:
			if !ev.Terminal() {
				a.logger.Warn("skipped stream event", zap.String("reason", ev.Message))
			}
		}
	}
	fmt.Fprintln(a.stdout)
	return s.Err()
}

func readHistory(path string) ([]core.ChatMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, exitWithCode(ExitValidation, fmt.Errorf("read history: %w", err))
	}
	var history []core.ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, exitWithCode(ExitValidation, fmt.Errorf("parse history %s: %w", path, err))
	}
	return history, nil
}
