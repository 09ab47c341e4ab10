package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long:  `Start an interactive conversation. Type "exit" or "quit" to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := strings.TrimSpace(chatSessionID)
		if sessionID == "" {
			sessionID = "cli-" + uuid.NewString()
		}
		return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.service, sessionID, verbose)
	},
}

type turnService interface {
	HandleMessage(ctx context.Context, sessionID, text string) (contractx.SessionResponse, error)
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, svc turnService, sessionID string, details bool) error {
	fmt.Fprintln(out, "Shop assistant ready. Ask about products or place an order (exit to quit).")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if isExit(text) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		resp, err := svc.HandleMessage(ctx, sessionID, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "Assistant: something went wrong (%v)\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", resp.Message)
		if details {
			printDetails(out, resp)
		}
	}
}

func printDetails(out io.Writer, resp contractx.SessionResponse) {
	fmt.Fprintf(out, "  [handled_by=%s", resp.HandledBy)
	if resp.OrderStatus != "" {
		fmt.Fprintf(out, " status=%s", resp.OrderStatus)
	}
	if resp.OrderID != "" {
		fmt.Fprintf(out, " order_id=%s", resp.OrderID)
	}
	if len(resp.Products) > 0 {
		fmt.Fprintf(out, " products=%d", len(resp.Products))
	}
	fmt.Fprintln(out, "]")
}

func isExit(text string) bool {
	switch strings.ToLower(text) {
	case "exit", "quit":
		return true
	}
	return false
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "resume a session id (default: new session)")
	rootCmd.AddCommand(chatCmd)
}
