package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kasbot/internal/entities"
	"kasbot/internal/usecases"
)

func newAskCmd() *cobra.Command {
	var contextJSON string

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Answer one message and print the reply as JSON",
		Long: `Ask runs a single dialog turn against the knowledge file and any cached
product pages, without scraping. Feed the printed context back with --context
to continue a conversation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var rawCtx any
			if contextJSON != "" {
				if err := json.Unmarshal([]byte(contextJSON), &rawCtx); err != nil {
					return fmt.Errorf("invalid --context: %w", err)
				}
			}

			ks, err := buildKnowledge(ctx, cfg, false, logger)
			if err != nil {
				return err
			}
			defer ks.Close()
			if _, err := ks.provider.Refresh(ctx); err != nil {
				return err
			}

			dialog := usecases.NewDialogService(ks.provider, usecases.ReplyFormatter{Strict: cfg.Reply.Strict}, logger)
			reply, err := dialog.Respond(ctx, entities.Message{
				From:     "cli",
				Content:  strings.Join(args, " "),
				Platform: "cli",
			}, entities.ParseContext(rawCtx))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"reply":       reply.Text,
				"context":     reply.Context.Map(),
				"suggestions": reply.Suggestions,
				"rule":        reply.Rule,
			})
		},
	}

	cmd.Flags().StringVar(&contextJSON, "context", "", "conversation context JSON from a previous turn")
	return cmd
}
