package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Scrape every product page once and print knowledge health",
		Long: `Refresh runs one scrape pass regardless of scraper.enabled, stores the
pages in the configured page cache and prints the resulting health report.
A running server picks the cached pages up on its next refresh.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.PassTimeout)
			defer cancel()

			ks, err := buildKnowledge(ctx, cfg, true, logger)
			if err != nil {
				return err
			}
			defer ks.Close()

			if _, err := ks.provider.Refresh(ctx); err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ks.provider.Health())
		},
	}
}
