package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [conversation-id...]",
		Short: "Download step audio for recorded conversations",
		Long: `Fetch retrieves each conversation's archive from the platform and downloads
the caller's per-step audio into the downloads directory, ready for replay.

Conversation IDs given as arguments override the configured list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Platform.BaseURL == "" {
				return errors.New("platform.base_url is not configured")
			}

			ids := args
			if len(ids) == 0 {
				ids = cfg.Conversations.IDs
			}
			if len(ids) == 0 {
				return errors.New("no conversation ids given")
			}

			client, err := newPlatformClient(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			for _, id := range ids {
				conv, err := client.FetchConversation(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to fetch conversation %s: %w", id, err)
				}
				downloads, err := client.DownloadStepAudio(ctx, conv.Steps, cfg.Paths.Downloads)
				if err != nil {
					return fmt.Errorf("failed to download step audio for %s: %w", id, err)
				}
				for _, download := range downloads {
					if download.Err != nil {
						fmt.Printf("%s step %d: %v\n", id, download.Step, download.Err)
						continue
					}
					fmt.Printf("%s step %d: %s (%d bytes)\n", id, download.Step, download.Path, download.Size)
				}
			}
			return nil
		},
	}
}
