// Package cli wires the config file, the platform clients, and the harness
// into the callwright command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/callwright/callwright/core/channel"
	"github.com/callwright/callwright/internal/config"
)

// Global flags.
var configPath string

// NewRootCmd builds the callwright command tree. version is stamped at
// build time.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "callwright",
		Short: "Conversation QA harness for voice and text agents",
		Long: `Callwright replays, synthesizes, or improvises conversations against a
deployed agent over its WebSocket channel, captures both sides of the
exchange, has an LLM judge the outcome, and persists results and reports.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newSynthCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newInitCmd())

	return root
}

func loadConfig() (*config.Config, error) {
	return config.ReadConfig(configPath)
}

func newPlatformClient(cfg *config.Config) (*channel.Client, error) {
	client, err := channel.NewClient(cfg.Platform.BaseURL, cfg.Platform.ChannelID,
		channel.WithDeviceID(cfg.Platform.DeviceID))
	if err != nil {
		return nil, fmt.Errorf("failed to build platform client: %w", err)
	}
	return client, nil
}
