package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/callwright/callwright/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Init writes a callwright.yaml populated with the stock defaults to the
--config path. Platform coordinates are left empty for you to fill in;
credentials are read from the environment and never stored in the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(configPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
				}
			}
			if err := config.WriteConfig(configPath, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Println("Wrote", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
