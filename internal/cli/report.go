package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/callwright/callwright/core/results"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Render an HTML report from saved results",
		Long:  "Report loads every saved test result from the results directory and writes a self-contained HTML report next to them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := results.NewStore(cfg.Paths.Results)
			saved, err := store.LoadAll()
			if err != nil {
				return err
			}
			if len(saved) == 0 {
				return fmt.Errorf("no results found in %s", cfg.Paths.Results)
			}

			path, err := store.WriteReport(saved, results.Summarize(saved))
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}
