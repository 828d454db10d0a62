package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler health and counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var data struct {
				Status    string     `json:"status"`
				Version   string     `json:"version"`
				Uptime    string     `json:"uptime"`
				Scheduler string     `json:"scheduler"`
				Passes    uint64     `json:"passes"`
				LastPass  *time.Time `json:"last_pass"`
				Queued    int        `json:"queued"`
				History   int        `json:"history"`
				Workers   int        `json:"workers"`
				Chains    int        `json:"chains"`
				Snapshots string     `json:"snapshots"`
			}
			if err := client.getData("/api/v1/health", &data); err != nil {
				return fmt.Errorf("get status: %w", err)
			}

			lastPass := "never"
			if data.LastPass != nil {
				lastPass = humanize.Time(*data.LastPass)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:    %s (%s, up %s)\n", data.Status, data.Version, data.Uptime)
			fmt.Fprintf(out, "Scheduler: %s, %s passes, last %s\n", data.Scheduler, humanize.Comma(int64(data.Passes)), lastPass)
			fmt.Fprintf(out, "Workers:   %d\n", data.Workers)
			fmt.Fprintf(out, "Chains:    %d\n", data.Chains)
			fmt.Fprintf(out, "Jobs:      %d queued, %d completed\n", data.Queued, data.History)
			fmt.Fprintf(out, "Snapshots: %s\n", data.Snapshots)
			return nil
		},
	}
}
