package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/mcsched/pkg/model"
)

// since renders a timestamp relative to now, or "never" when unset.
func since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func newWorkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "List registered workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var workers []model.Worker
			if err := client.getData("/api/v1/workers", &workers); err != nil {
				return fmt.Errorf("list workers: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(workers) == 0 {
				fmt.Fprintln(out, "No workers registered.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-16s  %-20s  %-13s  %-20s  %s\n", "ID", "NAME", "ADDRESS", "STATE", "LAST HEARTBEAT", "CHAINS")
			for _, w := range workers {
				names := make([]string, len(w.Chains))
				for i, c := range w.Chains {
					names[i] = c.Name + "/" + c.Version
				}
				fmt.Fprintf(out, "%-40s  %-16s  %-20s  %-13s  %-20s  %s\n",
					w.ID, w.Name, w.Address, w.State, since(w.LastHeartbeat), strings.Join(names, ","))
			}
			return nil
		},
	}
}

func newChainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List model chains offered by registered workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var chains []model.ModelChain
			if err := client.getData("/api/v1/chains", &chains); err != nil {
				return fmt.Errorf("list chains: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(chains) == 0 {
				fmt.Fprintln(out, "No chains known.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-24s  %s\n", "ID", "NAME", "VERSION")
			for _, c := range chains {
				fmt.Fprintf(out, "%-40s  %-24s  %s\n", c.ID, c.Name, c.Version)
			}
			return nil
		},
	}
}
