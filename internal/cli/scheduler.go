package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// schedulerCmd builds a command that POSTs to /api/v1/scheduler/<action>
// and prints the result.
func schedulerCmd(action, short string, show func(cmd *cobra.Command, data json.RawMessage) error) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/scheduler/"+action, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", action, err)
			}
			return show(cmd, resp.Data)
		},
	}
}

func newPassCmd() *cobra.Command {
	return schedulerCmd("pass", "Run one scheduling pass now", func(cmd *cobra.Command, data json.RawMessage) error {
		var res struct {
			TimedOut   int `json:"timed_out"`
			Unassigned int `json:"unassigned"`
			Assigned   int `json:"assigned"`
		}
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pass: %d assigned, %d unassigned, %d workers timed out\n",
			res.Assigned, res.Unassigned, res.TimedOut)
		return nil
	})
}

func printRunning(cmd *cobra.Command, data json.RawMessage) error {
	var res struct {
		Running bool `json:"running"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if res.Running {
		fmt.Fprintln(cmd.OutOrStdout(), "Scheduler loop running.")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Scheduler loop stopped.")
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return schedulerCmd("start", "Start the scheduling loop", printRunning)
}

func newStopCmd() *cobra.Command {
	return schedulerCmd("stop", "Stop the scheduling loop", printRunning)
}

func printSnapshot(verb string) func(cmd *cobra.Command, data json.RawMessage) error {
	return func(cmd *cobra.Command, data json.RawMessage) error {
		var res struct {
			Store   string `json:"store"`
			Queued  int    `json:"queued"`
			History int    `json:"history"`
		}
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s queued and %s completed jobs (%s)\n",
			verb, humanize.Comma(int64(res.Queued)), humanize.Comma(int64(res.History)), res.Store)
		return nil
	}
}

func newSaveCmd() *cobra.Command {
	return schedulerCmd("save", "Write a snapshot of the queue and history", printSnapshot("Saved"))
}

func newLoadCmd() *cobra.Command {
	return schedulerCmd("load", "Restore the queue and history from the latest snapshot", printSnapshot("Loaded"))
}

func newClearCmd() *cobra.Command {
	return schedulerCmd("clear", "Drop all workers, chains and jobs (loop must be stopped)",
		func(cmd *cobra.Command, _ json.RawMessage) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Scheduler cleared.")
			return nil
		})
}
