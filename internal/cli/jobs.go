package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/mcsched/pkg/model"
)

// jobEntry mirrors a job as the server renders it, with its location.
type jobEntry struct {
	model.Job
	Location string `json:"location"`
}

func printJobs(out io.Writer, jobs []jobEntry, empty string) {
	if len(jobs) == 0 {
		fmt.Fprintln(out, empty)
		return
	}
	fmt.Fprintf(out, "%-40s  %-23s  %-20s  %-10s  %-16s  %s\n", "ID", "STATE", "CHAIN", "EXPERIMENT", "WORKER", "CREATED")
	for _, j := range jobs {
		worker := "-"
		if j.AssignedWorker != nil {
			worker = j.AssignedWorker.Name
			if worker == "" {
				worker = j.AssignedWorker.ID
			}
		}
		fmt.Fprintf(out, "%-40s  %-23s  %-20s  %-10d  %-16s  %s\n",
			j.ID, j.State, j.Chain.Name+"/"+j.Chain.Version, j.ExperimentID, worker, since(j.CreatedAt))
	}
}

func newJobsCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/jobs"
			if state != "" {
				path += "?state=" + url.QueryEscape(strings.ToUpper(state))
			}
			var jobs []jobEntry
			if err := client.getData(path, &jobs); err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			printJobs(cmd.OutOrStdout(), jobs, "No queued jobs.")
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Only show jobs in this state")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List completed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs []jobEntry
			if err := client.getData("/api/v1/jobs/history", &jobs); err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			printJobs(cmd.OutOrStdout(), jobs, "No completed jobs.")
			return nil
		},
	}
}

// resolveChain turns a chain ID or a "name/version" reference into a chain ID.
func resolveChain(ref string) (string, error) {
	name, version, ok := strings.Cut(ref, "/")
	if !ok {
		return ref, nil
	}
	var chains []model.ModelChain
	if err := client.getData("/api/v1/chains", &chains); err != nil {
		return "", fmt.Errorf("list chains: %w", err)
	}
	for _, c := range chains {
		if c.Matches(name, version) {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("no worker offers chain %s", ref)
}

func newSubmitCmd() *cobra.Command {
	var experimentID int64
	cmd := &cobra.Command{
		Use:   "submit <chain-id | name/version>",
		Short: "Queue a job for an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID, err := resolveChain(args[0])
			if err != nil {
				return err
			}

			resp, err := client.Post("/api/v1/jobs", map[string]any{
				"experiment_id": experimentID,
				"chain_id":      chainID,
			})
			if err != nil {
				return fmt.Errorf("submit job: %w", err)
			}

			var job jobEntry
			if err := json.Unmarshal(resp.Data, &job); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job: %s\n", job.ID)
			fmt.Fprintf(out, "  Chain:      %s/%s\n", job.Chain.Name, job.Chain.Version)
			fmt.Fprintf(out, "  Experiment: %d\n", job.ExperimentID)
			fmt.Fprintf(out, "  State:      %s\n", job.State)
			return nil
		},
	}
	cmd.Flags().Int64Var(&experimentID, "experiment", 0, "Experiment ID")
	_ = cmd.MarkFlagRequired("experiment")
	return cmd
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <job-id> <state>",
		Short: "Report a job state as a worker would",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := model.JobState(strings.ToUpper(args[1]))
			if !state.IsClientSettable() {
				return fmt.Errorf("state %q cannot be reported", args[1])
			}

			resp, err := client.Put("/api/v1/jobs/"+args[0]+"/state", map[string]string{"state": string(state)})
			if err != nil {
				return fmt.Errorf("report state: %w", err)
			}

			var job jobEntry
			if err := json.Unmarshal(resp.Data, &job); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s (%s)\n", job.ID, job.State, job.Location)
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Withdraw a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/jobs/" + args[0]); err != nil {
				return fmt.Errorf("remove job: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s removed.\n", args[0])
			return nil
		},
	}
}
