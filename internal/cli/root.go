package cli

import (
	"log/slog"
	"os"

	"github.com/me/mcsched/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking MCSCHED_SERVER first.
func defaultServer() string {
	if s := os.Getenv("MCSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the mcsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcsched",
		Short: "mcsched: model chain job scheduler",
		Long:  "mcsched inspects and operates a model chain scheduler: workers, chains, jobs and the scheduling loop.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			var err error
			if logger, err = logging.New(flagLogLevel, flagLogFormat); err != nil {
				return err
			}
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Scheduler URL (or MCSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newStatusCmd(),
		newWorkersCmd(),
		newChainsCmd(),
		newJobsCmd(),
		newHistoryCmd(),
		newSubmitCmd(),
		newReportCmd(),
		newRemoveCmd(),
		newPassCmd(),
		newStartCmd(),
		newStopCmd(),
		newSaveCmd(),
		newLoadCmd(),
		newClearCmd(),
	)

	return root
}
