package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/me/mcsched/internal/config"
	"github.com/me/mcsched/pkg/model"
)

// Runner executes one job and returns the state to report for it:
// a COMPLETED_* state, or ABORTED when ctx was cancelled first.
type Runner interface {
	Run(ctx context.Context, job *model.Job) (model.JobState, error)
}

// RunSpec describes one process execution.
type RunSpec struct {
	Command []string
	WorkDir string
	Env     map[string]string
}

// RunResult captures the output of an execution.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor abstracts process execution for testing.
type Executor interface {
	Exec(ctx context.Context, spec RunSpec) (RunResult, error)
}

// osExecutor runs commands directly on the host.
type osExecutor struct{}

func (osExecutor) Exec(ctx context.Context, spec RunSpec) (RunResult, error) {
	if len(spec.Command) == 0 {
		return RunResult{}, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Env = os.Environ()
	for _, k := range sortedKeys(spec.Env) {
		cmd.Env = append(cmd.Env, k+"="+spec.Env[k])
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	result := RunResult{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		return result, runErr
	}
	return result, nil
}

// CommandRunner runs the command configured for a job's model chain in a
// per-job directory below workDir.
//
// Exit status 0 with empty stderr is COMPLETED_OK, exit status 0 with
// stderr output is COMPLETED_WITH_WARNINGS, and anything else is
// COMPLETED_WITH_ERRORS. A cancelled context yields ABORTED.
type CommandRunner struct {
	chains  []config.ChainCommand
	env     map[string]string
	workDir string
	exec    Executor
	logger  *slog.Logger
}

// NewCommandRunner creates a runner for the given chain commands.
func NewCommandRunner(chains []config.ChainCommand, env map[string]string, workDir string, logger *slog.Logger) *CommandRunner {
	return newCommandRunnerWithExecutor(chains, env, workDir, osExecutor{}, logger)
}

func newCommandRunnerWithExecutor(chains []config.ChainCommand, env map[string]string, workDir string, ex Executor, logger *slog.Logger) *CommandRunner {
	return &CommandRunner{
		chains:  chains,
		env:     env,
		workDir: workDir,
		exec:    ex,
		logger:  logger.With("component", "runner"),
	}
}

// commandFor finds the command for a chain by name and version, ignoring case.
func (r *CommandRunner) commandFor(chain model.ModelChain) []string {
	for _, cc := range r.chains {
		if chain.Matches(cc.Name, cc.Version) {
			return cc.Command
		}
	}
	return nil
}

// Run executes the job's chain command.
func (r *CommandRunner) Run(ctx context.Context, job *model.Job) (model.JobState, error) {
	command := r.commandFor(job.Chain)
	if len(command) == 0 {
		return model.JobStateCompletedWithErrors,
			fmt.Errorf("no command configured for chain %s/%s", job.Chain.Name, job.Chain.Version)
	}

	jobDir := filepath.Join(r.workDir, job.ID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return model.JobStateCompletedWithErrors, fmt.Errorf("create job dir: %w", err)
	}

	env := make(map[string]string, len(r.env)+5)
	for k, v := range r.env {
		env[k] = v
	}
	env["MCSCHED_JOB_ID"] = job.ID
	env["MCSCHED_EXPERIMENT_ID"] = strconv.FormatInt(job.ExperimentID, 10)
	env["MCSCHED_CHAIN"] = job.Chain.Name
	env["MCSCHED_CHAIN_VERSION"] = job.Chain.Version
	env["MCSCHED_WORK_DIR"] = jobDir

	r.logger.Debug("executing job", "job_id", job.ID, "command", command, "dir", jobDir)

	result, runErr := r.exec.Exec(ctx, RunSpec{Command: command, WorkDir: jobDir, Env: env})

	if ctx.Err() != nil {
		return model.JobStateAborted, nil
	}

	if err := writeLogs(jobDir, result); err != nil {
		r.logger.Warn("write job logs failed", "job_id", job.ID, "error", err)
	}

	if runErr != nil {
		return model.JobStateCompletedWithErrors, fmt.Errorf("run %s: %w", command[0], runErr)
	}

	state := outcome(result)
	r.logger.Info("job finished", "job_id", job.ID, "exit_code", result.ExitCode, "state", state)
	return state, nil
}

func outcome(result RunResult) model.JobState {
	switch {
	case result.ExitCode != 0:
		return model.JobStateCompletedWithErrors
	case strings.TrimSpace(result.Stderr) != "":
		return model.JobStateCompletedWithWarnings
	default:
		return model.JobStateCompletedOK
	}
}

func writeLogs(dir string, result RunResult) error {
	if err := os.WriteFile(filepath.Join(dir, "stdout.log"), []byte(result.Stdout), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "stderr.log"), []byte(result.Stderr), 0o644)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
