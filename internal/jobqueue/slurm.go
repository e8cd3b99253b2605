package jobqueue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"evalpilot/internal/config"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, env []string) ([]byte, error)
}

// Option configures the Slurm client.
type Option func(*Slurm)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(s *Slurm) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithDryRun makes Submit report what it would run without running it.
func WithDryRun(dryRun bool) Option {
	return func(s *Slurm) {
		s.dryRun = dryRun
	}
}

// Slurm lists and submits jobs through squeue and sbatch.
type Slurm struct {
	codec         Codec
	listCommand   string
	submitCommand string
	script        string
	owner         string
	timeout       time.Duration
	env           map[string]string
	exec          Executor
	dryRun        bool
}

// NewSlurm constructs a Slurm client from configuration.
func NewSlurm(cfg *config.Config, codec Codec, opts ...Option) (*Slurm, error) {
	if cfg == nil {
		return nil, errors.New("slurm: config required")
	}
	s := &Slurm{
		codec:         codec,
		listCommand:   strings.TrimSpace(cfg.Queue.ListCommand),
		submitCommand: strings.TrimSpace(cfg.Queue.SubmitCommand),
		script:        strings.TrimSpace(cfg.Queue.Script),
		owner:         strings.TrimSpace(cfg.Queue.Owner),
		timeout:       time.Duration(cfg.Queue.CommandTimeout) * time.Second,
		env:           jobEnvironment(cfg),
		exec:          commandExecutor{},
	}
	if s.listCommand == "" || s.submitCommand == "" {
		return nil, errors.New("slurm: list and submit commands required")
	}
	if s.script == "" {
		return nil, errors.New("slurm: job script required")
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func jobEnvironment(cfg *config.Config) map[string]string {
	env := map[string]string{
		"LOGS_ROOT":   cfg.Paths.LogsRoot,
		"TOKENIZER":   cfg.JobEnv.Tokenizer,
		"BOS":         strconv.FormatBool(cfg.JobEnv.BOS),
		"HF_TEMP_DIR": cfg.Paths.StagingDir,
	}
	for key, value := range cfg.JobEnv.Extra {
		if key = strings.TrimSpace(key); key != "" {
			env[key] = value
		}
	}
	return env
}

// ListOwned returns the jobs queued or running under the configured owner.
func (s *Slurm) ListOwned(ctx context.Context) (Listing, error) {
	args := []string{"--noheader", "--format=%j"}
	if s.owner == "" {
		args = append(args, "--me")
	} else {
		args = append(args, "--user="+s.owner)
	}

	runCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	out, err := s.exec.Run(runCtx, s.listCommand, args, nil)
	if err != nil {
		return Listing{}, fmt.Errorf("%s: %w", s.listCommand, err)
	}
	return s.parseListing(out), nil
}

func (s *Slurm) parseListing(out []byte) Listing {
	var listing Listing
	for _, line := range strings.Split(string(out), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		listing.Names = append(listing.Names, name)
		id, err := s.codec.Decode(name)
		switch {
		case err == nil:
			listing.Jobs = append(listing.Jobs, id)
		case errors.Is(err, ErrMalformedJobName):
			listing.Malformed = append(listing.Malformed, name)
		}
	}
	return listing
}

// Submit submits one evaluation job. Failures are reported in the result.
func (s *Slurm) Submit(ctx context.Context, sub Submission) SubmitResult {
	result := SubmitResult{Job: sub.Job, ExitCode: -1}
	name, err := s.codec.Encode(sub.Job)
	if err != nil {
		result.Reason = err.Error()
		return result
	}
	result.Name = name
	if strings.TrimSpace(sub.ModelDir) == "" {
		result.Reason = "model directory not resolved"
		return result
	}
	if len(leafTasks(sub)) == 0 {
		result.Reason = "no leaf tasks to run"
		return result
	}

	args := []string{
		"--job-name=" + name,
		s.script,
		sub.ModelDir,
		strconv.Itoa(sub.Job.Iteration),
		sub.TokensPerIter,
		sub.Job.Model,
	}
	if s.dryRun {
		result.OK = true
		result.DryRun = true
		result.ExitCode = 0
		result.Output = s.submitCommand + " " + strings.Join(args, " ")
		return result
	}

	env := s.submissionEnv(sub)
	runCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	out, err := s.exec.Run(runCtx, s.submitCommand, args, env)
	result.Output = strings.TrimSpace(string(out))
	if err != nil {
		result.Reason = err.Error()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result
	}
	result.OK = true
	result.ExitCode = 0
	return result
}

// SubmissionEnv returns the variables layered over the process environment
// for sub, sorted by key.
func (s *Slurm) SubmissionEnv(sub Submission) []string {
	vars := make(map[string]string, len(s.env)+2)
	for key, value := range s.env {
		vars[key] = value
	}
	vars["SIZE"] = strconv.Itoa(sub.Size)
	vars["TASKS"] = strings.Join(leafTasks(sub), " ")

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+vars[key])
	}
	return out
}

// leafTasks returns the tasks the job script runs. The root alias is never
// passed to the script.
func leafTasks(sub Submission) []string {
	if len(sub.Tasks) > 0 {
		return sub.Tasks
	}
	if sub.Job.Root {
		return nil
	}
	return sub.Job.Tasks
}

func (s *Slurm) submissionEnv(sub Submission) []string {
	return append(os.Environ(), s.SubmissionEnv(sub)...)
}

func (s *Slurm) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if env != nil {
		cmd.Env = env
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}
