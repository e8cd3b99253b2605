package jobqueue

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"evalpilot/internal/config"
)

type stubExecutor struct {
	output []byte
	err    error
	calls  []stubCall
}

type stubCall struct {
	binary string
	args   []string
	env    []string
}

func (s *stubExecutor) Run(_ context.Context, binary string, args []string, env []string) ([]byte, error) {
	s.calls = append(s.calls, stubCall{binary: binary, args: slices.Clone(args), env: slices.Clone(env)})
	return s.output, s.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Paths.LogsRoot = "/logs"
	cfg.Paths.StagingDir = "/scratch/hf_temp"
	cfg.JobEnv.Extra = map[string]string{"HF_HOME": "/scratch/hf"}
	return &cfg
}

func TestListOwnedParsesNames(t *testing.T) {
	exec := &stubExecutor{output: []byte("eval_m_all_100\n\ninteractive\neval_m_A+B_200\neval_broken\n")}
	client, err := NewSlurm(testConfig(), NewCodec("eval", "all"), WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewSlurm: %v", err)
	}

	listing, err := client.ListOwned(context.Background())
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if len(listing.Jobs) != 2 {
		t.Fatalf("jobs = %+v", listing.Jobs)
	}
	if !listing.Jobs[0].Root || !reflect.DeepEqual(listing.Jobs[1].Tasks, []string{"A", "B"}) {
		t.Fatalf("jobs = %+v", listing.Jobs)
	}
	if !reflect.DeepEqual(listing.Malformed, []string{"eval_broken"}) {
		t.Fatalf("malformed = %v", listing.Malformed)
	}
	if !listing.Owns("interactive") || listing.Owns("eval_m_all_300") {
		t.Fatal("Owns mismatch")
	}

	call := exec.calls[0]
	if call.binary != "squeue" || !slices.Contains(call.args, "--me") || !slices.Contains(call.args, "--format=%j") {
		t.Fatalf("unexpected squeue call %+v", call)
	}
}

func TestListOwnedUsesConfiguredOwner(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.Owner = "alice"
	exec := &stubExecutor{}
	client, err := NewSlurm(cfg, NewCodec("eval", "all"), WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewSlurm: %v", err)
	}
	if _, err := client.ListOwned(context.Background()); err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if !slices.Contains(exec.calls[0].args, "--user=alice") || slices.Contains(exec.calls[0].args, "--me") {
		t.Fatalf("args = %v", exec.calls[0].args)
	}
}

func TestListOwnedPropagatesFailure(t *testing.T) {
	exec := &stubExecutor{err: errors.New("slurm_load_jobs error")}
	client, _ := NewSlurm(testConfig(), NewCodec("eval", "all"), WithExecutor(exec))
	if _, err := client.ListOwned(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubmitBuildsArgumentsAndEnvironment(t *testing.T) {
	exec := &stubExecutor{output: []byte("Submitted batch job 42\n")}
	client, err := NewSlurm(testConfig(), NewCodec("eval", "all"), WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewSlurm: %v", err)
	}

	res := client.Submit(context.Background(), Submission{
		Job:           JobID{Model: "llama", Iteration: 150, Tasks: []string{"A", "C"}},
		ModelDir:      "/ckpt/llama",
		TokensPerIter: "4194304",
		Size:          8,
	})
	if !res.OK || res.ExitCode != 0 || res.Name != "eval_llama_A+C_150" {
		t.Fatalf("result = %+v", res)
	}
	if res.Output != "Submitted batch job 42" {
		t.Fatalf("output = %q", res.Output)
	}

	call := exec.calls[0]
	wantArgs := []string{"--job-name=eval_llama_A+C_150", "scripts/evaluate.sbatch", "/ckpt/llama", "150", "4194304", "llama"}
	if call.binary != "sbatch" || !reflect.DeepEqual(call.args, wantArgs) {
		t.Fatalf("call = %+v", call)
	}
	for _, want := range []string{"LOGS_ROOT=/logs", "TASKS=A C", "SIZE=8", "BOS=true", "HF_TEMP_DIR=/scratch/hf_temp", "HF_HOME=/scratch/hf", "TOKENIZER=alehc/swissai-tokenizer"} {
		if !slices.Contains(call.env, want) {
			t.Errorf("env missing %q", want)
		}
	}
}

func TestSubmitRootJobPassesLeafTasks(t *testing.T) {
	cat := testCatalog(t)
	exec := &stubExecutor{}
	client, _ := NewSlurm(testConfig(), NewCodec("eval", cat.RootAggregate()), WithExecutor(exec))

	tasks := []string{"A", "B", "C"}
	res := client.Submit(context.Background(), Submission{
		Job:      NewJobID(cat, "m", 100, tasks),
		Tasks:    tasks,
		ModelDir: "/ckpt/m",
	})
	if !res.OK || res.Name != "eval_m_all_100" {
		t.Fatalf("result = %+v", res)
	}
	env := exec.calls[0].env
	if !slices.Contains(env, "TASKS=A B C") {
		t.Fatalf("root job must run the leaf tasks, env = %v", env)
	}
	if slices.Contains(env, "TASKS=all") {
		t.Fatalf("root alias leaked into TASKS: %v", env)
	}
}

func TestSubmitRootJobWithoutTasksFails(t *testing.T) {
	exec := &stubExecutor{}
	client, _ := NewSlurm(testConfig(), NewCodec("eval", "all"), WithExecutor(exec))
	res := client.Submit(context.Background(), Submission{
		Job:      JobID{Model: "m", Iteration: 1, Root: true},
		ModelDir: "/ckpt/m",
	})
	if res.OK || len(exec.calls) != 0 {
		t.Fatalf("result = %+v, calls = %d", res, len(exec.calls))
	}
}

func TestSubmitReportsFailure(t *testing.T) {
	exec := &stubExecutor{output: []byte("sbatch: error: invalid partition\n"), err: errors.New("exit status 1")}
	client, _ := NewSlurm(testConfig(), NewCodec("eval", "all"), WithExecutor(exec))

	res := client.Submit(context.Background(), Submission{
		Job:      JobID{Model: "m", Iteration: 1, Root: true},
		Tasks:    []string{"a", "b"},
		ModelDir: "/ckpt/m",
	})
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Reason == "" || !strings.Contains(res.Output, "invalid partition") {
		t.Fatalf("result = %+v", res)
	}
}

func TestSubmitWithoutModelDirFails(t *testing.T) {
	exec := &stubExecutor{}
	client, _ := NewSlurm(testConfig(), NewCodec("eval", "all"), WithExecutor(exec))
	res := client.Submit(context.Background(), Submission{Job: JobID{Model: "m", Iteration: 1, Root: true}})
	if res.OK || len(exec.calls) != 0 {
		t.Fatalf("result = %+v, calls = %d", res, len(exec.calls))
	}
}

func TestSubmitDryRunSkipsExecution(t *testing.T) {
	exec := &stubExecutor{}
	client, _ := NewSlurm(testConfig(), NewCodec("eval", "all"), WithExecutor(exec), WithDryRun(true))
	res := client.Submit(context.Background(), Submission{
		Job:      JobID{Model: "m", Iteration: 1, Root: true},
		Tasks:    []string{"a", "b"},
		ModelDir: "/ckpt/m",
	})
	if !res.OK || !res.DryRun || len(exec.calls) != 0 {
		t.Fatalf("result = %+v, calls = %d", res, len(exec.calls))
	}
	if !strings.HasPrefix(res.Output, "sbatch --job-name=eval_m_all_1") {
		t.Fatalf("output = %q", res.Output)
	}
}
