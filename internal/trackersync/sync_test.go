package trackersync

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"evalpilot/internal/logging"
	"evalpilot/internal/testsupport"
)

type recordingExecutor struct {
	fail  map[string]bool
	calls [][]string
	envs  [][]string
}

func (r *recordingExecutor) Run(_ context.Context, binary string, args []string, env []string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{binary}, args...))
	r.envs = append(r.envs, env)
	if r.fail[args[len(args)-1]] {
		return []byte("wandb: ERROR api key not configured\n"), errors.New("exit status 1")
	}
	return []byte("Updating iteration 100\n"), nil
}

func TestSyncRunsCommandPerModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sync.Entity = "swiss"
	cfg.Sync.Project = "evals"
	exec := &recordingExecutor{fail: map[string]bool{"--name=a": true}}
	syncer, err := New(cfg, logging.NewNop(), WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results := syncer.Sync(context.Background(), []string{"a", "b"})

	if len(results) != 2 || results[0].OK || !results[1].OK {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Err == nil || results[0].Output == "" {
		t.Fatalf("failed result = %+v", results[0])
	}
	want := []string{"python3", "scripts/update_wandb.py", cfg.Paths.LogsRoot, "--name=b"}
	if !reflect.DeepEqual(exec.calls[1], want) {
		t.Fatalf("call = %v, want %v", exec.calls[1], want)
	}
	for _, kv := range []string{"WANDB_SILENT=true", "WANDB_RESUME=allow", "WANDB_ENTITY=swiss", "WANDB_PROJECT=evals"} {
		if !slices.Contains(exec.envs[1], kv) {
			t.Errorf("env missing %q", kv)
		}
	}
}

func TestNewRequiresCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sync.Command = nil
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestTail(t *testing.T) {
	if got := tail("a\nb\nc\n", 2); got != "b\nc" {
		t.Fatalf("tail = %q", got)
	}
}
