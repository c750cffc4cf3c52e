package benchmarks

import (
	"errors"
	"os"
	"path"
	"testing"

	"github.com/zeu5/mdp-planner/policyiter"
	"github.com/zeu5/mdp-planner/types"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MDP_PLANNER_CONFIG", "")
	root := GetRootCommand()
	root.SetArgs(append(args, "--color=false", "--log-level", "error"))
	return root.Execute()
}

func TestSolveCommand(t *testing.T) {
	dir := t.TempDir()
	out := path.Join(dir, "values.json")
	err := execute(t, "solve", "--scenario", "standard", "--save", dir, "--out", out, "--record", "--cache")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	values, err := types.LoadValueTable(out)
	if err != nil {
		t.Fatalf("reading values: %v", err)
	}
	if values["(0, 2)"] <= 0 {
		t.Errorf("expected a positive value next to +1, got %v", values["(0, 2)"])
	}
	if _, err := os.Stat(path.Join(dir, "runs.db")); err != nil {
		t.Errorf("expected the ledger to be created: %v", err)
	}
	cached, err := os.ReadDir(path.Join(dir, "cache"))
	if err != nil || len(cached) != 1 {
		t.Errorf("expected one cached table, got %d %v", len(cached), err)
	}

	// the second run warm starts from the cache, the ledger lists both
	if err := execute(t, "solve", "--scenario", "standard", "--save", dir, "--record", "--cache"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := execute(t, "runs", "--save", dir); err != nil {
		t.Errorf("unexpected error listing runs: %v", err)
	}
	if err := execute(t, "runs", "missing", "--save", dir); err == nil {
		t.Errorf("expected an error for a missing run")
	}
}

func TestSolveCommandErrors(t *testing.T) {
	if err := execute(t, "solve", "--scenario", "maze", "--save", t.TempDir()); err == nil {
		t.Errorf("expected an error for an unknown scenario")
	}
	if err := execute(t, "solve", "--gamma", "0", "--save", t.TempDir()); !errors.Is(err, types.ErrInvalidDiscount) {
		t.Errorf("expected ErrInvalidDiscount, got %v", err)
	}
	if err := execute(t, "solve", "--mode", "sideways"); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if err := execute(t, "exact", "--scenario", "standard", "--limit", "10"); !errors.Is(err, policyiter.ErrTooManyPolicies) {
		t.Errorf("expected ErrTooManyPolicies, got %v", err)
	}
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	err := execute(t, "compare", "--save", dir, "--scenarios", "standard,windy", "--runs", "2", "--parallelism", "2", "--record-policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, file := range []string{
		"config.json",
		"comparison_config.json",
		"0_summary.txt",
		"1_summary.txt",
		"plots/0_sweeps.png",
		"plots/1_deltas.png",
		"plots/0_deltas.html",
		"policies/standard-in-place_0_policy.json",
		"policies/windy-synchronous_1_values.json",
	} {
		if _, err := os.Stat(path.Join(dir, file)); err != nil {
			t.Errorf("expected %s: %v", file, err)
		}
	}
}
