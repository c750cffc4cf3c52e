package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeu5/mdp-planner/policyiter"
	"github.com/zeu5/mdp-planner/types"
)

// isolate keeps the user's configuration out of the test
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MDP_PLANNER_CONFIG", "")
}

func TestDefaults(t *testing.T) {
	isolate(t)
	c, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Solver.Gamma != 0.9 || c.Solver.Theta != 1e-3 || c.Solver.Scenario != "penalized" {
		t.Errorf("unexpected solver defaults %+v", c.Solver)
	}
	if c.Store.CacheTTL != 24*time.Hour || c.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("unexpected defaults %+v %+v", c.Store, c.Server)
	}
	if *c != *Default() {
		t.Errorf("loading without overrides should give the defaults")
	}

	pi, err := c.Solver.PolicyIteration(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pi.Gamma != policyiter.DefaultGamma || pi.Mode != policyiter.InPlace || pi.MaxGenerations != policyiter.DefaultMaxGenerations {
		t.Errorf("unexpected solver config %+v", pi)
	}
}

func TestPrecedence(t *testing.T) {
	isolate(t)
	file := path.Join(t.TempDir(), "planner.toml")
	content := `
[solver]
gamma = 0.8
theta = 1e-6
mode = "synchronous"
workers = 4

[store]
cache_ttl = "1h"
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("MDP_PLANNER_CONFIG", file)
	t.Setenv("MDP_PLANNER_SOLVER_THETA", "1e-4")
	t.Setenv("MDP_PLANNER_SOLVER_WORKERS", "2")

	var gamma float64
	var workers int
	cmd := &cobra.Command{Use: "solve"}
	cmd.Flags().Float64Var(&gamma, "gamma", 0.9, "")
	cmd.Flags().IntVar(&workers, "workers", 0, "")
	if err := cmd.Flags().Set("gamma", "0.95"); err != nil {
		t.Fatalf("setting flag: %v", err)
	}

	c, err := Load(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Solver.Gamma != 0.95 {
		t.Errorf("flag should win, got gamma %v", c.Solver.Gamma)
	}
	if c.Solver.Theta != 1e-4 {
		t.Errorf("environment should win over the file, got theta %v", c.Solver.Theta)
	}
	if c.Solver.Workers != 2 {
		t.Errorf("an unset flag should not override the environment, got %d workers", c.Solver.Workers)
	}
	if c.Solver.Mode != "synchronous" || c.Store.CacheTTL != time.Hour {
		t.Errorf("file values should be read, got %+v %+v", c.Solver, c.Store)
	}
}

func TestInvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv("MDP_PLANNER_SOLVER_MODE", "sideways")
	if _, err := Load(nil); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	t.Setenv("MDP_PLANNER_SOLVER_MODE", "")
	t.Setenv("MDP_PLANNER_CONFIG", path.Join(t.TempDir(), "missing.toml"))
	if _, err := Load(nil); err == nil {
		t.Errorf("expected an error for a missing explicit config file")
	}
}

func TestRecordAndLogger(t *testing.T) {
	c := Default()
	c.Output.SavePath = t.TempDir()
	if err := c.Record(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bs, err := os.ReadFile(path.Join(c.Output.SavePath, "config.json"))
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}
	recorded := &Config{}
	if err := json.Unmarshal(bs, recorded); err != nil || *recorded != *c {
		t.Errorf("recorded config differs: %s", bs)
	}

	out := new(bytes.Buffer)
	c.Log = LogConfig{Level: "debug", Format: "json"}
	logger, err := c.Log.Logger(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("generation", "index", 3)
	if !strings.Contains(out.String(), `"index":3`) {
		t.Errorf("expected a json debug record, got %q", out.String())
	}

	c.Log.Level = "loud"
	if _, err := c.Log.Logger(out); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
