package store

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/model"
	"github.com/zeu5/mdp-planner/policyiter"
)

func solvedRun(t *testing.T, scenario string) (*model.Model, *Run) {
	t.Helper()
	w, err := grid.Scenario(scenario, grid.DefaultStepCost)
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	m, err := w.Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	config := policyiter.DefaultConfig()
	result, err := policyiter.Solve(context.Background(), m, config)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	return m, NewRun(scenario, m.Fingerprint(), config, result)
}

func TestSQLiteLedger(t *testing.T) {
	dbPath := path.Join(t.TempDir(), "runs.db")
	ledger, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	_, first := solvedRun(t, "standard")
	_, second := solvedRun(t, "windy")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	for _, r := range []*Run{first, second} {
		if err := ledger.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := ledger.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Scenario != "standard" || got.Status != "converged" || got.Sweeps != first.Sweeps {
		t.Errorf("unexpected run %+v", got)
	}
	if got.Values.MaxDiff(first.Values) != 0 || len(got.Policy) != len(first.Policy) {
		t.Errorf("policy and values should round trip")
	}
	if !got.CreatedAt.Equal(first.CreatedAt) || got.Duration != first.Duration {
		t.Errorf("timestamps should round trip, got %v and %v", got.CreatedAt, got.Duration)
	}

	if _, err := ledger.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	runs, err := ledger.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != second.ID {
		t.Errorf("expected the latest run first, got %v", runs)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// reopening keeps the runs and the schema
	ledger, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ledger.Close()
	runs, err = ledger.List(ctx, 0)
	if err != nil || len(runs) != 2 {
		t.Errorf("expected both runs after reopening, got %d %v", len(runs), err)
	}
}

func TestSQLiteLedgerDuplicateID(t *testing.T) {
	ledger, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ledger.Close()
	_, run := solvedRun(t, "standard")
	if err := ledger.Save(context.Background(), run); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := ledger.Save(context.Background(), run); err == nil {
		t.Errorf("saving the same run twice should fail")
	}
}

func TestRedisCache(t *testing.T) {
	s := miniredis.RunT(t)
	cache, err := DialRedis(context.Background(), s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cache.Close()
	ctx := context.Background()

	m, run := solvedRun(t, "penalized")
	key := CacheKey(run.Fingerprint, run.Gamma)
	if _, ok, err := cache.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected a miss, got %v %v", ok, err)
	}
	if err := cache.Put(ctx, key, run.Values); err != nil {
		t.Fatalf("put: %v", err)
	}
	values, ok, err := WarmStart(ctx, cache, m, run.Fingerprint, run.Gamma)
	if err != nil || !ok {
		t.Fatalf("expected a hit, got %v %v", ok, err)
	}
	if values.MaxDiff(run.Values) != 0 {
		t.Errorf("cached values differ")
	}
	if _, ok, _ := WarmStart(ctx, cache, m, run.Fingerprint, 0.5); ok {
		t.Errorf("another discount should miss")
	}

	s.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, key); ok {
		t.Errorf("expected the entry to expire")
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()
	if _, err := DialRedis(context.Background(), addr, 0); err == nil {
		t.Errorf("expected an error dialing a closed server")
	}
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: addr}), 0)
	defer cache.Close()
	if _, _, err := cache.Get(context.Background(), "key"); err == nil {
		t.Errorf("expected an error reading from a closed server")
	}
}

func TestFileCacheWarmStart(t *testing.T) {
	cache := NewFileCache(path.Join(t.TempDir(), "cache"))
	ctx := context.Background()
	m, run := solvedRun(t, "windy")
	other, err := model.NewBuilder(model.Labels("stay")...).
		AddState(model.Label("only"), true).
		Build()
	if err != nil {
		t.Fatalf("model: %v", err)
	}

	if _, ok, err := WarmStart(ctx, cache, m, run.Fingerprint, run.Gamma); ok || err != nil {
		t.Fatalf("expected a miss, got %v %v", ok, err)
	}
	if err := cache.Put(ctx, CacheKey(run.Fingerprint, run.Gamma), run.Values); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, err := WarmStart(ctx, cache, m, run.Fingerprint, run.Gamma); !ok || err != nil {
		t.Fatalf("expected a hit, got %v %v", ok, err)
	}
	// a table of other states is not a warm start
	if _, ok, _ := WarmStart(ctx, cache, other, run.Fingerprint, run.Gamma); ok {
		t.Errorf("expected a table of another model to be ignored")
	}
}
