package benchmarks

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/model"
	"github.com/zeu5/mdp-planner/store"
)

// loadScenario builds the configured world and its model
func loadScenario() (*grid.World, *model.Model, error) {
	world, err := grid.Scenario(cfg.Solver.Scenario, cfg.Solver.StepCost)
	if err != nil {
		return nil, nil, err
	}
	m, err := world.Model()
	if err != nil {
		return nil, nil, fmt.Errorf("scenario %s: %w", cfg.Solver.Scenario, err)
	}
	return world, m, nil
}

// openCache returns the redis cache when an address is configured and the
// file cache otherwise. The closer is never nil
func openCache(ctx context.Context) (store.Cache, func() error, error) {
	if cfg.Store.Redis != "" {
		c, err := store.DialRedis(ctx, cfg.Store.Redis, cfg.Store.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using the redis cache", "addr", cfg.Store.Redis)
		return c, c.Close, nil
	}
	dir := cfg.Store.CacheDir
	if dir == "" {
		dir = path.Join(cfg.Output.SavePath, "cache")
	}
	logger.Debug("using the file cache", "dir", dir)
	return store.NewFileCache(dir), func() error { return nil }, nil
}

// openLedger opens the configured sqlite ledger, defaulting to runs.db in the save folder
func openLedger() (*store.SQLiteLedger, error) {
	dbPath := cfg.Store.Database
	if dbPath == "" {
		dbPath = path.Join(cfg.Output.SavePath, "runs.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(path.Dir(dbPath), os.ModePerm); err != nil {
			return nil, err
		}
	}
	return store.OpenSQLite(dbPath)
}
