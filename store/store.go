// Package store keeps the outcome of solves: a ledger of runs and a cache of
// solved value tables used to warm start later solves of the same model
package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeu5/mdp-planner/policyiter"
	"github.com/zeu5/mdp-planner/types"
)

var ErrNotFound = errors.New("run not found")

// Run is one recorded solve
type Run struct {
	ID          string            `json:"id"`
	Scenario    string            `json:"scenario"`
	Fingerprint string            `json:"fingerprint"`
	Gamma       float64           `json:"gamma"`
	Theta       float64           `json:"theta"`
	Mode        string            `json:"mode"`
	Seed        uint64            `json:"seed"`
	Status      string            `json:"status"`
	Generations int               `json:"generations"`
	Sweeps      int               `json:"sweeps"`
	Duration    time.Duration     `json:"duration"`
	CreatedAt   time.Time         `json:"created_at"`
	Policy      map[string]string `json:"policy"`
	Values      types.ValueTable  `json:"values"`
}

// NewRun describes the result of solving the scenario with the config
func NewRun(scenario, fingerprint string, config policyiter.Config, result *policyiter.Result) *Run {
	return &Run{
		ID:          uuid.NewString(),
		Scenario:    scenario,
		Fingerprint: fingerprint,
		Gamma:       config.Gamma,
		Theta:       config.Theta,
		Mode:        config.Mode.String(),
		Seed:        config.Seed,
		Status:      result.Status.String(),
		Generations: result.Generations,
		Sweeps:      result.Trace.TotalSweeps(),
		Duration:    result.Duration,
		CreatedAt:   time.Now().UTC(),
		Policy:      result.Policy.Encode(),
		Values:      result.Values,
	}
}

// Ledger records runs
type Ledger interface {
	Save(context.Context, *Run) error
	Get(context.Context, string) (*Run, error)
	// List the most recent runs first, at most limit of them (0 for all)
	List(context.Context, int) ([]*Run, error)
	Close() error
}

// Cache keeps solved value tables by CacheKey
type Cache interface {
	Get(context.Context, string) (types.ValueTable, bool, error)
	Put(context.Context, string, types.ValueTable) error
}

// CacheKey of a model fingerprint and discount factor
func CacheKey(fingerprint string, gamma float64) string {
	return fingerprint + ":" + strconv.FormatFloat(gamma, 'g', -1, 64)
}

// WarmStart looks up the cached table of the model. A table that does not
// cover exactly the states of env is ignored
func WarmStart(ctx context.Context, cache Cache, env types.Environment, fingerprint string, gamma float64) (types.ValueTable, bool, error) {
	values, ok, err := cache.Get(ctx, CacheKey(fingerprint, gamma))
	if err != nil || !ok {
		return nil, false, err
	}
	if err := values.Validate(env); err != nil {
		return nil, false, nil
	}
	return values, true, nil
}
