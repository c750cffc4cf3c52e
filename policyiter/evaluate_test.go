package policyiter

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/model"
	"github.com/zeu5/mdp-planner/types"
)

// nanRewards reports NaN for every reward of an otherwise valid model
type nanRewards struct {
	*model.Model
}

func (n nanRewards) Reward(s types.State, a types.Action, next types.State) float64 {
	return math.NaN()
}

func TestEvaluateWarmStartKeepsTerminals(t *testing.T) {
	m := gridModel(t, grid.Standard())
	policy := firstActionPolicy(m)
	init := types.NewValueTable(m)
	goal := grid.Position{I: 0, J: 3}
	init.Set(goal, 5.0)

	values, stats, err := Evaluate(context.Background(), m, policy, init, DefaultEvalOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats.Converged {
		t.Fatalf("expected evaluation to converge")
	}
	if v := values.Get(goal); v != 5.0 {
		t.Errorf("terminal value should keep its warm start, got %v", v)
	}
	if init.Get(grid.Position{I: 0, J: 0}) != 0 {
		t.Errorf("warm start table was mutated")
	}
	if stats.Delta() >= DefaultTheta {
		t.Errorf("last sweep delta %v is not below theta", stats.Delta())
	}
}

func TestEvaluateResidualBothModes(t *testing.T) {
	m := gridModel(t, grid.WindyPenalized(grid.DefaultStepCost))
	policy, err := types.NewRandomPolicy(m, 3)
	if err != nil {
		t.Fatalf("random policy: %v", err)
	}

	inPlace := DefaultEvalOptions()
	inPlace.Theta = 1e-8
	sync := inPlace
	sync.Mode = Synchronous
	sync.Workers = 4

	var tables []types.ValueTable
	for _, opts := range []EvalOptions{inPlace, sync} {
		values, stats, err := Evaluate(context.Background(), m, policy, nil, opts)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", opts.Mode, err)
		}
		if !stats.Converged {
			t.Fatalf("%s: expected convergence", opts.Mode)
		}
		// the residual is at most gamma times the last sweep delta
		residual, err := BellmanResidual(m, policy, values, opts.Gamma)
		if err != nil {
			t.Fatalf("%s: residual: %v", opts.Mode, err)
		}
		if residual >= opts.Theta {
			t.Errorf("%s: residual %v is not below theta %v", opts.Mode, residual, opts.Theta)
		}
		tables = append(tables, values)
	}
	if diff := tables[0].MaxDiff(tables[1]); diff > 1e-6 {
		t.Errorf("update modes disagree by %v", diff)
	}

	exact, err := EvaluateExact(m, policy, inPlace.Gamma)
	if err != nil {
		t.Fatalf("exact evaluation: %v", err)
	}
	if diff := tables[0].MaxDiff(exact); diff > 1e-6 {
		t.Errorf("iterative and exact evaluation disagree by %v", diff)
	}
}

func TestEvaluateSweepOrderIndependentOfWorkers(t *testing.T) {
	m := gridModel(t, grid.Norvig())
	policy := firstActionPolicy(m)
	opts := DefaultEvalOptions()
	opts.Mode = Synchronous

	single, s1, err := Evaluate(context.Background(), m, policy, nil, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts.Workers = 3
	parallel, s2, err := Evaluate(context.Background(), m, policy, nil, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.Sweeps != s2.Sweeps || single.MaxDiff(parallel) != 0 {
		t.Errorf("synchronous sweeps should not depend on the worker count")
	}
}

func TestEvaluateRejectsIncompletePolicy(t *testing.T) {
	m := gridModel(t, grid.Standard())
	policy := firstActionPolicy(m)
	delete(policy, grid.Position{I: 0, J: 0}.Hash())
	if _, _, err := Evaluate(context.Background(), m, policy, nil, DefaultEvalOptions()); !errors.Is(err, types.ErrUndefinedPolicyAction) {
		t.Errorf("expected ErrUndefinedPolicyAction, got %v", err)
	}
}

func TestEvaluateNumericalFailure(t *testing.T) {
	env := nanRewards{gridModel(t, grid.Standard())}
	policy := firstActionPolicy(env)
	_, _, err := Evaluate(context.Background(), env, policy, nil, DefaultEvalOptions())
	if !errors.Is(err, types.ErrNumerical) {
		t.Errorf("expected ErrNumerical, got %v", err)
	}
	if _, err := Solve(context.Background(), env, DefaultConfig()); !errors.Is(err, types.ErrNumerical) {
		t.Errorf("expected ErrNumerical from the solver, got %v", err)
	}
}

func TestImproveFixedPoint(t *testing.T) {
	m := gridModel(t, grid.Windy())
	result, err := Solve(context.Background(), m, DefaultConfig())
	if err != nil || !result.Converged() {
		t.Fatalf("expected convergence, got %v %v", result, err)
	}
	policy, changed, err := Improve(m, result.Values, result.Policy, DefaultGamma)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed || !policy.Equal(result.Policy) {
		t.Errorf("improving the converged policy should change nothing")
	}
}

func TestImproveTieBreak(t *testing.T) {
	m := gridModel(t, grid.Standard())
	zeros := types.NewValueTable(m)

	first, _, err := Improve(m, zeros, nil, DefaultGamma)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// every action of (0, 0) is worth 0, down is enumerated before right
	if a, _ := first.Get(grid.Position{I: 0, J: 0}); a.Hash() != grid.MovementDown.Hash() {
		t.Errorf("expected the first legal action, got %s", a.Hash())
	}
	// moving right from (0, 2) is the only action worth anything
	if a, _ := first.Get(grid.Position{I: 0, J: 2}); a.Hash() != grid.MovementRight.Hash() {
		t.Errorf("expected right, got %s", a.Hash())
	}
	for i := 0; i < 5; i++ {
		again, changed, err := Improve(m, zeros, first, DefaultGamma)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if changed || !again.Equal(first) {
			t.Fatalf("improvement is not deterministic")
		}
	}
}

func TestQValueAndGreedy(t *testing.T) {
	m := gridModel(t, grid.Windy())
	values := types.NewValueTable(m)
	s := grid.Position{I: 1, J: 2}

	// the gust splits moving up between (0, 2) and the -1 cell
	if q := QValue(m, values, s, grid.MovementUp, 0.9); math.Abs(q-(-0.5)) > 1e-12 {
		t.Errorf("expected q value -0.5, got %v", q)
	}
	a, q, err := Greedy(m, values, s, 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Hash() == grid.MovementRight.Hash() || a.Hash() == grid.MovementUp.Hash() || q != 0 {
		t.Errorf("greedy action should avoid the -1 cell, got %s worth %v", a.Hash(), q)
	}
}

func TestExactSolveSmallModel(t *testing.T) {
	// two routes to the goal: a direct one worth 1 and a detour worth 2 later
	b := model.NewBuilder(model.Labels("direct", "detour")...)
	b.AddState(model.Label("start"), false)
	b.AddState(model.Label("mid"), false)
	b.AddState(model.Label("goal"), true)
	b.AddTransition(model.Label("start"), model.Label("direct"), model.Label("goal"), 1)
	b.SetReward(model.Label("start"), model.Label("direct"), model.Label("goal"), 1)
	b.AddTransition(model.Label("start"), model.Label("detour"), model.Label("mid"), 1)
	b.AddTransition(model.Label("mid"), model.Label("direct"), model.Label("goal"), 1)
	b.SetReward(model.Label("mid"), model.Label("direct"), model.Label("goal"), 2)
	m, err := b.Build()
	if err != nil {
		t.Fatalf("building model: %v", err)
	}

	cases := []struct {
		gamma  float64
		action string
		value  float64
	}{
		{gamma: 0.9, action: "detour", value: 1.8},
		{gamma: 0.4, action: "direct", value: 1},
	}
	for _, tc := range cases {
		policy, values, err := SolveExact(m, tc.gamma, 0)
		if err != nil {
			t.Fatalf("gamma %v: unexpected error: %v", tc.gamma, err)
		}
		if a, _ := policy.Get(model.Label("start")); a.Hash() != tc.action {
			t.Errorf("gamma %v: expected %s, got %s", tc.gamma, tc.action, a.Hash())
		}
		if v := values.Get(model.Label("start")); math.Abs(v-tc.value) > 1e-12 {
			t.Errorf("gamma %v: expected %v, got %v", tc.gamma, tc.value, v)
		}

		config := DefaultConfig()
		config.Gamma = tc.gamma
		config.Theta = 1e-10
		result, err := Solve(context.Background(), m, config)
		if err != nil {
			t.Fatalf("gamma %v: unexpected error: %v", tc.gamma, err)
		}
		if !result.Policy.Equal(policy) {
			t.Errorf("gamma %v: iterative and exact policies differ", tc.gamma)
		}
	}

	if _, _, err := SolveExact(gridModel(t, grid.Standard()), 0.9, 10); !errors.Is(err, ErrTooManyPolicies) {
		t.Errorf("expected ErrTooManyPolicies, got %v", err)
	}
}

func TestOptimalityResidualOfSolution(t *testing.T) {
	m := gridModel(t, grid.Norvig())
	config := DefaultConfig()
	config.Theta = 1e-9
	result, err := Solve(context.Background(), m, config)
	if err != nil || !result.Converged() {
		t.Fatalf("expected convergence, got %v", err)
	}
	residual, err := OptimalityResidual(m, result.Values, config.Gamma)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if residual > 1e-7 {
		t.Errorf("optimality residual %v too large", residual)
	}
}
