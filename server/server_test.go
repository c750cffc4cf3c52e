package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/zeu5/mdp-planner/config"
	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ledger, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	cache := store.NewFileCache(path.Join(t.TempDir(), "cache"))

	c := config.Default()
	c.Server.MaxCells = 100
	return New(*c, ledger, cache, nil)
}

func do(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSolveScenario(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/solve", map[string]interface{}{"scenario": "standard"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := SolveResponse{}
	decode(t, w, &resp)
	if resp.Status != "converged" || resp.ID == "" || resp.WarmStart {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Policy["(0, 2)"] != "R" || resp.Policy["(1, 2)"] != "U" {
		t.Errorf("expected the route to +1, got %v", resp.Policy)
	}
	if _, ok := resp.Policy["(0, 3)"]; ok {
		t.Errorf("terminal states have no action")
	}

	w = do(t, s, http.MethodGet, "/v1/runs/"+resp.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	run := store.Run{}
	decode(t, w, &run)
	if run.ID != resp.ID || run.Scenario != "standard" || run.Sweeps != resp.Sweeps {
		t.Errorf("recorded run differs from the response: %+v", run)
	}

	// the second solve of the same model starts from the cached table
	w = do(t, s, http.MethodPost, "/v1/solve", map[string]interface{}{"scenario": "standard"})
	second := SolveResponse{}
	decode(t, w, &second)
	if !second.WarmStart || second.Status != "converged" {
		t.Errorf("expected a warm started run, got %+v", second)
	}
	if second.Values.MaxDiff(resp.Values) > 1e-2 {
		t.Errorf("warm start changed the solution")
	}

	w = do(t, s, http.MethodGet, "/v1/runs?limit=1", nil)
	runs := []store.Run{}
	decode(t, w, &runs)
	if len(runs) != 1 {
		t.Errorf("expected one run, got %d", len(runs))
	}
}

func TestSolveWorld(t *testing.T) {
	s := newTestServer(t)
	world := grid.Norvig()
	gamma := 0.95
	theta := 1e-6
	w := do(t, s, http.MethodPost, "/v1/solve", SolveRequest{World: world, Gamma: &gamma, Theta: &theta, Mode: "synchronous"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := SolveResponse{}
	decode(t, w, &resp)
	if resp.Status != "converged" || resp.Policy["(0, 2)"] != "R" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSolveErrors(t *testing.T) {
	s := newTestServer(t)
	gamma := 1.5
	big := grid.Standard()
	big.Height, big.Width = 20, 20
	broken := grid.Standard()
	broken.Slip = 2
	// the product of the sides wraps around to a small number
	huge := grid.Standard()
	huge.Height, huge.Width = math.MaxInt, math.MaxInt
	wide := grid.Standard()
	wide.Height, wide.Width = 1, 101

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"malformed", "not an object", http.StatusBadRequest},
		{"unknown scenario", SolveRequest{Scenario: "maze"}, http.StatusBadRequest},
		{"scenario and world", SolveRequest{Scenario: "standard", World: grid.Standard()}, http.StatusBadRequest},
		{"discount", SolveRequest{Scenario: "standard", Gamma: &gamma}, http.StatusBadRequest},
		{"mode", SolveRequest{Scenario: "standard", Mode: "sideways"}, http.StatusBadRequest},
		{"too many cells", SolveRequest{World: big}, http.StatusRequestEntityTooLarge},
		{"overflowing cells", SolveRequest{World: huge}, http.StatusRequestEntityTooLarge},
		{"one row too wide", SolveRequest{World: wide}, http.StatusRequestEntityTooLarge},
		{"invalid world", SolveRequest{World: broken}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, s, http.MethodPost, "/v1/solve", tt.body); w.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestMissingRun(t *testing.T) {
	s := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/v1/runs/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	gin.SetMode(gin.TestMode)
	bare := New(*config.Default(), nil, nil, nil)
	if w := do(t, bare, http.MethodGet, "/v1/runs/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a ledger, got %d", w.Code)
	}
	if w := do(t, bare, http.MethodPost, "/v1/solve", SolveRequest{Scenario: "windy"}); w.Code != http.StatusOK {
		t.Errorf("solving without a ledger should work, got %d", w.Code)
	}
}
