// Package server exposes the planner over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeu5/mdp-planner/config"
	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/policyiter"
	"github.com/zeu5/mdp-planner/store"
	"github.com/zeu5/mdp-planner/types"
	"golang.org/x/exp/slog"
)

// SolveRequest describes a grid and the solver options. Either Scenario or
// World is set, unset options take the server defaults
type SolveRequest struct {
	Scenario       string      `json:"scenario"`
	StepCost       *float64    `json:"step_cost"`
	World          *grid.World `json:"world"`
	Gamma          *float64    `json:"gamma"`
	Theta          *float64    `json:"theta"`
	Mode           string      `json:"mode"`
	Seed           *uint64     `json:"seed"`
	MaxSweeps      *int        `json:"max_sweeps"`
	MaxGenerations *int        `json:"max_generations"`
}

// SolveResponse is returned for every completed run, converged or not
type SolveResponse struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Generations int               `json:"generations"`
	Sweeps      int               `json:"sweeps"`
	WarmStart   bool              `json:"warm_start"`
	Duration    time.Duration     `json:"duration"`
	Policy      map[string]string `json:"policy"`
	Values      types.ValueTable  `json:"values"`
}

// Server handles solve requests. Runs are recorded in the ledger and
// converged tables are cached when those are set
type Server struct {
	config config.Config
	ledger store.Ledger
	cache  store.Cache
	logger *slog.Logger

	router *gin.Engine
	server *http.Server
}

// New creates the server. ledger, cache and logger may be nil
func New(c config.Config, ledger store.Ledger, cache store.Cache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: c,
		ledger: ledger,
		cache:  cache,
		logger: logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequest)
	r.GET("/healthz", s.handleHealth)
	v1 := r.Group("/v1")
	v1.POST("/solve", s.handleSolve)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
	s.router = r
	s.server = &http.Server{
		Addr:    c.Server.Addr,
		Handler: r,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done and then shuts the server down
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()
	s.logger.Info("serving", "addr", s.config.Server.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequest(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleSolve(c *gin.Context) {
	req := SolveRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	world, scenario, err := s.world(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if exceedsCells(world, s.config.Server.MaxCells) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("grid of %dx%d exceeds the limit of %d cells", world.Height, world.Width, s.config.Server.MaxCells),
		})
		return
	}
	m, err := world.Model()
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	piConfig, err := s.solverConfig(req)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	fingerprint := m.Fingerprint()
	warm := false
	if s.cache != nil {
		values, ok, err := store.WarmStart(ctx, s.cache, m, fingerprint, piConfig.Gamma)
		if err != nil {
			s.logger.Warn("warm start lookup failed", "error", err)
		} else if ok {
			piConfig.InitialValues = values
			warm = true
		}
	}

	result, err := policyiter.Solve(ctx, m, piConfig)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	run := store.NewRun(scenario, fingerprint, piConfig, result)
	if s.ledger != nil {
		if err := s.ledger.Save(ctx, run); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if s.cache != nil && result.Converged() {
		if err := s.cache.Put(ctx, store.CacheKey(fingerprint, piConfig.Gamma), result.Values); err != nil {
			s.logger.Warn("caching values failed", "error", err)
		}
	}

	c.JSON(http.StatusOK, SolveResponse{
		ID:          run.ID,
		Status:      run.Status,
		Generations: run.Generations,
		Sweeps:      run.Sweeps,
		WarmStart:   warm,
		Duration:    run.Duration,
		Policy:      run.Policy,
		Values:      run.Values,
	})
}

func (s *Server) world(req SolveRequest) (*grid.World, string, error) {
	if req.World != nil {
		if req.Scenario != "" {
			return nil, "", errors.New("set either a scenario or a world, not both")
		}
		return req.World, "custom", nil
	}
	name := req.Scenario
	if name == "" {
		name = s.config.Solver.Scenario
	}
	stepCost := s.config.Solver.StepCost
	if req.StepCost != nil {
		stepCost = *req.StepCost
	}
	w, err := grid.Scenario(name, stepCost)
	return w, name, err
}

// exceedsCells reports whether the grid has more than maxCells cells
// without multiplying the sides. Non-positive sizes are left to the world
// validation
func exceedsCells(w *grid.World, maxCells int) bool {
	if w.Height <= 0 || w.Width <= 0 {
		return false
	}
	return w.Height > maxCells/w.Width
}

func (s *Server) solverConfig(req SolveRequest) (policyiter.Config, error) {
	sc := s.config.Solver
	if req.Gamma != nil {
		sc.Gamma = *req.Gamma
	}
	if req.Theta != nil {
		sc.Theta = *req.Theta
	}
	if req.Mode != "" {
		sc.Mode = req.Mode
	}
	if req.Seed != nil {
		sc.Seed = *req.Seed
	}
	if req.MaxSweeps != nil {
		sc.MaxSweeps = *req.MaxSweeps
	}
	if req.MaxGenerations != nil {
		sc.MaxGenerations = *req.MaxGenerations
	}
	return sc.PolicyIteration(s.logger)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "runs are not recorded"})
		return
	}
	run, err := s.ledger.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

type listQuery struct {
	Limit int `form:"limit,default=20" binding:"min=0"`
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.ledger == nil {
		c.JSON(http.StatusOK, []*store.Run{})
		return
	}
	q := listQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runs, err := s.ledger.List(c.Request.Context(), q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// statusOf maps planner errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidModel),
		errors.Is(err, types.ErrInvalidConfig),
		errors.Is(err, types.ErrInvalidDiscount),
		errors.Is(err, types.ErrNoTerminalPath),
		errors.Is(err, types.ErrUndefinedPolicyAction):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNumerical):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
