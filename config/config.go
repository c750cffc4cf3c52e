// Package config loads the planner configuration from defaults, an optional
// TOML file, MDP_PLANNER_ environment variables and command line flags, in
// increasing order of precedence
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/policyiter"
	"github.com/zeu5/mdp-planner/types"
	"github.com/zeu5/mdp-planner/util"
	"golang.org/x/exp/slog"
)

const envPrefix = "MDP_PLANNER"

// Config holds the planner configuration
type Config struct {
	Solver SolverConfig `mapstructure:"solver" json:"solver"`
	Output OutputConfig `mapstructure:"output" json:"output"`
	Store  StoreConfig  `mapstructure:"store" json:"store"`
	Server ServerConfig `mapstructure:"server" json:"server"`
	Log    LogConfig    `mapstructure:"log" json:"log"`
}

// SolverConfig holds the policy iteration parameters
type SolverConfig struct {
	Gamma          float64 `mapstructure:"gamma" json:"gamma"`
	Theta          float64 `mapstructure:"theta" json:"theta"`
	MaxSweeps      int     `mapstructure:"max_sweeps" json:"max_sweeps"`
	MaxGenerations int     `mapstructure:"max_generations" json:"max_generations"`
	Seed           uint64  `mapstructure:"seed" json:"seed"`
	Mode           string  `mapstructure:"mode" json:"mode"`
	Workers        int     `mapstructure:"workers" json:"workers"`
	Scenario       string  `mapstructure:"scenario" json:"scenario"`
	StepCost       float64 `mapstructure:"step_cost" json:"step_cost"`
}

// OutputConfig holds where and how results are written
type OutputConfig struct {
	SavePath string `mapstructure:"save_path" json:"save_path"`
	Color    bool   `mapstructure:"color" json:"color"`
	// seconds between two progress refreshes, 0 disables them
	Progress int `mapstructure:"progress" json:"progress"`
}

// StoreConfig holds the run ledger and warm start cache settings
type StoreConfig struct {
	// sqlite ledger, empty disables it
	Database string `mapstructure:"database" json:"database"`
	// redis address of the warm start cache, empty disables it
	Redis string `mapstructure:"redis" json:"redis"`
	// folder of the file cache, used when no redis address is set
	CacheDir string        `mapstructure:"cache_dir" json:"cache_dir"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
	// upper bound of the number of cells of a submitted grid
	MaxCells int `mapstructure:"max_cells" json:"max_cells"`
}

// LogConfig holds the logger settings
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// FlagKeys maps command line flags to the configuration keys they override
var FlagKeys = map[string]string{
	"gamma":           "solver.gamma",
	"theta":           "solver.theta",
	"max-sweeps":      "solver.max_sweeps",
	"max-generations": "solver.max_generations",
	"seed":            "solver.seed",
	"mode":            "solver.mode",
	"workers":         "solver.workers",
	"scenario":        "solver.scenario",
	"step-cost":       "solver.step_cost",
	"save":            "output.save_path",
	"color":           "output.color",
	"progress":        "output.progress",
	"db":              "store.database",
	"redis":           "store.redis",
	"cache-dir":       "store.cache_dir",
	"cache-ttl":       "store.cache_ttl",
	"addr":            "server.addr",
	"max-cells":       "server.max_cells",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solver.gamma", policyiter.DefaultGamma)
	v.SetDefault("solver.theta", policyiter.DefaultTheta)
	v.SetDefault("solver.max_sweeps", policyiter.DefaultMaxSweeps)
	v.SetDefault("solver.max_generations", policyiter.DefaultMaxGenerations)
	v.SetDefault("solver.seed", 0)
	v.SetDefault("solver.mode", policyiter.InPlace.String())
	v.SetDefault("solver.workers", 0)
	v.SetDefault("solver.scenario", "penalized")
	v.SetDefault("solver.step_cost", grid.DefaultStepCost)
	v.SetDefault("output.save_path", "results")
	v.SetDefault("output.color", true)
	v.SetDefault("output.progress", 0)
	v.SetDefault("store.database", "")
	v.SetDefault("store.redis", "")
	v.SetDefault("store.cache_dir", "")
	v.SetDefault("store.cache_ttl", 24*time.Hour)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.max_cells", 10000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns the configuration without file, environment or flags
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		panic(err)
	}
	return c
}

// Load reads configuration from file and env. Flags of cmd listed in
// FlagKeys override both when set
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	cfgPath := os.Getenv(envPrefix + "_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "mdp-planner"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		for name, key := range FlagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// a missing default config file is fine, a broken or missing explicit one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the values that do not depend on a model
func (c *Config) Validate() error {
	if _, err := policyiter.ParseUpdateMode(c.Solver.Mode); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: unknown log format %q", types.ErrInvalidConfig, c.Log.Format)
	}
	if c.Server.MaxCells <= 0 {
		return fmt.Errorf("%w: max cells must be positive, got %d", types.ErrInvalidConfig, c.Server.MaxCells)
	}
	return nil
}

// PolicyIteration builds the solver configuration
func (c SolverConfig) PolicyIteration(logger *slog.Logger) (policyiter.Config, error) {
	mode, err := policyiter.ParseUpdateMode(c.Mode)
	if err != nil {
		return policyiter.Config{}, err
	}
	config := policyiter.DefaultConfig()
	config.Gamma = c.Gamma
	config.Theta = c.Theta
	config.MaxSweeps = c.MaxSweeps
	config.MaxGenerations = c.MaxGenerations
	config.Seed = c.Seed
	config.Mode = mode
	config.Workers = c.Workers
	config.Logger = logger
	return config, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("%w: log level %q", types.ErrInvalidConfig, s)
	}
	return level, nil
}

// Logger writes to w with the configured level and format
func (c LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Record the effective configuration in the save path
func (c *Config) Record() error {
	return util.SaveJSON(path.Join(c.Output.SavePath, "config.json"), c)
}
