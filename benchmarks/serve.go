package benchmarks

import (
	"context"
	"os"
	"os/signal"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/zeu5/mdp-planner/config"
	"github.com/zeu5/mdp-planner/server"
	"github.com/zeu5/mdp-planner/store"
)

// Serve runs the HTTP API until ctx is done
func Serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	ledger, err := openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	var cache store.Cache
	if cfg.Store.Redis != "" || cfg.Store.CacheDir != "" {
		c, closeCache, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer closeCache()
		cache = c
	}

	return server.New(*cfg, ledger, cache, logger).Run(ctx)
}

func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			return Serve(ctx)
		},
	}
	defaults := config.Default()
	cmd.Flags().String("addr", defaults.Server.Addr, "Address to listen on")
	cmd.Flags().Int("max-cells", defaults.Server.MaxCells, "Largest number of cells of a submitted grid")
	return cmd
}
