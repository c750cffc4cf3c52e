package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Runs prints the recorded runs, or the full record of the run with the given id
func Runs(ctx context.Context, id string, limit int) error {
	ledger, err := openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	if id != "" {
		run, err := ledger.Get(ctx, id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "\t")
		return enc.Encode(run)
	}

	runs, err := ledger.List(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSCENARIO\tGAMMA\tMODE\tSTATUS\tGENERATIONS\tSWEEPS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Scenario, r.Gamma, r.Mode,
			r.Status, r.Generations, r.Sweeps, r.Duration)
	}
	return w.Flush()
}

func RunsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List the runs of the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return Runs(cmd.Context(), id, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Largest number of runs to list, 0 for all")
	return cmd
}
