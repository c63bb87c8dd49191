package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fumin/dmrg/store"
)

var (
	historyDB  string
	historyRun string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print logged runs",
	Long: `Lists the runs in the database.
If --run is given, prints the energy of every optimization step of that run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return history(cmd.Context(), historyDB, historyRun)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "dmrg.db", "sqlite database")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "run id")
	rootCmd.AddCommand(historyCmd)
}

func history(ctx context.Context, dbPath, runID string) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()

	if runID == "" {
		runs, err := db.Runs(ctx)
		if err != nil {
			return errors.Wrap(err, "")
		}
		fmt.Printf("id,created,sites,field,bond,finished,sweeps,energy,variance\n")
		for _, r := range runs {
			fmt.Printf("%s,%s,%d,%f,%d,%t,%d,%.12f,%g\n", r.ID, r.Created.Format("2006-01-02T15:04:05"), r.Sites, r.Field, r.BondDim, r.Finished, r.Result.Sweeps, r.Result.Energy, r.Result.Variance)
		}
		return nil
	}

	r, err := db.Run(ctx, runID)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("%#v\n", r)
	steps, err := db.Steps(ctx, runID)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("sweep,site,right,energy\n")
	for _, s := range steps {
		fmt.Printf("%d,%d,%t,%.12f\n", s.Sweep, s.Site, s.Right, s.Energy)
	}
	return nil
}
