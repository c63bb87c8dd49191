package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fumin/dmrg/exactdiag"
	"github.com/fumin/dmrg/exactdiag/mat"
	"github.com/fumin/dmrg/mps"
	"github.com/fumin/dmrg/ndarray"
	"github.com/fumin/dmrg/store"
)

const (
	// maxExactSites bounds the lattices handed to exact diagonalization, whose dense eigen decomposition is cubic in 2^n.
	maxExactSites = 12
)

// Config are the parameters of a ground state search.
type Config struct {
	sites   int
	field   float64
	bondDim int
	sweeps  int
	tol     float64
	db      string
	exact   bool
}

var groundCfg Config

var groundCmd = &cobra.Command{
	Use:   "ground",
	Short: "Search for the ground state of a transverse field Ising chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ground(cmd.Context(), groundCfg)
	},
}

func init() {
	f := groundCmd.Flags()
	f.IntVar(&groundCfg.sites, "sites", 16, "number of sites")
	f.Float64Var(&groundCfg.field, "field", 1, "transverse field strength")
	f.IntVar(&groundCfg.bondDim, "bond", 8, "maximum bond dimension")
	f.IntVar(&groundCfg.sweeps, "sweeps", 32, "maximum number of sweeps")
	f.Float64Var(&groundCfg.tol, "tol", 1e-8, "relative energy tolerance between sweeps")
	f.StringVar(&groundCfg.db, "db", "", "sqlite database to log the run to")
	f.BoolVar(&groundCfg.exact, "exact", false, "compare with exact diagonalization")
	rootCmd.AddCommand(groundCmd)
}

// Statistics are observables of the ground state found.
type Statistics struct {
	mps.Result
	// Magnetization is sqrt(<M_z^2>) per spin.
	Magnetization float64
}

func ground(ctx context.Context, cfg Config) error {
	if cfg.sites < 1 || cfg.bondDim < 1 {
		return errors.Errorf("%#v", cfg)
	}

	var db *store.Store
	var runID string
	if cfg.db != "" {
		var err error
		db, err = store.Open(cfg.db)
		if err != nil {
			return errors.Wrap(err, "")
		}
		defer db.Close()
		r := store.Run{Sites: cfg.sites, Field: cfg.field, BondDim: cfg.bondDim, MaxSweeps: cfg.sweeps, Tol: cfg.tol}
		runID, err = db.NewRun(ctx, r)
		if err != nil {
			return errors.Wrap(err, "")
		}
		log.Printf("run %s", runID)
	}

	var recordErr error
	observe := func(s mps.Step) {
		if db == nil || recordErr != nil {
			return
		}
		recordErr = db.RecordStep(ctx, runID, s)
	}
	stats, state, err := solve(cfg, observe)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
	}
	if recordErr != nil {
		return errors.Wrap(recordErr, "")
	}
	log.Printf("%#v", stats)

	if db != nil {
		if err := db.FinishRun(ctx, runID, stats.Result); err != nil {
			return errors.Wrap(err, "")
		}
		if err := db.SaveState(ctx, runID, state); err != nil {
			return errors.Wrap(err, "")
		}
	}

	fmt.Printf("sites,field,bond,sweeps,energy,variance,m\n")
	fmt.Printf("%d,%f,%d,%d,%.12f,%g,%f\n", cfg.sites, cfg.field, cfg.bondDim, stats.Sweeps, stats.Energy, stats.Variance, stats.Magnetization)

	if cfg.exact {
		e0, err := exactGround(cfg)
		if err != nil {
			return errors.Wrap(err, "")
		}
		fmt.Printf("exact %.12f, difference %g\n", e0, stats.Energy-e0)
	}
	return nil
}

func solve(cfg Config, observe func(mps.Step)) (Statistics, []*ndarray.Array, error) {
	h := mps.Ising(cfg.sites, cfg.field)
	state := mps.RandMPS(h, cfg.bondDim)
	opt := mps.NewSearchGroundStateOptions().MaxSweeps(cfg.sweeps).Tol(cfg.tol).Observe(observe)
	res, err := mps.SearchGroundState(h, state, opt)
	switch {
	case errors.Is(err, mps.ErrNotConverged):
		log.Printf("%v", err)
	case err != nil:
		return Statistics{}, nil, errors.Wrap(err, "")
	}

	// Calculate magnetization.
	psiIP, err := mps.InnerProduct(state, state)
	if err != nil {
		return Statistics{}, nil, errors.Wrap(err, "")
	}
	mz2, err := mps.Square(mps.MagnetizationZ(cfg.sites))
	if err != nil {
		return Statistics{}, nil, errors.Wrap(err, "")
	}
	m2, err := mps.Expectation(mz2, state)
	if err != nil {
		return Statistics{}, nil, errors.Wrap(err, "")
	}
	m := cmplx.Sqrt(m2/psiIP) / complex(float64(cfg.sites), 0)

	return Statistics{Result: res, Magnetization: real(m)}, state, nil
}

func exactGround(cfg Config) (float64, error) {
	if cfg.sites > maxExactSites {
		return math.NaN(), errors.Errorf("%d sites exceeds %d", cfg.sites, maxExactSites)
	}
	n := [2]int{cfg.sites, 1}
	h, buf := mat.COOZeros(1, 1), mat.COOZeros(1, 1)
	exactdiag.TransverseFieldIsing(h, buf, n, cfg.field)
	vvs, err := h.EigenSym()
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	stats, err := exactdiag.GetStatistics(n, vvs)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	log.Printf("exact %#v", stats)
	return stats.EigenValue[0], nil
}
