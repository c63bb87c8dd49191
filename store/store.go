// Package store keeps a sqlite log of ground state searches: their parameters, per-site energies and final states.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/fumin/dmrg/mps"
	"github.com/fumin/dmrg/ndarray"
)

const (
	tableRuns   = "runs"
	tableSteps  = "steps"
	tableShapes = "shapes"
	tableSites  = "sites"
)

var (
	// ErrNotFound is returned when a run or its state is absent.
	ErrNotFound = errors.New("store: not found")
)

// Run describes a ground state search of the transverse field Ising chain.
type Run struct {
	ID        string
	Sites     int
	Field     float64
	BondDim   int
	MaxSweeps int
	Tol       float64
	Created   time.Time

	// The fields below are set by FinishRun.
	Finished bool
	Result   mps.Result
}

// Store is a sqlite database of runs.
type Store struct {
	Path string
	db   *sql.DB
}

// Open opens the database at path, creating its tables if necessary.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, fmt.Sprintf("db %s", path))
	}
	return &Store{Path: path, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NewRun inserts r with a fresh id, which is returned. The ID and Created fields of r are ignored.
func (s *Store) NewRun(ctx context.Context, r Run) (string, error) {
	id := uuid.NewString()
	sqlStr := fmt.Sprintf(`INSERT INTO %s (id, sites, field, bond, max_sweeps, tol, created) VALUES (?, ?, ?, ?, ?, ?, ?)`, tableRuns)
	args := []any{id, r.Sites, r.Field, r.BondDim, r.MaxSweeps, r.Tol, time.Now().UnixNano()}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return id, nil
}

// Run returns the run with id.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	sqlStr := fmt.Sprintf(`SELECT sites, field, bond, max_sweeps, tol, created, finished, energy, variance, sweeps FROM %s WHERE id=?`, tableRuns)
	r := Run{ID: id}
	var created int64
	err := s.db.QueryRowContext(ctx, sqlStr, id).Scan(&r.Sites, &r.Field, &r.BondDim, &r.MaxSweeps, &r.Tol, &created, &r.Finished, &r.Result.Energy, &r.Result.Variance, &r.Result.Sweeps)
	switch {
	case err == sql.ErrNoRows:
		return Run{}, errors.Wrapf(ErrNotFound, "run %s", id)
	case err != nil:
		return Run{}, errors.Wrap(err, "")
	}
	r.Created = time.Unix(0, created)
	return r, nil
}

// Runs returns all runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	sqlStr := fmt.Sprintf(`SELECT id FROM %s ORDER BY created DESC`, tableRuns)
	rows, err := s.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "")
	}
	rows.Close()

	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.Run(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// FinishRun records the outcome of run id.
func (s *Store) FinishRun(ctx context.Context, id string, res mps.Result) error {
	sqlStr := fmt.Sprintf(`UPDATE %s SET finished=1, energy=?, variance=?, sweeps=? WHERE id=?`, tableRuns)
	result, err := s.db.ExecContext(ctx, sqlStr, res.Energy, res.Variance, res.Sweeps, id)
	if err != nil {
		return errors.Wrap(err, "")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "run %s", id)
	}
	return nil
}

// RecordStep appends a local optimization step to run id.
func (s *Store) RecordStep(ctx context.Context, id string, step mps.Step) error {
	sqlStr := fmt.Sprintf(`INSERT INTO %s (run, seq, sweep, site, rightward, energy)
		SELECT ?, COALESCE(MAX(seq)+1, 0), ?, ?, ?, ? FROM %s WHERE run=?`, tableSteps, tableSteps)
	args := []any{id, step.Sweep, step.Site, step.Right, step.Energy, id}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%#v", args))
	}
	return nil
}

// Steps returns the steps of run id in the order they were recorded.
func (s *Store) Steps(ctx context.Context, id string) ([]mps.Step, error) {
	sqlStr := fmt.Sprintf(`SELECT sweep, site, rightward, energy FROM %s WHERE run=? ORDER BY seq`, tableSteps)
	rows, err := s.db.QueryContext(ctx, sqlStr, id)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	steps := make([]mps.Step, 0)
	for rows.Next() {
		var step mps.Step
		if err := rows.Scan(&step.Sweep, &step.Site, &step.Right, &step.Energy); err != nil {
			return nil, errors.Wrap(err, "")
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return steps, nil
}

// SaveState stores the site tensors of run id, replacing any previously saved state.
// Zero elements are not stored.
func (s *Store) SaveState(ctx context.Context, id string, sites []*ndarray.Array) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := saveState(ctx, tx, id, sites); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func saveState(ctx context.Context, tx *sql.Tx, id string, sites []*ndarray.Array) error {
	for _, table := range []string{tableSites, tableShapes} {
		sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE run=?`, table)
		if _, err := tx.ExecContext(ctx, sqlStr, id); err != nil {
			return errors.Wrap(err, "")
		}
	}

	shapeStr := fmt.Sprintf(`INSERT INTO %s (run, site, phys, lft, rgt) VALUES (?, ?, ?, ?, ?)`, tableShapes)
	itemStr := fmt.Sprintf(`INSERT INTO %s (run, site, p, l, r, re, im) VALUES (?, ?, ?, ?, ?, ?, ?)`, tableSites)
	for i, m := range sites {
		shape := m.Shape()
		if len(shape) != 3 {
			return errors.Errorf("site %d shape %#v", i, shape)
		}
		if _, err := tx.ExecContext(ctx, shapeStr, id, i, shape[0], shape[1], shape[2]); err != nil {
			return errors.Wrap(err, fmt.Sprintf("run %s site %d", id, i))
		}
		for idx, v := range m.All() {
			if v == 0 {
				continue
			}
			args := []any{id, i, idx[0], idx[1], idx[2], real(v), imag(v)}
			if _, err := tx.ExecContext(ctx, itemStr, args...); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%s %#v", itemStr, args))
			}
		}
	}
	return nil
}

// LoadState returns the site tensors saved for run id.
func (s *Store) LoadState(ctx context.Context, id string) ([]*ndarray.Array, error) {
	sqlStr := fmt.Sprintf(`SELECT phys, lft, rgt FROM %s WHERE run=? ORDER BY site`, tableShapes)
	rows, err := s.db.QueryContext(ctx, sqlStr, id)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	sites := make([]*ndarray.Array, 0)
	for rows.Next() {
		var p, l, r int
		if err := rows.Scan(&p, &l, &r); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "")
		}
		sites = append(sites, ndarray.Zeros(p, l, r))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "")
	}
	rows.Close()
	if len(sites) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "state of run %s", id)
	}

	sqlStr = fmt.Sprintf(`SELECT site, p, l, r, re, im FROM %s WHERE run=?`, tableSites)
	rows, err = s.db.QueryContext(ctx, sqlStr, id)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()
	for rows.Next() {
		var site, p, l, r int
		var re, im float64
		if err := rows.Scan(&site, &p, &l, &r, &re, &im); err != nil {
			return nil, errors.Wrap(err, "")
		}
		sites[site].SetAt([]int{p, l, r}, complex(re, im))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return sites, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			sites INTEGER NOT NULL,
			field REAL NOT NULL,
			bond INTEGER NOT NULL,
			max_sweeps INTEGER NOT NULL,
			tol REAL NOT NULL,
			created INTEGER NOT NULL,
			finished INTEGER NOT NULL DEFAULT 0,
			energy REAL NOT NULL DEFAULT 0,
			variance REAL NOT NULL DEFAULT 0,
			sweeps INTEGER NOT NULL DEFAULT 0) STRICT`, tableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run TEXT NOT NULL REFERENCES %s (id),
			seq INTEGER NOT NULL,
			sweep INTEGER NOT NULL,
			site INTEGER NOT NULL,
			rightward INTEGER NOT NULL,
			energy REAL NOT NULL,
			PRIMARY KEY (run, seq)) STRICT`, tableSteps, tableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run TEXT NOT NULL REFERENCES %s (id),
			site INTEGER NOT NULL,
			phys INTEGER NOT NULL,
			lft INTEGER NOT NULL,
			rgt INTEGER NOT NULL,
			PRIMARY KEY (run, site)) STRICT`, tableShapes, tableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run TEXT NOT NULL REFERENCES %s (id),
			site INTEGER NOT NULL,
			p INTEGER NOT NULL,
			l INTEGER NOT NULL,
			r INTEGER NOT NULL,
			re REAL NOT NULL,
			im REAL NOT NULL,
			PRIMARY KEY (run, site, p, l, r)) STRICT`, tableSites, tableRuns),
	}
	for _, sqlStr := range stmts {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
