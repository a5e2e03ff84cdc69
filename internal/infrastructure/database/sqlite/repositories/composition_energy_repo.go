// Package repositories implements the domain repository interfaces on top
// of the SQLite store.
package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"math"
	"time"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/internal/infrastructure/database/sqlite"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/defectkit/pkg/errors"
)

type sqliteCompositionEnergyRepo struct {
	conn     *sqlite.Connection
	log      logging.Logger
	executor queryExecutor
	now      func() time.Time
}

// NewCompositionEnergyRepo returns a chempot.Repository backed by conn.
func NewCompositionEnergyRepo(conn *sqlite.Connection, log logging.Logger) chempot.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &sqliteCompositionEnergyRepo{
		conn:     conn,
		log:      log.Named("store"),
		executor: conn.DB(),
		now:      time.Now,
	}
}

func validateEntry(formula string, e chempot.CompositionEnergy) error {
	if _, err := crystal.ParseComposition(formula); err != nil {
		return err
	}
	if math.IsNaN(e.Energy) || math.IsInf(e.Energy, 0) {
		return errors.InvalidParam("energy must be finite").WithDetail("formula=" + formula)
	}
	return nil
}

const upsertEnergy = `
	INSERT INTO composition_energies (formula, energy, source, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(formula) DO UPDATE SET
		energy = excluded.energy,
		source = excluded.source,
		updated_at = excluded.updated_at
`

func (r *sqliteCompositionEnergyRepo) Save(ctx context.Context, formula string, e chempot.CompositionEnergy) error {
	if err := validateEntry(formula, e); err != nil {
		return err
	}
	start := time.Now()
	_, err := r.executor.ExecContext(ctx, upsertEnergy, formula, e.Energy, e.Source, r.now().UnixMilli())
	if err != nil {
		err = errors.Wrap(err, errors.CodeStoreUnavailable, "failed to save composition energy").WithDetail("formula=" + formula)
	}
	logging.LogStoreQuery(r.log, "save", time.Since(start), 1, err)
	return err
}

func (r *sqliteCompositionEnergyRepo) SaveAll(ctx context.Context, energies chempot.CompositionEnergies) error {
	for _, f := range energies.Formulas() {
		if err := validateEntry(f, energies[f]); err != nil {
			return err
		}
	}

	start := time.Now()
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "failed to begin transaction")
	}
	ts := r.now().UnixMilli()
	for _, f := range energies.Formulas() {
		e := energies[f]
		if _, err := tx.ExecContext(ctx, upsertEnergy, f, e.Energy, e.Source, ts); err != nil {
			tx.Rollback()
			err = errors.Wrap(err, errors.CodeStoreUnavailable, "failed to save composition energy").WithDetail("formula=" + f)
			logging.LogStoreQuery(r.log, "save_all", time.Since(start), 0, err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "failed to commit transaction")
	}
	logging.LogStoreQuery(r.log, "save_all", time.Since(start), len(energies), nil)
	return nil
}

func scanEnergy(s scanner) (string, chempot.CompositionEnergy, error) {
	var (
		formula string
		e       chempot.CompositionEnergy
	)
	if err := s.Scan(&formula, &e.Energy, &e.Source); err != nil {
		return "", e, err
	}
	return formula, e, nil
}

func (r *sqliteCompositionEnergyRepo) FindByFormula(ctx context.Context, formula string) (chempot.CompositionEnergy, error) {
	start := time.Now()
	row := r.executor.QueryRowContext(ctx,
		`SELECT formula, energy, source FROM composition_energies WHERE formula = ?`, formula)
	_, e, err := scanEnergy(row)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = errors.New(errors.CodeCompositionNotFound, "composition not found").WithDetail("formula=" + formula)
		logging.LogStoreQuery(r.log, "find_by_formula", time.Since(start), 0, nil)
		return chempot.CompositionEnergy{}, err
	case err != nil:
		err = errors.Wrap(err, errors.CodeStoreUnavailable, "failed to query composition energy").WithDetail("formula=" + formula)
		logging.LogStoreQuery(r.log, "find_by_formula", time.Since(start), 0, err)
		return chempot.CompositionEnergy{}, err
	}
	logging.LogStoreQuery(r.log, "find_by_formula", time.Since(start), 1, nil)
	return e, nil
}

func (r *sqliteCompositionEnergyRepo) FindAll(ctx context.Context) (chempot.CompositionEnergies, error) {
	start := time.Now()
	rows, err := r.executor.QueryContext(ctx,
		`SELECT formula, energy, source FROM composition_energies ORDER BY formula`)
	if err != nil {
		err = errors.Wrap(err, errors.CodeStoreUnavailable, "failed to list composition energies")
		logging.LogStoreQuery(r.log, "find_all", time.Since(start), 0, err)
		return nil, err
	}
	defer rows.Close()

	out := chempot.CompositionEnergies{}
	for rows.Next() {
		f, e, err := scanEnergy(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreCorrupt, "failed to scan composition energy")
		}
		out[f] = e
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "failed to iterate composition energies")
	}
	logging.LogStoreQuery(r.log, "find_all", time.Since(start), len(out), nil)
	return out, nil
}

func (r *sqliteCompositionEnergyRepo) Delete(ctx context.Context, formula string) error {
	start := time.Now()
	res, err := r.executor.ExecContext(ctx, `DELETE FROM composition_energies WHERE formula = ?`, formula)
	if err != nil {
		err = errors.Wrap(err, errors.CodeStoreUnavailable, "failed to delete composition energy").WithDetail("formula=" + formula)
		logging.LogStoreQuery(r.log, "delete", time.Since(start), 0, err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "failed to read affected rows")
	}
	logging.LogStoreQuery(r.log, "delete", time.Since(start), int(n), nil)
	if n == 0 {
		return errors.New(errors.CodeCompositionNotFound, "composition not found").WithDetail("formula=" + formula)
	}
	return nil
}
