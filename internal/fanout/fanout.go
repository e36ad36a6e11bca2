// Package fanout runs independent pipeline units on a bounded pool of
// workers and merges their tables once every unit has finished.
//
// Units share nothing but the context. A failing unit does not affect the
// others unless Executor.CancelOnError is set, in which case the first
// failure cancels the context handed to units still running or waiting.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"tablexform/internal/storage"
	"tablexform/internal/transformer"
)

// DefaultWorkers matches the degree of parallelism used for multi-source
// queries when none is configured.
const DefaultWorkers = 5

// Unit is one independent pipeline run producing a materialized table.
type Unit struct {
	Name string
	Run  func(ctx context.Context) (*storage.Table, error)
}

// Result is the outcome of one Unit.
type Result struct {
	Name     string
	Table    *storage.Table
	Err      error
	Duration time.Duration
}

// Executor schedules units. The zero value is usable.
type Executor struct {
	// Workers bounds concurrently running units; <= 0 means DefaultWorkers.
	Workers int

	// CancelOnError cancels the remaining units after the first failure.
	CancelOnError bool

	// Logger receives one line per finished unit. The zero value discards.
	Logger logr.Logger
}

// Run executes every unit and blocks until all have returned. The result
// slice has one entry per unit, at the unit's position. Units that never got
// to run because the context was cancelled report the context error.
func (e *Executor) Run(ctx context.Context, units []Unit) []Result {
	workers := e.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := e.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	results := make([]Result, len(units))

	var g *errgroup.Group
	gctx := ctx
	if e.CancelOnError {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(workers)

	for i, u := range units {
		name := u.Name
		if name == "" {
			name = fmt.Sprintf("unit[%d]", i)
		}
		g.Go(func() error {
			start := time.Now()
			tbl, err := runUnit(gctx, u)
			results[i] = Result{Name: name, Table: tbl, Err: err, Duration: time.Since(start)}

			ulog := log.WithValues("unit", name, "duration", results[i].Duration)
			if err != nil {
				ulog.Error(err, "unit failed")
				if e.CancelOnError {
					return err
				}
				return nil
			}
			ulog.V(1).Info("unit done", "rows", tbl.Len())
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runUnit(ctx context.Context, u Unit) (tbl *storage.Table, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if u.Run == nil {
		return nil, errors.New("fanout: unit has no Run func")
	}
	defer func() {
		if p := recover(); p != nil {
			tbl, err = nil, fmt.Errorf("fanout: unit panicked: %v", p)
		}
	}()
	tbl, err = u.Run(ctx)
	if err == nil && tbl == nil {
		tbl = storage.NewTable()
	}
	return tbl, err
}

// Merge appends the tables of all successful results, in result order, into
// one master table. Columns are matched by name: the first non-empty table
// fixes the leading columns, later tables add the columns it lacks, and a row
// gets the kind's zero value for every column its table did not carry. A
// column seen with two different kinds is a SchemaError. Failed results are
// skipped.
func Merge(results []Result) (*storage.Table, error) {
	master := storage.NewTable()
	for _, r := range results {
		if r.Err != nil || r.Table == nil || r.Table.Schema.Len() == 0 {
			continue
		}
		if err := master.Append(r.Table); err != nil {
			column := "*"
			var ke *storage.ColumnKindError
			if errors.As(err, &ke) {
				column = ke.Column
			}
			return nil, &transformer.SchemaError{
				Column: column,
				Err:    fmt.Errorf("merge %s: %w", r.Name, err),
			}
		}
	}
	return master, nil
}

// Errors joins the failures of results, each prefixed with its unit name.
// It returns nil when every unit succeeded.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}
