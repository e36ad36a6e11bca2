// Package storage holds the sink side of a pipeline: the Sink contract, the
// in-memory Table, and the database path (Repository backends fed in batches
// by RepositorySink).
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"tablexform/internal/metrics"
)

// CopyFn inserts rows aligned to columns and returns how many the backend
// reports as written. It must return promptly once ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn per non-empty batch. It returns the running total and the
// first error. A closed channel flushes the final partial batch.
//
// Every successful flush is logged at V(1) with the instantaneous rate and
// counted in metrics under job.
func LoadBatches(
	ctx context.Context,
	log logr.Logger,
	job string,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total     int64
		batches   int64
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Error(err, "batch copy failed", "copied", n, "total", total)
			return err
		}

		batches++
		metrics.RecordBatches(job, 1)
		metrics.RecordRow(job, "written", n)

		now := time.Now()
		since := now.Sub(lastFlush)
		rps := float64(0)
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.V(1).Info("batch written",
			"batch", batches,
			"rows", n,
			"total", total,
			"rps", int64(rps),
			"elapsed", now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlush = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case r, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, r)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
