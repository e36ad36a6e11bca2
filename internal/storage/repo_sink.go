package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"tablexform/internal/row"
)

// DefaultBatchSize is used when RepositorySink.BatchSize is not positive.
const DefaultBatchSize = 1000

// RepositorySink writes a row stream into a database table through a
// Repository. Rows are handed to a LoadBatches goroutine and copied in
// batches; Commit waits for the last batch.
//
// Batches already copied when Abort is called stay in the table. Each batch
// is atomic in the backends, so a reader never sees half a batch.
type RepositorySink struct {
	Repo       Repository
	Kind       string // storage kind, selects the DDL bootstrapper
	Table      string
	AutoCreate bool
	BatchSize  int
	Job        string
	Logger     logr.Logger

	in     chan []any
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	total  int64
	err    error
}

var _ Sink = (*RepositorySink)(nil)

// Begin optionally creates the table and starts the loader.
func (s *RepositorySink) Begin(ctx context.Context, schema row.Schema) error {
	if s.in != nil {
		return errors.New("repository sink: Begin called twice")
	}
	if s.Repo == nil {
		return errors.New("repository sink: nil Repository")
	}
	log := s.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	if s.AutoCreate {
		if err := EnsureTable(ctx, s.Kind, s.Repo, s.Table, schema); err != nil {
			return fmt.Errorf("repository sink: create %s: %w", s.Table, err)
		}
		log.V(1).Info("table ensured", "table", s.Table, "columns", schema.Len())
	}
	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.in = make(chan []any, size)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.total, s.err = LoadBatches(lctx, log, s.Job, schema.Names(), s.in, size, s.Repo.CopyFrom)
	}()
	return nil
}

// Write queues one row. It fails once the loader has stopped.
func (s *RepositorySink) Write(ctx context.Context, r row.Row) error {
	if s.in == nil || s.closed {
		return errors.New("repository sink: Write outside Begin/Commit")
	}
	select {
	case s.in <- r.Any():
		return nil
	case <-s.done:
		if s.err != nil {
			return s.err
		}
		return errors.New("repository sink: loader stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Commit flushes the final batch and waits for the loader.
func (s *RepositorySink) Commit(context.Context) error {
	if s.in == nil || s.closed {
		return errors.New("repository sink: Commit without an open Begin")
	}
	s.closed = true
	close(s.in)
	<-s.done
	s.cancel()
	return s.err
}

// Abort stops the loader without flushing the pending batch.
func (s *RepositorySink) Abort(context.Context) error {
	if s.in == nil {
		return nil
	}
	s.closed = true
	s.cancel()
	<-s.done
	return nil
}

// Written returns the number of rows the backend reported after Commit.
func (s *RepositorySink) Written() int64 { return s.total }
