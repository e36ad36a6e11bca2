// Package pipeline drives one row stream through one transformer.Stage into
// one storage.Sink, enforcing the two-pass stage protocol:
//
//	Idle → Initializing → Streaming → PreFinalizing → Finalizing → Done
//
// Any error moves the driver to Failed. There are no retries; the error is
// the result of the run and the sink is told to Abort.
//
// A Driver is single-use and not safe for concurrent use. Independent runs
// (one per data source) each get their own Driver and Stage; see package
// fanout.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"

	"tablexform/internal/datasource"
	"tablexform/internal/metrics"
	"tablexform/internal/row"
	"tablexform/internal/storage"
	"tablexform/internal/transformer"
)

// State is a driver lifecycle state.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateStreaming
	StatePreFinalizing
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateStreaming:
		return "streaming"
	case StatePreFinalizing:
		return "prefinalizing"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// errBufferedEmit is the cause of a RowShapeError raised when a buffering
// stage returns rows from ConsumeRow.
var errBufferedEmit = errors.New("buffering stage returned rows before finalize")

// ErrDriverUsed is returned by Run on a Driver that already ran.
var ErrDriverUsed = errors.New("pipeline: driver already used")

// GroupCounter is implemented by stages that can report how many groups they
// built (e.g. the rollup stage). The count is copied into Stats.
type GroupCounter interface {
	Groups() int
}

// Stats summarizes a run.
type Stats struct {
	Streaming bool
	RowsIn    int64
	RowsOut   int64
	Groups    int
	Columns   int

	Initialize  time.Duration
	Stream      time.Duration
	PreFinalize time.Duration
	Finalize    time.Duration
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger; the default discards.
func WithLogger(l logr.Logger) Option { return func(d *Driver) { d.log = l } }

// WithJob sets the job label used for metrics.
func WithJob(job string) Option { return func(d *Driver) { d.job = job } }

// Driver owns the state machine for a single run.
type Driver struct {
	stage transformer.Stage
	log   logr.Logger
	job   string

	state     State
	schema    row.Schema
	streaming bool
	begun     bool
	stats     Stats
}

// New returns an idle Driver for stage.
func New(stage transformer.Stage, opts ...Option) *Driver {
	d := &Driver{stage: stage, log: logr.Discard(), job: "xform"}
	for _, o := range opts {
		o(d)
	}
	return d
}

// State reports the current state.
func (d *Driver) State() State { return d.state }

// Run is a shortcut for New(stage, opts...).Run(ctx, src, sink).
func Run(ctx context.Context, src datasource.RowSource, stage transformer.Stage, sink storage.Sink, opts ...Option) (Stats, error) {
	return New(stage, opts...).Run(ctx, src, sink)
}

// Run feeds src through the stage into sink. src is closed before Run
// returns. On error the sink's Abort is called if Begin was.
func (d *Driver) Run(ctx context.Context, src datasource.RowSource, sink storage.Sink) (stats Stats, err error) {
	if d.state != StateIdle {
		return d.stats, ErrDriverUsed
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = &transformer.UpstreamError{Err: fmt.Errorf("close: %w", cerr)}
		}
		if err != nil {
			d.fail(ctx, sink, err)
		}
		stats = d.stats
	}()

	in, err := d.initialize(ctx, src, sink)
	if err != nil {
		return d.stats, err
	}
	if err := d.stream(ctx, src, sink, in); err != nil {
		return d.stats, err
	}
	if err := d.preFinalize(ctx, sink); err != nil {
		return d.stats, err
	}
	if err := d.finalize(ctx, sink); err != nil {
		return d.stats, err
	}
	if err := sink.Commit(ctx); err != nil {
		return d.stats, fmt.Errorf("sink commit: %w", err)
	}

	d.state = StateDone
	d.log.V(1).Info("pipeline done", "rowsIn", d.stats.RowsIn, "rowsOut", d.stats.RowsOut,
		"columns", d.stats.Columns, "groups", d.stats.Groups)
	return d.stats, nil
}

func (d *Driver) fail(ctx context.Context, sink storage.Sink, err error) {
	from := d.state
	d.state = StateFailed
	d.log.Error(err, "pipeline failed", "state", from.String(), "rowsIn", d.stats.RowsIn)
	if d.begun {
		if aerr := sink.Abort(context.WithoutCancel(ctx)); aerr != nil {
			d.log.Error(aerr, "sink abort failed")
		}
	}
}

// commit makes schema the live output schema and announces it to the sink.
func (d *Driver) commit(ctx context.Context, sink storage.Sink, schema row.Schema) error {
	d.schema = schema
	d.stats.Columns = schema.Len()
	if err := sink.Begin(ctx, schema); err != nil {
		return fmt.Errorf("sink begin: %w", err)
	}
	d.begun = true
	return nil
}

func (d *Driver) initialize(ctx context.Context, src datasource.RowSource, sink storage.Sink) (row.Schema, error) {
	d.state = StateInitializing
	start := time.Now()

	in, err := src.Schema(ctx)
	if err != nil {
		err = &transformer.UpstreamError{Err: fmt.Errorf("schema: %w", err)}
		metrics.RecordStep(d.job, "initialize", err, time.Since(start))
		return row.Schema{}, err
	}
	out, streaming, err := d.stage.Initialize(in)
	if err == nil {
		d.streaming = streaming
		d.stats.Streaming = streaming
		if streaming {
			err = d.commit(ctx, sink, out)
		}
	} else {
		err = fmt.Errorf("initialize: %w", err)
	}

	d.stats.Initialize = time.Since(start)
	metrics.RecordStep(d.job, "initialize", err, d.stats.Initialize)
	if err != nil {
		return row.Schema{}, err
	}
	d.log.V(1).Info("stage initialized", "input", in.String(), "streaming", streaming)
	return in, nil
}

func (d *Driver) stream(ctx context.Context, src datasource.RowSource, sink storage.Sink, in row.Schema) (err error) {
	d.state = StateStreaming
	start := time.Now()
	defer func() {
		d.stats.Stream = time.Since(start)
		metrics.RecordStep(d.job, "stream", err, d.stats.Stream)
		metrics.RecordRow(d.job, "consumed", d.stats.RowsIn)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &transformer.UpstreamError{Err: err}
		}
		if err := r.Conforms(in); err != nil {
			return &transformer.RowShapeError{Phase: "input", Index: int(d.stats.RowsIn), Err: err}
		}
		idx := int(d.stats.RowsIn)
		d.stats.RowsIn++

		out, err := d.stage.ConsumeRow(r)
		if err != nil {
			return fmt.Errorf("consume row %d: %w", idx, err)
		}
		if !d.streaming {
			if len(out) > 0 {
				return &transformer.RowShapeError{Phase: "stream", Index: idx, Err: errBufferedEmit}
			}
			continue
		}
		if err := d.forward(ctx, sink, "stream", out); err != nil {
			return err
		}
	}
}

func (d *Driver) forward(ctx context.Context, sink storage.Sink, phase string, rows []row.Row) error {
	for _, r := range rows {
		if err := r.Conforms(d.schema); err != nil {
			return &transformer.RowShapeError{Phase: phase, Index: int(d.stats.RowsOut), Err: err}
		}
		if err := sink.Write(ctx, r); err != nil {
			return fmt.Errorf("sink write: %w", err)
		}
		d.stats.RowsOut++
	}
	return nil
}

func (d *Driver) preFinalize(ctx context.Context, sink storage.Sink) (err error) {
	d.state = StatePreFinalizing
	start := time.Now()
	defer func() {
		d.stats.PreFinalize = time.Since(start)
		metrics.RecordStep(d.job, "prefinalize", err, d.stats.PreFinalize)
	}()

	out, err := d.stage.PreFinalize()
	if err != nil {
		return fmt.Errorf("prefinalize: %w", err)
	}
	if d.streaming {
		if !out.Equal(d.schema) {
			return fmt.Errorf("prefinalize: streaming stage changed schema from %s to %s", d.schema, out)
		}
		return nil
	}
	if err := d.commit(ctx, sink, out); err != nil {
		return err
	}
	d.log.V(1).Info("output schema committed", "schema", out.String())
	return nil
}

func (d *Driver) finalize(ctx context.Context, sink storage.Sink) (err error) {
	d.state = StateFinalizing
	start := time.Now()
	defer func() {
		d.stats.Finalize = time.Since(start)
		metrics.RecordStep(d.job, "finalize", err, d.stats.Finalize)
		metrics.RecordRow(d.job, "emitted", d.stats.RowsOut)
		metrics.RecordRow(d.job, "groups", int64(d.stats.Groups))
	}()

	if gc, ok := d.stage.(GroupCounter); ok {
		d.stats.Groups = gc.Groups()
	}
	rows, err := d.stage.Finalize()
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	return d.forward(ctx, sink, "finalize", rows)
}
