package main

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"tablexform/internal/config"
	"tablexform/internal/datasource"
	"tablexform/internal/datasource/csvsource"
	"tablexform/internal/datasource/file"
	"tablexform/internal/datasource/sqlsource"
	"tablexform/internal/fanout"
	"tablexform/internal/pipeline"
	"tablexform/internal/row"
	"tablexform/internal/storage"
	"tablexform/internal/storage/csvsink"
	"tablexform/internal/transformer"
)

// summary is what a run reports back to main.
type summary struct {
	Rows   int
	Failed int
}

// run executes one pipeline per configured source, merges the successful
// tables and writes the result to the configured sink. Failed sources are
// reported in the returned error after the merged table has been written;
// with runtime.cancel_on_error nothing is written once a source fails.
func run(ctx context.Context, log logr.Logger, p config.Pipeline) (summary, error) {
	sources := p.AllSources()
	if len(sources) == 0 {
		return summary{}, fmt.Errorf("no sources configured")
	}

	units := make([]fanout.Unit, len(sources))
	for i, src := range sources {
		name := src.Name
		if name == "" {
			name = fmt.Sprintf("source[%d]", i)
		}
		units[i] = fanout.Unit{Name: name, Run: unitFunc(log.WithValues("source", name), p, src)}
	}

	exec := &fanout.Executor{
		Workers:       p.Runtime.Workers,
		CancelOnError: p.Runtime.CancelOnError,
		Logger:        log.WithName("fanout"),
	}
	results := exec.Run(ctx, units)
	failures := fanout.Errors(results)

	var sum summary
	for _, r := range results {
		if r.Err != nil {
			sum.Failed++
		}
	}
	if sum.Failed == len(results) || (failures != nil && p.Runtime.CancelOnError) {
		return sum, failures
	}

	master, err := fanout.Merge(results)
	if err != nil {
		return sum, err
	}
	sum.Rows = master.Len()

	sink, closeFn, err := newSink(ctx, log, p)
	if err != nil {
		return sum, err
	}
	defer closeFn()
	if err := master.Replay(ctx, sink); err != nil {
		return sum, fmt.Errorf("write %s: %w", p.Storage.Kind, err)
	}
	return sum, failures
}

// unitFunc builds the fan-out unit for one source: open it, build a fresh
// stage and drive it into an in-memory table.
func unitFunc(log logr.Logger, p config.Pipeline, src config.Source) func(context.Context) (*storage.Table, error) {
	return func(ctx context.Context) (*storage.Table, error) {
		rs, err := openSource(ctx, src)
		if err != nil {
			return nil, err
		}
		stage, err := transformer.New(p.Transform.Kind, p.Transform.Options)
		if err != nil {
			_ = rs.Close()
			return nil, err
		}
		tbl := storage.NewTable()
		stats, err := pipeline.Run(ctx, rs, stage, tbl, pipeline.WithLogger(log), pipeline.WithJob(p.Job))
		if err != nil {
			return nil, err
		}
		log.V(1).Info("source done", "rowsIn", stats.RowsIn, "rowsOut", stats.RowsOut, "groups", stats.Groups)
		return tbl, nil
	}
}

func openSource(ctx context.Context, src config.Source) (datasource.RowSource, error) {
	switch src.Kind {
	case "csv":
		kinds := make(map[string]row.Kind, len(src.Columns))
		for _, c := range src.Columns {
			k, err := row.ParseKind(c.Type)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			kinds[c.Name] = k
		}
		return csvsource.New(file.NewLocal(src.Path), csvsource.Options{
			Comma:            firstRune(src.Comma),
			Kinds:            kinds,
			NormalizeHeaders: src.NormalizeHeaders,
		}), nil
	case "sql":
		s, err := sqlsource.Open(ctx, sqlsource.Config{
			Driver: src.Driver,
			DSN:    src.DSN,
			Query:  src.Query,
			Params: src.Params,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported source.kind=%s", src.Kind)
}

// newSink returns the configured sink and a cleanup func for the resources
// behind it.
func newSink(ctx context.Context, log logr.Logger, p config.Pipeline) (storage.Sink, func(), error) {
	if p.Storage.Kind == "csv" {
		path := p.Storage.CSV.Path
		if path == "" {
			path = csvsink.Stdout
		}
		return csvsink.New(path, firstRune(p.Storage.CSV.Comma)), func() {}, nil
	}

	repo, err := storage.New(ctx, storage.Config{
		Kind:  p.Storage.Kind,
		DSN:   p.Storage.DB.DSN,
		Table: p.Storage.DB.Table,
	})
	if err != nil {
		return nil, nil, err
	}
	sink := &storage.RepositorySink{
		Repo:       repo,
		Kind:       p.Storage.Kind,
		Table:      p.Storage.DB.Table,
		AutoCreate: p.Storage.DB.AutoCreateTable,
		BatchSize:  p.Runtime.BatchSize,
		Job:        p.Job,
		Logger:     log.WithName("sink"),
	}
	return sink, repo.Close, nil
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
