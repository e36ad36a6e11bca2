// Package transformer defines the two-pass Stage contract that the pipeline
// driver feeds a row stream through, the fatal error kinds a run can end
// with, and a registry that builds stages by kind from configuration.
//
// A Stage is driven in a fixed order:
//
//	Initialize → ConsumeRow (once per input row) → PreFinalize → Finalize
//
// Streaming stages know their output schema at Initialize and emit rows from
// ConsumeRow. Buffering stages return streaming=false from Initialize, keep
// everything internally, commit their schema in PreFinalize and emit all rows
// from Finalize.
package transformer

import (
	"fmt"
	"sort"
	"sync"

	"tablexform/internal/config"
	"tablexform/internal/row"
)

// Stage is the pluggable unit of work driven by the pipeline. A Stage
// instance serves exactly one run and is never called concurrently.
type Stage interface {
	// Initialize inspects the upstream schema. When streaming is true, out is
	// final and every row returned by ConsumeRow must conform to it. When
	// streaming is false, out is ignored and the stage decides its schema in
	// PreFinalize. A missing required column is reported as a *SchemaError.
	Initialize(in row.Schema) (out row.Schema, streaming bool, err error)

	// ConsumeRow is called once per input row, in input order. Buffering
	// stages return no rows.
	ConsumeRow(in row.Row) ([]row.Row, error)

	// PreFinalize is called once after the last row and returns the final
	// output schema. Streaming stages return the schema from Initialize.
	PreFinalize() (row.Schema, error)

	// Finalize is called once and returns every buffered output row.
	Finalize() ([]row.Row, error)
}

// Factory builds a fresh Stage from its options bag.
type Factory func(opts config.Options) (Stage, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a stage kind available to New. It is typically called from
// init functions; registering a kind twice replaces the earlier factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New builds a Stage of the given kind.
func New(kind string, opts config.Options) (Stage, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transformer: unknown stage kind %q", kind)
	}
	if opts == nil {
		opts = config.Options{}
	}
	s, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("transformer: build %q: %w", kind, err)
	}
	return s, nil
}

// Kinds lists the registered stage kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
