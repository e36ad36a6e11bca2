// Package config defines the pipeline configuration model for xform. A
// pipeline names one or more row sources, a single transform stage and a
// sink. Files may be JSON or YAML; YAML is converted to JSON before decoding,
// so both share the same struct tags.
//
// Example (trimmed):
//
//	{
//	  "job": "lot-rollup",
//	  "source": {
//	    "kind": "sql", "driver": "sqlite", "dsn": "file:inspections.db",
//	    "query": "SELECT lot, name, val FROM results WHERE site = ?",
//	    "params": ["north"]
//	  },
//	  "transform": { "kind": "rollup", "options": { "name_column": "NAME", "value_column": "VAL" } },
//	  "storage":   { "kind": "csv", "csv": { "path": "-" } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels logs and metrics for this run.
	Job string `json:"job"`

	// Source is the single-source form. Sources, when non-empty, takes
	// precedence and fans the same transform out over every entry.
	Source  Source   `json:"source"`
	Sources []Source `json:"sources,omitempty"`

	// Transform selects the stage applied to every source's row stream.
	Transform Transform `json:"transform"`

	Storage Storage       `json:"storage"`
	Runtime RuntimeConfig `json:"runtime"`
}

// AllSources returns the configured sources, folding the single-source form
// into a one-element list.
func (p Pipeline) AllSources() []Source {
	if len(p.Sources) > 0 {
		return p.Sources
	}
	if p.Source.Kind == "" {
		return nil
	}
	return []Source{p.Source}
}

// RuntimeConfig controls fan-out concurrency and sink batching.
type RuntimeConfig struct {
	// Workers bounds concurrent source pipelines. Zero means the executor default.
	Workers int `json:"workers"`

	// CancelOnError stops outstanding sources after the first failure.
	CancelOnError bool `json:"cancel_on_error"`

	// BatchSize is the number of rows per database write.
	BatchSize int `json:"batch_size"`
}

// Source identifies one row source.
type Source struct {
	// Name distinguishes sources in logs. Defaults to "source[i]".
	Name string `json:"name"`

	// Kind selects the source implementation: "csv" or "sql".
	Kind string `json:"kind"`

	// Path, Comma and NormalizeHeaders apply to "csv". NormalizeHeaders
	// folds header text to lowercase ASCII identifiers.
	Path             string `json:"path"`
	Comma            string `json:"comma"`
	NormalizeHeaders bool   `json:"normalize_headers"`

	// Columns declares the kind of each CSV column by header name. Columns
	// not listed are text.
	Columns []Column `json:"columns"`

	// Driver, DSN, Query and Params apply to "sql". Driver is one of
	// "sqlite", "pgx", "sqlserver" or "mysql".
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

// Column declares a column kind, spelled as accepted by row.ParseKind.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Transform defines the stage run by every pipeline unit.
type Transform struct {
	// Kind selects a registered stage (e.g. "rollup", "duplicate_first").
	Kind string `json:"kind"`

	// Options is interpreted by the selected stage.
	Options Options `json:"options"`
}

// Storage selects the sink that receives the merged table.
type Storage struct {
	// Kind is "csv" or a database backend: "sqlite", "postgres", "mssql",
	// "mysql".
	Kind string `json:"kind"`

	CSV CSVConfig `json:"csv"`
	DB  DBConfig  `json:"db"`
}

// CSVConfig configures the CSV sink. Path "-" (or empty) writes to stdout.
type CSVConfig struct {
	Path  string `json:"path"`
	Comma string `json:"comma"`
}

// DBConfig configures a database sink.
type DBConfig struct {
	DSN string `json:"dsn"`

	// Table is the destination table, optionally schema-qualified.
	Table string `json:"table"`

	// AutoCreateTable creates Table from the output schema before the first
	// batch is written.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Load reads a pipeline file. JSON and YAML are both accepted.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := Decode(b, &p); err != nil {
		return p, fmt.Errorf("config: %s: %w", path, err)
	}
	return p, nil
}

// Decode parses JSON or YAML bytes into p.
func Decode(b []byte, p *Pipeline) error {
	js, err := yaml.YAMLToJSON(b)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(js, p); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Options fetches typed values from free-form option maps. Missing keys and
// values of an unexpected type yield the supplied default.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if s, ok := o[key].(string); ok && s != "" {
		return []rune(s)[0]
	}
	return def
}

// StringMap returns the string-valued entries of an object value. It never
// returns nil.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if m, ok := o[key].(map[string]any); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns the string elements of an array value, or nil when the
// key is missing.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	return o[key]
}

// UnmarshalJSON decodes a null or missing object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if tmp == nil {
		tmp = map[string]any{}
	}
	*o = Options(tmp)
	return nil
}
