package config

import (
	"fmt"
	"strings"

	"tablexform/internal/row"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the config
// (e.g. "sources[1].query", "transform.options.group_order").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	knownSourceKinds = map[string]struct{}{"csv": {}, "sql": {}}
	knownDrivers     = map[string]struct{}{"sqlite": {}, "pgx": {}, "sqlserver": {}, "mysql": {}}
	knownStorage     = map[string]struct{}{"csv": {}, "sqlite": {}, "postgres": {}, "mssql": {}, "mysql": {}}
	knownTransforms  = map[string]struct{}{
		"passthrough":              {},
		"duplicate_first":          {},
		"buffered_duplicate_first": {},
		"rollup":                   {},
		"require":                  {},
		"coerce":                   {},
		"dedup":                    {},
		"normalize":                {},
	}
)

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate p; callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics",
		})
	}

	switch {
	case len(p.Sources) > 0:
		if p.Source.Kind != "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source",
				Message:  "both source and sources are set; source is ignored",
			})
		}
		names := map[string]int{}
		for i, s := range p.Sources {
			path := fmt.Sprintf("sources[%d]", i)
			issues = append(issues, validateSource(path, s)...)
			if s.Name == "" {
				continue
			}
			if j, dup := names[s.Name]; dup {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".name",
					Message:  fmt.Sprintf("name %q already used by sources[%d]", s.Name, j),
				})
				continue
			}
			names[s.Name] = i
		}
	case p.Source.Kind != "":
		issues = append(issues, validateSource("source", p.Source)...)
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source",
			Message:  "one of source or sources must be configured",
		})
	}

	issues = append(issues, validateTransform(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime, p.Storage)...)
	return issues
}

func validateSource(path string, s Source) []Issue {
	var issues []Issue
	errAt := func(field, msg string) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path + field, Message: msg})
	}

	if _, ok := knownSourceKinds[s.Kind]; !ok {
		errAt(".kind", fmt.Sprintf("unknown source kind %q; want csv or sql", s.Kind))
		return issues
	}

	switch s.Kind {
	case "csv":
		if strings.TrimSpace(s.Path) == "" {
			errAt(".path", "csv source requires a non-empty path")
		}
		if len([]rune(s.Comma)) > 1 {
			errAt(".comma", "comma must be a single character")
		}
		for i, c := range s.Columns {
			if strings.TrimSpace(c.Name) == "" {
				errAt(fmt.Sprintf(".columns[%d].name", i), "column name must not be empty")
			}
			if _, err := row.ParseKind(c.Type); err != nil {
				errAt(fmt.Sprintf(".columns[%d].type", i), err.Error())
			}
		}
	case "sql":
		if _, ok := knownDrivers[s.Driver]; !ok {
			errAt(".driver", fmt.Sprintf("unknown driver %q; want sqlite, pgx, sqlserver or mysql", s.Driver))
		}
		if strings.TrimSpace(s.DSN) == "" {
			errAt(".dsn", "sql source requires a dsn")
		}
		if strings.TrimSpace(s.Query) == "" {
			errAt(".query", "sql source requires a query")
		}
		if len(s.Columns) > 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".columns",
				Message:  "columns are ignored for sql sources; kinds come from the driver",
			})
		}
	}
	return issues
}

func validateTransform(t Transform) []Issue {
	var issues []Issue

	if strings.TrimSpace(t.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "transform.kind",
			Message:  "transform kind must not be empty",
		})
	}
	if _, ok := knownTransforms[t.Kind]; !ok {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "transform.kind",
			Message:  fmt.Sprintf("unknown transform kind %q", t.Kind),
		})
	}

	switch t.Kind {
	case "rollup":
		name := t.Options.String("name_column", "ROLLUP_NAME")
		value := t.Options.String("value_column", "ROLLUP_VALUE")
		if row.Fold(name) == row.Fold(value) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "transform.options",
				Message:  fmt.Sprintf("name_column and value_column must differ (both %q)", name),
			})
		}
		switch strings.ToLower(t.Options.String("group_order", "discovery")) {
		case "discovery", "sorted":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "transform.options.group_order",
				Message:  "group_order must be discovery or sorted",
			})
		}
	case "require":
		if len(t.Options.StringSlice("fields")) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "transform.options.fields",
				Message:  "require has no fields; every row passes",
			})
		}
	case "coerce":
		for col, typ := range t.Options.StringMap("types") {
			if _, err := row.ParseKind(typ); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "transform.options.types." + col,
					Message:  err.Error(),
				})
			}
		}
		switch strings.ToLower(t.Options.String("on_error", "fail")) {
		case "fail", "null", "drop":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "transform.options.on_error",
				Message:  "on_error must be fail, null or drop",
			})
		}
	case "dedup":
		if len(t.Options.StringSlice("keys")) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "transform.options.keys",
				Message:  "dedup requires at least one key column",
			})
		}
		switch strings.ToLower(strings.TrimSpace(t.Options.String("policy", "keep-last"))) {
		case "keep-first", "keep-last", "most-complete":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "transform.options.policy",
				Message:  "policy must be keep-first, keep-last or most-complete",
			})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	}
	if _, ok := knownStorage[s.Kind]; !ok {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q", s.Kind),
		})
	}
	if s.Kind == "csv" {
		if len([]rune(s.CSV.Comma)) > 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.csv.comma",
				Message:  "comma must be a single character",
			})
		}
		return issues
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig, s Storage) []Issue {
	var issues []Issue

	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	if r.BatchSize == 0 && s.Kind != "" && s.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  "batch_size unset; the sink default is used",
		})
	}
	return issues
}
