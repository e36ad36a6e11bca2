package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"tablexform/internal/config"
	"tablexform/internal/logging"
	"tablexform/internal/metrics"
	"tablexform/internal/metrics/datadog"
	"tablexform/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "tablexform/internal/storage/all"
	// register the built-in transform stages.
	_ "tablexform/internal/transformer/builtin"
)

// main is the entry point for the xform binary. It loads the pipeline config,
// optionally initializes a metrics backend, runs one pipeline per source and
// writes the merged table to the configured sink.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		ddAddrFlg         string
		validate          bool
		jsonLogs          bool
		verbosity         int
		workers           int
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.yaml", "pipeline config path (JSON or YAML)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	flag.StringVar(&ddAddrFlg, "dd-addr", "", "DogStatsD address (env DD_AGENT_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs")
	flag.IntVar(&verbosity, "v", 0, "log verbosity")
	flag.IntVar(&workers, "workers", 0, "concurrent source pipelines (env XFORM_WORKERS, overrides runtime.workers)")
	flag.Parse()

	log := logging.New(verbosity, jsonLogs)

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("configuration is invalid: %s", cfgPath)
	}
	if validate {
		log.Info("configuration is valid", "path", cfgPath)
		return
	}
	if workers == 0 {
		if n, err := strconv.Atoi(os.Getenv("XFORM_WORKERS")); err == nil {
			workers = n
		}
	}
	if workers > 0 {
		p.Runtime.Workers = workers
	}
	if p.Job == "" {
		p.Job = "xform"
	}

	flush := setupMetrics(log, p.Job,
		firstNonEmpty(metricsBackendFlg, os.Getenv("METRICS_BACKEND")),
		firstNonEmpty(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091"),
		firstNonEmpty(ddAddrFlg, os.Getenv("DD_AGENT_ADDR"), "127.0.0.1:8125"),
	)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	log.V(1).Info("pipeline starting", "job", p.Job, "transform", p.Transform.Kind,
		"sources", len(p.AllSources()), "storage", p.Storage.Kind)

	sum, err := run(ctx, log, p)
	if err != nil {
		flush()
		fatalf("%v", err)
	}
	log.Info("completed", "rows", sum.Rows, "failedSources", sum.Failed,
		"elapsed", time.Since(start).Truncate(time.Millisecond))
}

// setupMetrics installs the selected backend and returns a flush func that
// is safe to call more than once.
func setupMetrics(log logr.Logger, job, backend, gwURL, ddAddr string) func() {
	var b metrics.Backend
	switch strings.ToLower(backend) {
	case "pushgateway":
		pb, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Error(err, "metrics: prom push backend unavailable; metrics disabled")
			return func() {}
		}
		log.V(1).Info("metrics enabled", "backend", backend, "url", gwURL)
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       ddAddr,
			Namespace:  "xform.",
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			log.Error(err, "metrics: datadog backend unavailable; metrics disabled")
			return func() {}
		}
		log.V(1).Info("metrics enabled", "backend", backend, "addr", ddAddr)
		b = db
	case "", "none":
		log.V(1).Info("metrics disabled")
		return func() {}
	default:
		log.Info("unknown metrics backend; metrics disabled", "backend", backend)
		return func() {}
	}

	metrics.SetBackend(b)
	flushed := false
	return func() {
		if flushed {
			return
		}
		flushed = true
		if err := metrics.Flush(); err != nil {
			log.Error(err, "metrics: flush")
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
