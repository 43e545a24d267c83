// Command cachebench runs a synthetic acquire/release workload against the
// object cache and exposes optional pprof/Prometheus endpoints.
//
// Workers pick keys from a Zipf distribution, hold a few references at a
// time and release them in random order, so last releases constantly race
// with new lookups of the same keys.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/objcache/cache"
	pmet "github.com/IvanBrykalov/objcache/metrics/prom"
	"github.com/IvanBrykalov/objcache/policy/twoq"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "cachebench:", err)
		os.Exit(2)
	}
	level, _ := cfg.level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	// ---- pprof server (on DefaultServeMux) ----
	if cfg.PprofAddr != "" {
		go func() {
			log.Info("pprof: serving", "addr", cfg.PprofAddr)
			log.Error("pprof server stopped", "err", http.ListenAndServe(cfg.PprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	var metrics cache.Metrics = cache.NoopMetrics{}
	if cfg.MetricsAddr != "" {
		metrics = pmet.New(nil, "objcache", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info("metrics: serving", "addr", cfg.MetricsAddr)
			log.Error("metrics server stopped", "err", http.ListenAndServe(cfg.MetricsAddr, nil))
		}()
	}

	// ---- Build cache ----
	opt := cache.Options[string, *resource]{
		Shards:   cfg.Cache.Shards,
		Coalesce: cfg.Cache.Coalesce,
		Retain:   cfg.Cache.Retain,
		IdleTTL:  time.Duration(cfg.Cache.IdleTTL),
		Metrics:  metrics,
		Logger:   log,
	}
	if cfg.Cache.Policy == "2q" {
		opt.Policy = twoq.New[string, *resource](max(cfg.Cache.Retain/4, 1), max(cfg.Cache.Retain/2, 1))
	}
	c := cache.New[string, *resource](opt)
	defer func() { _ = c.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelRun := context.WithTimeout(ctx, time.Duration(cfg.Workload.Duration))
	defer cancelRun()

	log.Info("running", "workers", cfg.Workload.Workers, "keys", cfg.Workload.Keys,
		"shards", cfg.Cache.Shards, "retain", cfg.Cache.Retain, "policy", cfg.Cache.Policy,
		"coalesce", cfg.Cache.Coalesce, "duration", time.Duration(cfg.Workload.Duration))

	res, err := run(ctx, c, cfg.Workload)
	if err != nil {
		log.Error("benchmark failed", "err", err)
		os.Exit(1)
	}
	res.print(os.Stdout, c.Stats())
	if res.Leaked != 0 {
		log.Error("live objects left after all releases", "count", res.Leaked)
		os.Exit(1)
	}
}
