package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that reads "250ms"-style strings from TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Config drives one benchmark run. Precedence: defaults, then the TOML file
// named by -config, then flags given on the command line.
type Config struct {
	Cache    CacheConfig    `toml:"cache"`
	Workload WorkloadConfig `toml:"workload"`

	MetricsAddr string `toml:"metrics_addr"`
	PprofAddr   string `toml:"pprof_addr"`
	LogLevel    string `toml:"log_level"`
}

// CacheConfig maps onto cache.Options.
type CacheConfig struct {
	Shards   int      `toml:"shards"`
	Coalesce bool     `toml:"coalesce"`
	Retain   int      `toml:"retain"`
	Policy   string   `toml:"policy"`
	IdleTTL  Duration `toml:"idle_ttl"`
}

// WorkloadConfig shapes the synthetic acquire/release traffic.
type WorkloadConfig struct {
	Workers  int      `toml:"workers"`
	Duration Duration `toml:"duration"`
	Keys     int      `toml:"keys"`
	// Hold is how many references each worker keeps at most.
	Hold int `toml:"hold"`
	// CreateCost is the simulated factory latency.
	CreateCost Duration `toml:"create_cost"`
	ZipfS      float64  `toml:"zipf_s"`
	ZipfV      float64  `toml:"zipf_v"`
	Seed       int64    `toml:"seed"`
}

func defaultConfig() Config {
	return Config{
		Cache: CacheConfig{Policy: "lru"},
		Workload: WorkloadConfig{
			Workers:    2 * runtime.GOMAXPROCS(0),
			Duration:   Duration(10 * time.Second),
			Keys:       10_000,
			Hold:       4,
			CreateCost: Duration(50 * time.Microsecond),
			ZipfS:      1.1,
			ZipfV:      1.0,
			Seed:       time.Now().UnixNano(),
		},
		MetricsAddr: ":8080",
		LogLevel:    "info",
	}
}

// loadConfig parses args into a Config.
func loadConfig(args []string) (Config, error) {
	cfg := defaultConfig()
	var path string

	fs := flag.NewFlagSet("cachebench", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "TOML config file")
	fs.IntVar(&cfg.Cache.Shards, "shards", cfg.Cache.Shards, "number of shards (0=single lock, <0=auto)")
	fs.BoolVar(&cfg.Cache.Coalesce, "coalesce", cfg.Cache.Coalesce, "coalesce concurrent creations of a key")
	fs.IntVar(&cfg.Cache.Retain, "retain", cfg.Cache.Retain, "idle objects kept per shard (0=evict on last release)")
	fs.StringVar(&cfg.Cache.Policy, "policy", cfg.Cache.Policy, "retention policy: lru | 2q")
	fs.Func("idle-ttl", "idle object lifetime (e.g. 1s)", cfg.Cache.IdleTTL.set)
	fs.IntVar(&cfg.Workload.Workers, "workers", cfg.Workload.Workers, "number of worker goroutines")
	fs.Func("duration", "benchmark duration", cfg.Workload.Duration.set)
	fs.IntVar(&cfg.Workload.Keys, "keys", cfg.Workload.Keys, "keyspace size")
	fs.IntVar(&cfg.Workload.Hold, "hold", cfg.Workload.Hold, "references held per worker")
	fs.Func("create-cost", "simulated factory latency", cfg.Workload.CreateCost.set)
	fs.Float64Var(&cfg.Workload.ZipfS, "zipf-s", cfg.Workload.ZipfS, "Zipf s > 1 (skew)")
	fs.Float64Var(&cfg.Workload.ZipfV, "zipf-v", cfg.Workload.ZipfV, "Zipf v >= 1")
	fs.Int64Var(&cfg.Workload.Seed, "seed", cfg.Workload.Seed, "random seed")
	fs.StringVar(&cfg.MetricsAddr, "http", cfg.MetricsAddr, "serve Prometheus metrics at addr; empty = disabled")
	fs.StringVar(&cfg.PprofAddr, "pprof", cfg.PprofAddr, "serve pprof at addr (e.g. :6060); empty = disabled")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug | info | warn | error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
		// Flags given explicitly win over the file.
		if err := fs.Parse(args); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.validate()
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func (d *Duration) set(s string) error { return d.UnmarshalText([]byte(s)) }

func (c Config) validate() error {
	var errs []error
	if c.Cache.Policy != "lru" && c.Cache.Policy != "2q" {
		errs = append(errs, fmt.Errorf("unknown policy %q (use lru or 2q)", c.Cache.Policy))
	}
	if c.Workload.Keys < 1 {
		errs = append(errs, errors.New("keys must be positive"))
	}
	if c.Workload.ZipfS <= 1 || c.Workload.ZipfV < 1 {
		errs = append(errs, errors.New("zipf needs s > 1 and v >= 1"))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}
