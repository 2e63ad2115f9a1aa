// README: End-to-end check runner; drives the order workflow over HTTP, verifies rider state in Postgres, prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fluentops/internal/config"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL         string
	DSN             string
	RedisAddr       string
	MigrationsDir   string
	ApplyMigrations bool
	Strict          bool
	Keep            bool
	Timeout         time.Duration
	Concurrency     int
	Duration        time.Duration
}

// loadConfig starts from the service configuration so the runner talks to the
// same database and Redis as the API it checks.
func loadConfig() (Config, error) {
	svc, err := config.Load()
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("FLUENTOPS_BENCH_BASE_URL", "http://localhost"+svc.HTTP.Addr), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", svc.DB.DSN, "Postgres DSN")
	flag.StringVar(&cfg.RedisAddr, "redis", svc.Redis.Addr, "Redis address")
	flag.StringVar(&cfg.MigrationsDir, "migrations", "migrations", "directory with *.sql migrations")
	flag.BoolVar(&cfg.ApplyMigrations, "apply-migrations", false, "apply migrations before the checks")
	flag.BoolVar(&cfg.Strict, "strict", false, "treat skipped checks as failures")
	flag.BoolVar(&cfg.Keep, "keep", false, "keep the seeded riders and orders")
	flag.DurationVar(&cfg.Timeout, "timeout", 2*time.Minute, "total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", 20, "workers for the race and load checks")
	flag.DurationVar(&cfg.Duration, "duration", 10*time.Second, "length of each load check")
	flag.Parse()
	if cfg.Concurrency < 2 {
		return Config{}, fmt.Errorf("concurrency must be at least 2, got %d", cfg.Concurrency)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
