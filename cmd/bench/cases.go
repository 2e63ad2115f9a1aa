// README: Check cases: environment, migrations, the order card flow, the assignment race and load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// run-scoped fixtures, prefixed so they never collide with real data
	prefix string
	riders []string
	orders []string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		prefix: "bench_" + uuid.NewString()[:8],
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency.Round(time.Millisecond))
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if !r.cfg.Keep {
		r.cleanup(ctx)
	}
	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return fail("db not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return fail(err.Error())
			}
			return pass("")
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return fail("redis not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return fail(err.Error())
			}
			return pass("")
		}},
		{Name: "Migration: apply", Run: runApplyMigrations},
		{Name: "Migration: tables exist", Run: runTablesExist},
		{Name: "Seed: riders", Run: runSeedRiders},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", nil, http.StatusOK)
		}},

		{Name: "Intake: create order", Run: func(ctx context.Context, r *Runner) Result {
			id, res := r.createOrder(ctx, "Ana")
			if id != "" {
				r.orders = append(r.orders, id)
			}
			return res
		}},
		{Name: "Intake: missing fields -> 400", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/orders", map[string]any{"customer_name": "x"}, http.StatusBadRequest)
		}},
		{Name: "Kitchen: mark ready", Run: func(ctx context.Context, r *Runner) Result {
			return r.onOrder(0, func(id string) Result {
				return r.expect(ctx, http.MethodPost, "/api/orders/"+id+"/ready", nil, http.StatusOK)
			})
		}},
		{Name: "Assign: busy rider -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.onOrder(0, func(id string) Result {
				return r.expect(ctx, http.MethodPost, "/api/orders/"+id+"/assign",
					map[string]any{"rider_id": r.busyRider()}, http.StatusConflict)
			})
		}},
		{Name: "Assign: available rider", Run: func(ctx context.Context, r *Runner) Result {
			if len(r.riders) == 0 {
				return skip("riders not seeded")
			}
			return r.onOrder(0, func(id string) Result {
				res := r.expect(ctx, http.MethodPost, "/api/orders/"+id+"/assign",
					map[string]any{"rider_id": r.riders[0]}, http.StatusOK)
				if res.Status != StatusPass {
					return res
				}
				return r.expectRider(ctx, r.riders[0], "busy", res)
			})
		}},
		{Name: "Complete: releases rider", Run: func(ctx context.Context, r *Runner) Result {
			if len(r.riders) == 0 {
				return skip("riders not seeded")
			}
			return r.onOrder(0, func(id string) Result {
				res := r.expect(ctx, http.MethodPost, "/api/orders/"+id+"/complete", nil, http.StatusOK)
				if res.Status != StatusPass {
					return res
				}
				return r.expectRider(ctx, r.riders[0], "available", res)
			})
		}},
		{Name: "Complete: delivered again -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.onOrder(0, func(id string) Result {
				return r.expect(ctx, http.MethodPost, "/api/orders/"+id+"/complete", nil, http.StatusConflict)
			})
		}},
		{Name: "Cancel: delivered -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.onOrder(0, func(id string) Result {
				return r.expect(ctx, http.MethodPost, "/api/orders/"+id+"/cancel", nil, http.StatusConflict)
			})
		}},
		{Name: "Cancel: kitchen order, twice", Run: func(ctx context.Context, r *Runner) Result {
			id, res := r.createOrder(ctx, "Beto")
			if id == "" {
				return res
			}
			r.orders = append(r.orders, id)
			if res := r.expect(ctx, http.MethodPost, "/api/orders/"+id+"/cancel", nil, http.StatusOK); res.Status != StatusPass {
				return res
			}
			return r.expect(ctx, http.MethodPost, "/api/orders/"+id+"/cancel", nil, http.StatusOK)
		}},
		{Name: "Board: synchronous refresh", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/board/refresh?wait=true", nil, http.StatusOK)
		}},
		{Name: "Board: invalid filter -> 400", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/board?filter=late", nil, http.StatusBadRequest)
		}},
		{Name: "Tracking: public view", Run: func(ctx context.Context, r *Runner) Result {
			return r.onOrder(0, func(id string) Result {
				return r.expect(ctx, http.MethodGet, "/api/tracking/"+id, nil, http.StatusOK)
			})
		}},

		{Name: "Concurrency: one order, many riders", Run: runAssignRace},
		{Name: "Perf: board reads", Run: func(ctx context.Context, r *Runner) Result {
			return r.load(ctx, http.MethodGet, "/api/board?filter=pending", nil)
		}},
		{Name: "Perf: order intake", Run: func(ctx context.Context, r *Runner) Result {
			return r.load(ctx, http.MethodPost, "/api/orders", map[string]any{
				"customer_name":    r.prefix,
				"delivery_address": "Av. Larco 123",
				"items":            "pizza, gaseosa",
			})
		}},
	}
}

func runApplyMigrations(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigrations {
		return skip("apply-migrations=false")
	}
	if r.db == nil {
		return fail("db not configured")
	}
	files, err := migrationFiles(r.cfg.MigrationsDir)
	if err != nil {
		return fail(err.Error())
	}
	for _, path := range files {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fail(err.Error())
		}
		for _, stmt := range splitSQL(string(sql)) {
			if _, err := r.db.Exec(ctx, stmt); err != nil {
				return fail(filepath.Base(path) + ": " + err.Error())
			}
		}
	}
	return pass(fmt.Sprintf("%d files", len(files)))
}

func runTablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return fail("db not configured")
	}
	files, err := migrationFiles(r.cfg.MigrationsDir)
	if err != nil {
		return fail(err.Error())
	}
	var tables []string
	for _, path := range files {
		t, err := extractTables(path)
		if err != nil {
			return fail(err.Error())
		}
		tables = append(tables, t...)
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return fail(err.Error())
		}
		if !exists {
			return fail("missing table: " + t)
		}
	}
	return pass(fmt.Sprintf("%d tables", len(tables)))
}

// runSeedRiders inserts one busy rider plus one available rider per worker.
func runSeedRiders(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return fail("db not configured")
	}
	for i := 0; i <= r.cfg.Concurrency; i++ {
		id := fmt.Sprintf("%s_r%02d", r.prefix, i)
		status := "available"
		if i == r.cfg.Concurrency {
			status = "busy"
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO riders (id, name, status) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`,
			id, "Bench rider "+id, status,
		)
		if err != nil {
			return fail(err.Error())
		}
		r.riders = append(r.riders, id)
	}
	return pass(fmt.Sprintf("%d riders", len(r.riders)))
}

// runAssignRace fires one assign per available rider at the same order. Exactly
// one may win; every loser's reservation must be undone.
func runAssignRace(ctx context.Context, r *Runner) Result {
	if len(r.riders) <= r.cfg.Concurrency {
		return skip("riders not seeded")
	}
	id, res := r.createOrder(ctx, "Carla")
	if id == "" {
		return res
	}
	r.orders = append(r.orders, id)

	var (
		wg      sync.WaitGroup
		success atomic.Int64
		conflict atomic.Int64
		other   atomic.Int64
	)
	start := time.Now()
	for _, riderID := range r.riders[:r.cfg.Concurrency] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := r.do(ctx, http.MethodPost, "/api/orders/"+id+"/assign", map[string]any{"rider_id": riderID})
			switch {
			case err != nil:
				other.Add(1)
			case status == http.StatusOK:
				success.Add(1)
			case status == http.StatusConflict:
				conflict.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()
	latency := time.Since(start)

	note := fmt.Sprintf("success=%d conflict=%d other=%d", success.Load(), conflict.Load(), other.Load())
	if success.Load() != 1 {
		return Result{Status: StatusFail, Latency: latency, Note: note}
	}

	var busy int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM riders WHERE id LIKE $1 AND status = 'busy'`, r.prefix+"_r%",
	).Scan(&busy)
	if err != nil {
		return fail(err.Error())
	}
	// the seeded busy rider plus the single winner
	if busy != 2 {
		return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("%s busy=%d, want 2", note, busy)}
	}
	return Result{Status: StatusPass, Latency: latency, Note: note}
}

func (r *Runner) load(ctx context.Context, method, path string, body any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.do(ctx, method, path, body)
				if err != nil || status >= 500 {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return fail("no requests completed")
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return pass(fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load()))
}

func (r *Runner) createOrder(ctx context.Context, name string) (string, Result) {
	start := time.Now()
	status, body, err := r.do(ctx, http.MethodPost, "/api/orders", map[string]any{
		"customer_name":    name + " " + r.prefix,
		"customer_phone":   "51999888777",
		"delivery_address": "Av. Larco 123",
		"items":            []any{"Lomo saltado", map[string]any{"name": "Inca Kola", "quantity": 2}},
	})
	latency := time.Since(start)
	if err != nil {
		return "", fail(err.Error())
	}
	if status != http.StatusCreated {
		return "", Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", fail("no id in response")
	}
	if created.Status != "kitchen" {
		return "", fail("new order status " + created.Status)
	}
	return created.ID, Result{Status: StatusPass, Latency: latency, Note: "id=" + created.ID}
}

func (r *Runner) onOrder(i int, fn func(id string) Result) Result {
	if i >= len(r.orders) {
		return skip("no order created")
	}
	return fn(r.orders[i])
}

func (r *Runner) busyRider() string {
	if len(r.riders) == 0 {
		return "missing"
	}
	return r.riders[len(r.riders)-1]
}

func (r *Runner) expectRider(ctx context.Context, id, want string, res Result) Result {
	if r.db == nil {
		return res
	}
	var got string
	if err := r.db.QueryRow(ctx, `SELECT status FROM riders WHERE id = $1`, id).Scan(&got); err != nil {
		return fail(err.Error())
	}
	if got != want {
		return Result{Status: StatusFail, Latency: res.Latency, Note: fmt.Sprintf("rider %s is %s, want %s", id, got, want)}
	}
	return res
}

func (r *Runner) expect(ctx context.Context, method, path string, body any, want int) Result {
	start := time.Now()
	status, _, err := r.do(ctx, method, path, body)
	latency := time.Since(start)
	if err != nil {
		return fail(err.Error())
	}
	note := fmt.Sprintf("status=%d", status)
	if status != want {
		return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("%s, want %d", note, want)}
	}
	return Result{Status: StatusPass, Latency: latency, Note: note}
}

func (r *Runner) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

// cleanup removes everything the run seeded, including orders from the load check.
func (r *Runner) cleanup(ctx context.Context) {
	if r.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, _ = r.db.Exec(ctx, `DELETE FROM orders WHERE customer_name LIKE $1`, "%"+r.prefix)
	_, _ = r.db.Exec(ctx, `DELETE FROM riders WHERE id LIKE $1`, r.prefix+"_r%")
}

func pass(note string) Result { return Result{Status: StatusPass, Note: note} }
func fail(note string) Result { return Result{Status: StatusFail, Note: note} }
func skip(note string) Result { return Result{Status: StatusSkip, Note: note} }

func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
