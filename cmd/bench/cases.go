// README: Bench cases covering connectivity, the ride lifecycle, accept races and location throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tripnow/internal/infra"
)

const (
	statusPass    = "PASS"
	statusFail    = "FAIL"
	statusPending = "PENDING"
	statusSkip    = "SKIP"

	benchRider = "bench_rider"
)

type Runner struct {
	cfg    Config
	httpc  *http.Client
	tokens *infra.JWTVerifier
	db     *pgxpool.Pool
	redis  *redis.Client

	// Scenario state shared by the lifecycle cases, in order.
	rideID  string
	otp     string
	winner  string
	drivers []string
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

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret required: set TRIPNOW_JWT_SECRET or -jwt-secret")
	}
	drivers := make([]string, cfg.Concurrency)
	for i := range drivers {
		drivers[i] = fmt.Sprintf("bench_driver_%02d", i)
	}
	return &Runner{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		tokens:  infra.NewJWTVerifier(cfg.JWTSecret),
		drivers: drivers,
	}, nil
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
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
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
		{Name: "Env: Postgres connect", Run: pingDB},
		{Name: "Env: Redis connect", Run: pingRedis},
		{Name: "Env: API health", Run: func(ctx context.Context, r *Runner) Result {
			res, _ := r.call(ctx, http.MethodGet, "/health", "", "", nil)
			return expect(res, http.StatusOK)
		}},
		{Name: "Seed: rider and drivers", Run: seedAccounts},
		{Name: "Auth: missing token -> 401", Run: func(ctx context.Context, r *Runner) Result {
			res, _ := r.call(ctx, http.MethodGet, "/api/riders/me/rides", "", "", nil)
			return expect(res, http.StatusUnauthorized)
		}},
		{Name: "Auth: driver on rider route -> 403", Run: func(ctx context.Context, r *Runner) Result {
			res, _ := r.call(ctx, http.MethodGet, "/api/riders/me/rides", r.drivers[0], "captain", nil)
			return expect(res, http.StatusForbidden)
		}},
		{Name: "Fare: quote all classes", Run: func(ctx context.Context, r *Runner) Result {
			q := url.Values{"pickup": {r.cfg.Pickup}, "destination": {r.cfg.Destination}}
			res, _ := r.call(ctx, http.MethodGet, "/api/rides/fares?"+q.Encode(), benchRider, "user", nil)
			if res.Status == statusFail && (res.code == http.StatusBadGateway || res.code == http.StatusServiceUnavailable) {
				res.Status = statusPending
				res.Note += " (maps provider unavailable)"
			}
			return res.Result
		}},
		{Name: "Ride: create", Run: createRide},
		{Name: "Concurrency: drivers race to accept", Run: raceAccept},
		{Name: "Ride: start with wrong otp -> 400", Run: func(ctx context.Context, r *Runner) Result {
			if r.winner == "" {
				return Result{Status: statusSkip, Note: "no accepted ride"}
			}
			wrong := "0000"
			if r.otp == wrong {
				wrong = "1111"
			}
			res, _ := r.call(ctx, http.MethodPost, "/api/drivers/rides/"+r.rideID+"/start", r.winner, "captain", map[string]any{"otp": wrong})
			return expect(res, http.StatusBadRequest)
		}},
		{Name: "Ride: start with otp", Run: func(ctx context.Context, r *Runner) Result {
			if r.winner == "" {
				return Result{Status: statusSkip, Note: "no accepted ride"}
			}
			res, _ := r.call(ctx, http.MethodPost, "/api/drivers/rides/"+r.rideID+"/start", r.winner, "captain", map[string]any{"otp": r.otp})
			return expect(res, http.StatusOK)
		}},
		{Name: "Ride: complete", Run: func(ctx context.Context, r *Runner) Result {
			if r.winner == "" {
				return Result{Status: statusSkip, Note: "no accepted ride"}
			}
			res, _ := r.call(ctx, http.MethodPost, "/api/drivers/rides/"+r.rideID+"/complete", r.winner, "captain", map[string]any{"distance": 4.2, "duration": 14})
			return expect(res, http.StatusOK)
		}},
		{Name: "Ride: cancel after completion -> 409", Run: func(ctx context.Context, r *Runner) Result {
			if r.rideID == "" {
				return Result{Status: statusSkip, Note: "no ride"}
			}
			res, _ := r.call(ctx, http.MethodPost, "/api/rides/"+r.rideID+"/cancel", benchRider, "user", nil)
			return expect(res, http.StatusConflict)
		}},
		{Name: "Perf: driver location update throughput", Run: perfLocation},
	}
}

func pingDB(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func pingRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func seedAccounts(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured; API must already know the bench accounts"}
	}
	if _, err := r.db.Exec(ctx, `
		INSERT INTO riders (id, name, email) VALUES ($1, 'Bench Rider', 'bench@example.com')
		ON CONFLICT (id) DO NOTHING`, benchRider); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, id := range r.drivers {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO drivers (id, name, status, vehicle_type, vehicle_plate, vehicle_capacity, location_lat, location_lng, location_at)
			VALUES ($1, 'Bench Driver', 'active', 'car', 'DL01AB1234', 4, 28.6315, 77.2167, now())
			ON CONFLICT (id) DO UPDATE SET status = 'active'`, id); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("drivers=%d", len(r.drivers))}
}

func createRide(ctx context.Context, r *Runner) Result {
	res, body := r.call(ctx, http.MethodPost, "/api/rides", benchRider, "user", map[string]any{
		"pickup":      r.cfg.Pickup,
		"destination": r.cfg.Destination,
		"vehicleType": "car",
	})
	if res.code != http.StatusCreated {
		return expect(res, http.StatusCreated)
	}
	var created struct {
		ID  string `json:"id"`
		OTP string `json:"otp"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" || created.OTP == "" {
		return Result{Status: statusFail, Latency: res.Latency, Note: "response missing id or otp"}
	}
	r.rideID, r.otp = created.ID, created.OTP
	return Result{Status: statusPass, Latency: res.Latency, Note: "ride=" + created.ID}
}

// raceAccept fires one accept per bench driver at the same ride. Exactly one
// must win; every other attempt must be rejected with 409.
func raceAccept(ctx context.Context, r *Runner) Result {
	if r.rideID == "" {
		return Result{Status: statusSkip, Note: "no ride"}
	}
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		winners   []string
		conflicts int
		other     []int
	)
	start := time.Now()
	for _, id := range r.drivers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, _ := r.call(ctx, http.MethodPost, "/api/drivers/rides/"+r.rideID+"/accept", id, "captain", nil)
			mu.Lock()
			defer mu.Unlock()
			switch res.code {
			case http.StatusOK:
				winners = append(winners, id)
			case http.StatusConflict:
				conflicts++
			default:
				other = append(other, res.code)
			}
		}(id)
	}
	wg.Wait()
	latency := time.Since(start)

	note := fmt.Sprintf("success=%d conflict=%d other=%v", len(winners), conflicts, other)
	if len(winners) != 1 || len(other) > 0 {
		return Result{Status: statusFail, Latency: latency, Note: note}
	}
	r.winner = winners[0]
	return Result{Status: statusPass, Latency: latency, Note: note}
}

func perfLocation(ctx context.Context, r *Runner) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		count    int64
		errCount int64
	)
	for i, id := range r.drivers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				res, _ := r.call(ctx, http.MethodPut, "/api/drivers/me/location", id, "captain", map[string]any{
					"lat": 28.6315 + float64(i)*0.0005,
					"lng": 77.2167,
				})
				mu.Lock()
				if res.code == http.StatusOK {
					count++
				} else {
					errCount++
				}
				mu.Unlock()
			}
		}(i, id)
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("no successful updates, errors=%d", errCount)}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

type callResult struct {
	Result
	code int
}

// call sends one JSON request as uid with the given role claim. An empty uid
// sends no Authorization header.
func (r *Runner) call(ctx context.Context, method, path, uid, role string, body any) (callResult, []byte) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return callResult{Result: Result{Status: statusFail, Note: err.Error()}}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		token, err := r.tokens.Issue(uid, role, time.Hour)
		if err != nil {
			return callResult{Result: Result{Status: statusFail, Note: err.Error()}}, nil
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return callResult{Result: Result{Status: statusFail, Note: err.Error()}}, nil
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	latency := time.Since(start)

	status := statusFail
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		status = statusPass
	}
	return callResult{
		Result: Result{Status: status, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)},
		code:   resp.StatusCode,
	}, data
}

func expect(res callResult, code int) Result {
	out := res.Result
	if res.code == code {
		out.Status = statusPass
	} else if res.code != 0 {
		out.Status = statusFail
	}
	return out
}
