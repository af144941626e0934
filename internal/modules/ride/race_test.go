// README: Concurrency tests for ride transitions against PostgreSQL (run with -race).
package ride

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"tripnow/internal/modules/driver"
	"tripnow/internal/types"
)

func TestPostgresConcurrentAcceptSameRide(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewPostgresStore(db)
	drivers := driver.NewPostgresStore(db)

	const attempts = 8
	for i := 0; i < attempts; i++ {
		if _, err := db.Exec(ctx, `INSERT INTO drivers (id, name, status) VALUES ($1, 'Driver', 'active')`, fmt.Sprintf("d%d", i)); err != nil {
			t.Fatalf("seed driver: %v", err)
		}
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := NewService(store, drivers, stubPricer{fare: types.Money{Amount: 15000, Currency: "INR"}}, log)

	r, err := svc.Create(ctx, CreateCommand{RiderID: "u_race", Pickup: "A", Dropoff: "B"})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(did types.ID) {
			defer wg.Done()
			_, err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, DriverID: did})
			errs <- err
		}(types.ID(fmt.Sprintf("d%d", i)))
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}

	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if got.Status != StatusAccepted || got.DriverID == nil {
		t.Fatalf("unexpected final ride %+v", got)
	}
	if got.Passcode != "" {
		t.Fatalf("Get leaked passcode")
	}

	dist := 3.2
	if _, err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, DriverID: *got.DriverID, DistanceKm: &dist}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	d, err := drivers.Get(ctx, *got.DriverID)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	if d.TotalRides != 1 || d.TotalEarnings.Amount != 15000 {
		t.Fatalf("unexpected counters %+v", d.Stats())
	}
}

func TestPostgresConcurrentCompleteCreditsOnce(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewPostgresStore(db)
	drivers := driver.NewPostgresStore(db)
	if _, err := db.Exec(ctx, `INSERT INTO drivers (id, name, status) VALUES ('d_once', 'Driver', 'active')`); err != nil {
		t.Fatalf("seed driver: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := NewService(store, drivers, stubPricer{fare: types.Money{Amount: 9000, Currency: "INR"}}, log)

	r, err := svc.Create(ctx, CreateCommand{RiderID: "u_once", Pickup: "A", Dropoff: "B"})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	if _, err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, DriverID: "d_once"}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	const attempts = 4
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Complete(ctx, CompleteCommand{RideID: r.ID, DriverID: "d_once"})
		}()
	}
	wg.Wait()

	d, err := drivers.Get(ctx, "d_once")
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	if d.TotalRides != 1 || d.TotalEarnings.Amount != 9000 {
		t.Fatalf("expected a single credit, got %+v", d.Stats())
	}
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TRIPNOW_TEST_DSN")
	if dsn == "" {
		t.Skip("TRIPNOW_TEST_DSN not set; skipping DB-backed race tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE ride_state_events, rides, drivers"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
