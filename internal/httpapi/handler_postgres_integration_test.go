package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"nzyme_console/console-go/internal/db"
	"nzyme_console/console-go/internal/session"
)

func requireTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	return dsn
}

func mustDeriveDatabaseURL(t *testing.T, baseURL, dbName string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		t.Skipf("TEST_DATABASE_URL must be a URL-style DSN (e.g. postgres://...); got %q", baseURL)
	}

	u.Path = "/" + dbName
	return u.String()
}

func newTestDatabaseName() string {
	// Safe identifier (letters/digits/underscores) so we can use it without quoting.
	return fmt.Sprintf("console_test_%d", time.Now().UnixNano())
}

func createDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	_, err = adminConn.Exec(ctx, "CREATE DATABASE "+dbName)
	return err
}

func dropDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	if _, err := adminConn.Exec(ctx, "DROP DATABASE "+dbName+" WITH (FORCE)"); err == nil {
		return nil
	}
	_, err = adminConn.Exec(ctx, "DROP DATABASE "+dbName)
	return err
}

func migrationsDir(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
	return filepath.Join(repoRoot, "migrations")
}

func applyMigrations(ctx context.Context, conn *pgx.Conn, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var ups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			ups = append(ups, name)
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

// openTestPool creates a throwaway database with the console migrations applied.
func openTestPool(t *testing.T) *db.Pool {
	t.Helper()
	adminURL := requireTestDatabaseURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := newTestDatabaseName()
	testDBURL := mustDeriveDatabaseURL(t, adminURL, dbName)

	if err := createDatabase(ctx, adminURL, dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		_ = dropDatabase(context.Background(), adminURL, dbName)
	})

	mConn, err := pgx.Connect(ctx, testDBURL)
	if err != nil {
		t.Fatalf("connect for migrations: %v", err)
	}
	if err := applyMigrations(ctx, mConn, migrationsDir(t)); err != nil {
		_ = mConn.Close(ctx)
		t.Fatalf("apply migrations: %v", err)
	}
	if err := mConn.Close(ctx); err != nil {
		t.Fatalf("close migration connection: %v", err)
	}

	pool, err := db.Open(ctx, testDBURL)
	if err != nil {
		t.Fatalf("open db pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestHandler_Postgres_SessionLifecycle(t *testing.T) {
	pool := openTestPool(t)
	store := session.NewPostgresStore(pool.Queries())

	h := NewHandler(NewLogger("error"), Options{Pool: pool, Sessions: store, Upstream: loginAPI(true)})
	router := h.Router()

	rrReady := httptest.NewRecorder()
	router.ServeHTTP(rrReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rrReady.Code != http.StatusOK {
		t.Fatalf("readyz expected 200, got %d: %s", rrReady.Code, rrReady.Body.String())
	}
	if !strings.Contains(rrReady.Body.String(), `"session_store":"postgres"`) {
		t.Fatalf("expected postgres session store, got %s", rrReady.Body.String())
	}

	c := login(t, router)

	rec, err := store.Get(context.Background(), c.Value)
	if err != nil {
		t.Fatalf("expected persisted session: %v", err)
	}
	if rec.Token != "tok-1" || rec.Username != "admin" || rec.MFAPending {
		t.Fatalf("unexpected persisted session %+v", rec)
	}

	// A second handler on the same database sees the session.
	other := NewHandler(NewLogger("error"), Options{Pool: pool, Sessions: store, Upstream: loginAPI(true)}).Router()
	if rr := do(t, other, http.MethodGet, "/api/v1/taps", nil, c); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from second handler, got %d", rr.Code)
	}

	if rr := do(t, router, http.MethodDelete, "/api/v1/session", nil, c); rr.Code != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", rr.Code)
	}
	if _, err := store.Get(context.Background(), c.Value); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after logout, got %v", err)
	}
}

func TestHandler_Postgres_DeleteIdle(t *testing.T) {
	pool := openTestPool(t)
	store := session.NewPostgresStore(pool.Queries())
	ctx := context.Background()

	const (
		idle  = "00000000-0000-0000-0000-00000000001d"
		fresh = "00000000-0000-0000-0000-00000000000f"
	)
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for id, seen := range map[string]time.Time{
		idle:  old,
		fresh: old.Add(2 * time.Hour),
	} {
		if err := store.Put(ctx, session.Record{ID: id, Token: "t-" + id, Username: "u", CreatedAt: old, LastSeenAt: seen}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	ids, err := store.DeleteIdle(ctx, old.Add(time.Hour))
	if err != nil {
		t.Fatalf("delete idle: %v", err)
	}
	if len(ids) != 1 || ids[0] != idle {
		t.Fatalf("expected [%s], got %v", idle, ids)
	}
	if _, err := store.Get(ctx, fresh); err != nil {
		t.Fatalf("expected fresh session to survive: %v", err)
	}
}

func TestHandler_Postgres_SetMFAPendingKeepsLastSeen(t *testing.T) {
	pool := openTestPool(t)
	store := session.NewPostgresStore(pool.Queries())
	ctx := context.Background()

	const id = "00000000-0000-0000-0000-0000000000a1"
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, session.Record{ID: id, Token: "t", Username: "u", MFAPending: true, CreatedAt: t0, LastSeenAt: t0}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Touch(ctx, id, t0.Add(7*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := store.SetMFAPending(ctx, id, false); err != nil {
		t.Fatalf("set mfa pending: %v", err)
	}

	rec, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.MFAPending || !rec.LastSeenAt.Equal(t0.Add(7*time.Hour)) {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.SetMFAPending(ctx, id, true); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a deleted session, got %v", err)
	}
	if _, err := store.Get(ctx, "abc"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a malformed id, got %v", err)
	}
}
