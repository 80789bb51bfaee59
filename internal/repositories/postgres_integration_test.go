package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamhall/backend/internal/ids"
	"github.com/streamhall/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresAccountRepository_CreateIsIdempotentOnID(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresAccountRepository(testPool)

	account := models.Account{
		ID:        "user_2abc",
		Email:     "a@x.com",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}

	if err := repo.Create(ctx, account); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate id, got %v", err)
	}

	var count int
	if err := testPool.QueryRow(ctx, `SELECT count(*) FROM users WHERE id = $1`, account.ID).Scan(&count); err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one account row, got %d", count)
	}

	fetched, err := repo.FindByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if fetched.Role != models.RoleViewer {
		t.Fatalf("expected default role viewer, got %q", fetched.Role)
	}
	if fetched.Email != account.Email {
		t.Fatalf("unexpected email %q", fetched.Email)
	}

	if _, err := repo.FindByID(ctx, "user_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}
}

func TestPostgresAccountRepository_UpdateRole(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresAccountRepository(testPool)
	account := createTestAccount(t, repo, "user_promote")

	if err := repo.UpdateRole(ctx, account.ID, models.RoleAdmin); err != nil {
		t.Fatalf("update role: %v", err)
	}

	fetched, err := repo.FindByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if fetched.Role != models.RoleAdmin {
		t.Fatalf("expected admin role, got %q", fetched.Role)
	}

	if err := repo.UpdateRole(ctx, "user_missing", models.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}
	if err := repo.UpdateRole(ctx, account.ID, models.Role("owner")); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestPostgresVideoRepository_CreateListFind(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	owner := createTestAccount(t, accounts, "user_owner")

	repo := NewPostgresVideoRepository(testPool)
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	older := models.Video{
		ID:              ids.New(),
		Title:           "Older",
		CreatedAt:       base,
		OwnerID:         owner.ID,
		ExternalMediaID: "media-older",
	}
	newer := models.Video{
		ID:              ids.New(),
		Title:           "Newer",
		Description:     "second upload",
		CreatedAt:       base.Add(10 * time.Minute),
		OwnerID:         owner.ID,
		ExternalMediaID: "media-newer",
	}

	for _, video := range []models.Video{older, newer} {
		if err := repo.Create(ctx, video); err != nil {
			t.Fatalf("create video %s: %v", video.ID, err)
		}
	}

	listed, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(listed))
	}
	if listed[0].ID != newer.ID || listed[1].ID != older.ID {
		t.Fatalf("expected newest first, got %+v", listed)
	}

	fetched, err := repo.FindByID(ctx, newer.ID)
	if err != nil {
		t.Fatalf("find video: %v", err)
	}
	if fetched.ExternalMediaID != "media-newer" || fetched.Description != "second upload" {
		t.Fatalf("unexpected video fetched: %+v", fetched)
	}

	if _, err := repo.FindByID(ctx, ids.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown video, got %v", err)
	}

	duplicateMedia := models.Video{
		ID:              ids.New(),
		Title:           "Dup",
		CreatedAt:       time.Now().UTC(),
		OwnerID:         owner.ID,
		ExternalMediaID: "media-newer",
	}
	if err := repo.Create(ctx, duplicateMedia); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate media id, got %v", err)
	}

	orphan := models.Video{
		ID:              ids.New(),
		Title:           "Orphan",
		CreatedAt:       time.Now().UTC(),
		OwnerID:         "user_missing",
		ExternalMediaID: "media-orphan",
	}
	if err := repo.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}

	if err := repo.Create(ctx, models.Video{ID: ids.New(), OwnerID: owner.ID}); err == nil {
		t.Fatal("expected error when external media id is missing")
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestAccount(t *testing.T, repo *PostgresAccountRepository, id string) models.Account {
	t.Helper()
	account := models.Account{
		ID:        id,
		Email:     id + "@example.com",
		Role:      models.RoleViewer,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("create test account: %v", err)
	}
	return account
}
