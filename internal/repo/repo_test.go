package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"communitysite/internal/models"
)

func setupTestRepo(t *testing.T) (*Repo, func()) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	if err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	if err := createTestTables(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("create tables: %v", err)
	}
	repo := New(pool)
	return repo, func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	}
}

func createTestTables(ctx context.Context, pool *pgxpool.Pool) error {
	queries := []string{
		`CREATE TABLE users (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), email text UNIQUE, password_hash text, created_at timestamptz DEFAULT now(), updated_at timestamptz DEFAULT now())`,
		`CREATE TABLE sessions (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, token text, expires_at timestamptz, created_at timestamptz DEFAULT now())`,
		`CREATE TABLE user_milestones (user_id uuid, token text, created_at timestamptz DEFAULT now(), PRIMARY KEY (user_id, token))`,
		`CREATE TABLE contact_submissions (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), schema_name text, locale text, visitor_id text DEFAULT '', fields jsonb, created_at timestamptz DEFAULT now())`,
	}
	for _, query := range queries {
		if _, err := pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, "a@b.com", "x"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := repo.CreateUser(ctx, "a@b.com", "y"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestAddUserMilestonesIdempotent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "sync@b.com", "x")
	if err != nil {
		t.Fatalf("user: %v", err)
	}

	added, err := repo.AddUserMilestones(ctx, userID, []string{"aa", "bb"})
	if err != nil || added != 2 {
		t.Fatalf("first sync: added=%d err=%v", added, err)
	}
	added, err = repo.AddUserMilestones(ctx, userID, []string{"aa", "bb", "cc"})
	if err != nil || added != 1 {
		t.Fatalf("second sync should only add cc: added=%d err=%v", added, err)
	}
	tokens, err := repo.ListUserMilestones(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %v", tokens)
	}
}

func TestAddUserMilestonesUnknownUser(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	_, err := repo.AddUserMilestones(context.Background(), "00000000-0000-0000-0000-000000000000", []string{"aa"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestContactSubmissionRoundTrip(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	id, err := repo.CreateContactSubmission(ctx, models.ContactSubmission{
		Schema:    "general",
		Locale:    "en",
		VisitorID: "v1",
		Fields:    map[string]string{"name": "Ada", "message": "Hello there"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.GetContactSubmission(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Schema != "general" || got.Fields["name"] != "Ada" {
		t.Fatalf("unexpected submission: %+v", got)
	}
}

func TestGetUserByID(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "Lookup@b.com", "x")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	u, err := repo.GetUserByID(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.ID != userID || u.Email != "Lookup@b.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := repo.GetUserByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	// No pool: malformed ids must be answered before any query runs.
	repo := &Repo{}
	ctx := context.Background()

	if _, err := repo.GetUserByID(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUserByID: expected not found, got %v", err)
	}
	if _, err := repo.AddUserMilestones(ctx, "u1", []string{"aa"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddUserMilestones: expected not found, got %v", err)
	}
	if tokens, err := repo.ListUserMilestones(ctx, "u1"); err != nil || len(tokens) != 0 {
		t.Fatalf("ListUserMilestones: tokens=%v err=%v", tokens, err)
	}
	if _, err := repo.GetContactSubmission(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetContactSubmission: expected not found, got %v", err)
	}
}
