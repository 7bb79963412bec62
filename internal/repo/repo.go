package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"communitysite/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// validID keeps malformed ids away from uuid columns, where Postgres fails
// the cast instead of finding nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type Repo struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

func (r *Repo) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `INSERT INTO users (email, password_hash) VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING RETURNING id`, email, passwordHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrDuplicate
	}
	return id, err
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := r.Pool.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, hash, err
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	if !validID(userID) {
		return models.User{}, ErrNotFound
	}
	var u models.User
	err := r.Pool.QueryRow(ctx, `SELECT id, email, created_at, updated_at FROM users WHERE id=$1`, userID).
		Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) CreateSession(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO sessions (user_id, token, expires_at) VALUES ($1, $2, $3)`, userID, token, expiresAt)
	return err
}

// AddUserMilestones stores tokens for the user. Tokens already present are
// left alone, so repeated syncs of the full set are idempotent.
func (r *Repo) AddUserMilestones(ctx context.Context, userID string, tokens []string) (int, error) {
	if !validID(userID) {
		return 0, ErrNotFound
	}
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}

	added := 0
	for _, token := range tokens {
		cmd, err := tx.Exec(ctx, `INSERT INTO user_milestones (user_id, token) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, token)
		if err != nil {
			return 0, err
		}
		added += int(cmd.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return added, nil
}

func (r *Repo) ListUserMilestones(ctx context.Context, userID string) ([]string, error) {
	if !validID(userID) {
		return []string{}, nil
	}
	rows, err := r.Pool.Query(ctx, `SELECT token FROM user_milestones WHERE user_id=$1 ORDER BY created_at, token`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (r *Repo) CreateContactSubmission(ctx context.Context, s models.ContactSubmission) (string, error) {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return "", err
	}
	var id string
	err = r.Pool.QueryRow(ctx, `INSERT INTO contact_submissions (schema_name, locale, visitor_id, fields)
		VALUES ($1, $2, $3, $4::jsonb) RETURNING id`, s.Schema, s.Locale, s.VisitorID, string(fields)).Scan(&id)
	return id, err
}

func (r *Repo) GetContactSubmission(ctx context.Context, id string) (models.ContactSubmission, error) {
	if !validID(id) {
		return models.ContactSubmission{}, ErrNotFound
	}
	var s models.ContactSubmission
	var fields []byte
	err := r.Pool.QueryRow(ctx, `SELECT id, schema_name, locale, visitor_id, fields, created_at FROM contact_submissions WHERE id=$1`, id).
		Scan(&s.ID, &s.Schema, &s.Locale, &s.VisitorID, &fields, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ContactSubmission{}, ErrNotFound
	}
	if err != nil {
		return models.ContactSubmission{}, err
	}
	if err := json.Unmarshal(fields, &s.Fields); err != nil {
		return models.ContactSubmission{}, err
	}
	return s, nil
}
