package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"maquiz-service/internal/domain"
)

// AttemptStore persists attempts in Postgres with details as jsonb. Rows are
// append-only; the delete ops back the explicit reset actions.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Insert(ctx context.Context, attempt domain.Attempt) (string, error) {
	details, err := json.Marshal(attempt.Details)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	var userID interface{}
	if attempt.UserID != "" {
		userID = attempt.UserID
	}
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, user_id, email, score, total, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		 RETURNING id`,
		attempt.ID, userID, attempt.UserLabel, attempt.Score, attempt.Total, details, createdAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert attempt: %w", err)
	}
	return id, nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Attempt, error) {
	// Most recent window, returned oldest first.
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, email, score, total, details, created_at FROM (
		     SELECT id, COALESCE(user_id::text, '') AS user_id, email, score, total, details, created_at
		     FROM attempts WHERE user_id = $1
		     ORDER BY created_at DESC LIMIT $2
		 ) recent ORDER BY created_at ASC`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts by user: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *AttemptStore) ListAll(ctx context.Context, limit int) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(user_id::text, ''), email, score, total, details, created_at
		 FROM attempts
		 ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *AttemptStore) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM attempts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete attempts by user: %w", err)
	}
	return nil
}

func (s *AttemptStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM attempts`); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	return nil
}

func scanAttempts(rows pgx.Rows) ([]domain.Attempt, error) {
	attempts := make([]domain.Attempt, 0)
	for rows.Next() {
		var (
			a   domain.Attempt
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.UserLabel, &a.Score, &a.Total, &raw, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details for %s: %w", a.ID, err)
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
