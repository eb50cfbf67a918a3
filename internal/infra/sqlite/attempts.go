package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"maquiz-service/internal/domain"
)

func (s *Store) Insert(ctx context.Context, attempt domain.Attempt) (string, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	details, err := json.Marshal(attempt.Details)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (attempt_id, user_id, user_label, score, total, details_json, created_at_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.UserID, attempt.UserLabel, attempt.Score, attempt.Total,
		string(details), createdAt.UnixNano())
	if err != nil {
		return "", err
	}
	return attempt.ID, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Attempt, error) {
	// The window keeps the most recent rows but hands them back oldest first.
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id, user_id, user_label, score, total, details_json, created_at_ns
		 FROM (
			SELECT * FROM attempts WHERE user_id = ?
			ORDER BY created_at_ns DESC LIMIT ?
		 ) ORDER BY created_at_ns ASC`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *Store) ListAll(ctx context.Context, limit int) ([]domain.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id, user_id, user_label, score, total, details_json, created_at_ns
		 FROM attempts ORDER BY created_at_ns DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *Store) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE user_id = ?`, userID)
	return err
}

func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attempts`)
	return err
}

func scanAttempts(rows *sql.Rows) ([]domain.Attempt, error) {
	attempts := make([]domain.Attempt, 0)
	for rows.Next() {
		var (
			a         domain.Attempt
			details   string
			createdNs int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.UserLabel, &a.Score, &a.Total, &details, &createdNs); err != nil {
			return nil, err
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details for %s: %w", a.ID, err)
			}
		}
		a.CreatedAt = time.Unix(0, createdNs).UTC()
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
