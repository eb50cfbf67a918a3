package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"maquiz-service/internal/domain"
)

const questionColumns = `question_id, text, options_json, correct_index, active, category`

func (s *Store) ListActive(ctx context.Context, category string) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE active = 1`
	args := []interface{}{}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuestions(rows)
}

// SampleRandom lets sqlite shuffle and limit, the same primitive the
// Postgres source exposes.
func (s *Store) SampleRandom(ctx context.Context, count int, category string) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE active = 1`
	args := []interface{}{}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY RANDOM() LIMIT ?`
	args = append(args, count)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *Store) TextsByID(ctx context.Context, ids []string) (map[string]string, error) {
	texts := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return texts, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, text FROM questions WHERE question_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		texts[id] = text
	}
	return texts, rows.Err()
}

// ImportQuestions upserts a batch in one transaction (the seed command).
func (s *Store) ImportQuestions(ctx context.Context, questions []domain.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options for %s: %w", q.ID, err)
		}
		active := 0
		if q.Active {
			active = 1
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (question_id, text, options_json, correct_index, active, category, created_at_unix)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(question_id) DO UPDATE
			 SET text = excluded.text, options_json = excluded.options_json,
			     correct_index = excluded.correct_index, active = excluded.active,
			     category = excluded.category`,
			q.ID, q.Text, string(options), q.CorrectIndex, active, q.Category,
			time.Now().UTC().Unix())
		if err != nil {
			return fmt.Errorf("upsert question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

func scanQuestions(rows *sql.Rows) ([]domain.Question, error) {
	questions := make([]domain.Question, 0)
	for rows.Next() {
		var (
			q       domain.Question
			raw     string
			active  int
		)
		if err := rows.Scan(&q.ID, &q.Text, &raw, &q.CorrectIndex, &active, &q.Category); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
		}
		q.Active = active != 0
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
