package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"maquiz-service/internal/domain"
)

// QuestionSource reads multiple-choice questions from Postgres. SampleRandom
// is the primary path for round assembly: the database shuffles and limits,
// so the result comes back pre-randomized and pre-filtered.
type QuestionSource struct {
	pool *pgxpool.Pool
}

func NewQuestionSource(pool *pgxpool.Pool) *QuestionSource {
	return &QuestionSource{pool: pool}
}

const questionColumns = `id, text, options, correct_idx, active, COALESCE(category, '')`

func (s *QuestionSource) ListActive(ctx context.Context, category string) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE active AND qtype = 'mc'`
	args := []interface{}{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active questions: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *QuestionSource) SampleRandom(ctx context.Context, count int, category string) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE active AND qtype = 'mc'`
	args := []interface{}{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += fmt.Sprintf(` ORDER BY random() LIMIT $%d`, len(args)+1)
	args = append(args, count)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sample random questions: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *QuestionSource) TextsByID(ctx context.Context, ids []string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, text FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("question texts: %w", err)
	}
	defer rows.Close()

	texts := make(map[string]string, len(ids))
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scan question text: %w", err)
		}
		texts[id] = text
	}
	return texts, rows.Err()
}

// ImportQuestions upserts a batch of questions (the seed command).
func (s *QuestionSource) ImportQuestions(ctx context.Context, questions []domain.Question) error {
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options for %s: %w", q.ID, err)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO questions (id, text, options, correct_idx, active, category, qtype)
			 VALUES ($1, $2, $3::jsonb, $4, $5, NULLIF($6, ''), 'mc')
			 ON CONFLICT (id) DO UPDATE
			 SET text = EXCLUDED.text, options = EXCLUDED.options,
			     correct_idx = EXCLUDED.correct_idx, active = EXCLUDED.active,
			     category = EXCLUDED.category`,
			q.ID, q.Text, options, q.CorrectIndex, q.Active, q.Category)
		if err != nil {
			return fmt.Errorf("upsert question %s: %w", q.ID, err)
		}
	}
	return nil
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	questions := make([]domain.Question, 0)
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &raw, &q.CorrectIndex, &q.Active, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
