package sqlite

import (
	"context"
)

func (s *Store) initSchema(ctx context.Context) error {
	// No FK between attempts.details and questions: attempts must survive
	// question edits and deletions, the history is the source of truth.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS questions (
			question_id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			options_json TEXT NOT NULL,
			correct_index INTEGER NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			category TEXT NOT NULL DEFAULT '',
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			attempt_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			user_label TEXT NOT NULL,
			score INTEGER NOT NULL,
			total INTEGER NOT NULL,
			details_json TEXT NOT NULL,
			created_at_ns INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_questions_active ON questions(active);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_created ON attempts(user_id, created_at_ns);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at_ns DESC);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
