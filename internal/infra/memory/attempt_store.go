package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"maquiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. Rows are
// append-only; inserts keep arrival order, which doubles as createdAt order.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts []domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{}
}

func (s *AttemptStore) Insert(_ context.Context, attempt domain.Attempt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	details := make([]domain.AttemptDetail, len(attempt.Details))
	copy(details, attempt.Details)
	attempt.Details = details
	s.attempts = append(s.attempts, attempt)
	return attempt.ID, nil
}

func (s *AttemptStore) ListByUser(_ context.Context, userID string, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	// Oldest first; the window keeps the most recent rows.
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *AttemptStore) ListAll(_ context.Context, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0, len(s.attempts))
	for i := len(s.attempts) - 1; i >= 0; i-- {
		out = append(out, s.attempts[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *AttemptStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.attempts[:0]
	for _, a := range s.attempts {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	s.attempts = kept
	return nil
}

func (s *AttemptStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = nil
	return nil
}

// Len is test-only.
func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}
