package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"maquiz-service/internal/domain"
)

// Round is one play-through: a fixed question selection plus the user's
// choices. It is held by the caller (session), never persisted; only the
// attempt derived from it is. The recorded flag lives here so evaluating a
// round twice can never write two rows.
type Round struct {
	ID        string
	Questions []domain.Question
	CreatedAt time.Time

	mu       sync.Mutex
	answers  map[string]int
	recorded bool
	attempt  domain.Attempt
}

func (s *Service) newRound(questions []domain.Question) *Round {
	return &Round{
		ID:        uuid.NewString(),
		Questions: questions,
		CreatedAt: s.now().UTC(),
		answers:   make(map[string]int, len(questions)),
	}
}

// Answer stores the chosen option index for a question in this round.
// Choices may be revised until the round is recorded.
func (r *Round) Answer(questionID string, optionIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recorded {
		return fmt.Errorf("round %s already evaluated", r.ID)
	}
	for _, q := range r.Questions {
		if q.ID != questionID {
			continue
		}
		if optionIndex < 0 || optionIndex >= len(q.Options) {
			return fmt.Errorf("option index %d out of range for question %s", optionIndex, questionID)
		}
		r.answers[questionID] = optionIndex
		return nil
	}
	return fmt.Errorf("question %s is not part of round %s", questionID, r.ID)
}

// Complete reports whether every question in the round has a choice.
func (r *Round) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completeLocked()
}

func (r *Round) completeLocked() bool {
	for _, q := range r.Questions {
		if _, ok := r.answers[q.ID]; !ok {
			return false
		}
	}
	return true
}

// Score evaluates the round as answered so far: unanswered questions are
// never correct. Details come back in round order.
func (r *Round) Score() (int, []domain.AttemptDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scoreLocked()
}

func (r *Round) scoreLocked() (int, []domain.AttemptDetail) {
	details := make([]domain.AttemptDetail, 0, len(r.Questions))
	score := 0
	for _, q := range r.Questions {
		chosen, ok := r.answers[q.ID]
		if !ok {
			chosen = domain.Unanswered
		}
		correct := chosen == q.CorrectIndex
		if correct {
			score++
		}
		details = append(details, domain.AttemptDetail{
			QuestionID:   q.ID,
			ChosenIndex:  chosen,
			CorrectIndex: q.CorrectIndex,
			IsCorrect:    correct,
			Category:     q.CategoryOrDefault(),
		})
	}
	return score, details
}

// Record scores a completed round and writes one immutable attempt.
//
// An incomplete round is rejected before scoring. A round that was already
// recorded returns the stored attempt again without touching the store. When
// the insert fails the computed attempt is still returned alongside a
// *domain.PersistenceError: durability is best-effort, the user still gets
// their result, and a later evaluate may retry the write.
func (s *Service) Record(ctx context.Context, round *Round, userID, userLabel string) (domain.Attempt, error) {
	round.mu.Lock()
	defer round.mu.Unlock()

	if round.recorded {
		return round.attempt, nil
	}
	if !round.completeLocked() {
		return domain.Attempt{}, domain.ErrRoundIncomplete
	}

	score, details := round.scoreLocked()
	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserLabel: userLabel,
		Score:     score,
		Total:     len(details),
		CreatedAt: s.now().UTC(),
		Details:   details,
	}

	id, err := s.attempts.Insert(ctx, attempt)
	if err != nil {
		return attempt, &domain.PersistenceError{Op: "insert", Err: err}
	}
	if id != "" {
		attempt.ID = id
	}
	round.recorded = true
	round.attempt = attempt

	s.publishLeaderboard(ctx)
	return attempt, nil
}
