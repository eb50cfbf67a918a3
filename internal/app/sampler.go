package app

import (
	"context"
	"errors"

	"maquiz-service/internal/domain"
)

// AllCategories disables the category filter.
const AllCategories = ""

// NewRound assembles a shuffled, duplicate-free selection of active questions.
//
// Primary path: the source's server-side random sample, used as returned (it
// is already randomized and pre-filtered), truncated to count. Fallback path:
// fetch the whole active pool, drop malformed rows, Fisher-Yates shuffle,
// take the first count. "Primary unsupported or empty" is an expected
// outcome, not an error; only both paths failing is.
func (s *Service) NewRound(ctx context.Context, count int, category string) (*Round, error) {
	if count <= 0 {
		count = s.limits.RoundSize
	}

	picked, primaryErr := s.samplePrimary(ctx, count, category)
	if len(picked) > 0 {
		return s.newRound(picked), nil
	}

	pool, err := s.source.ListActive(ctx, category)
	if err != nil {
		if primaryErr == nil {
			primaryErr = errors.New("random sample returned no rows")
		}
		return nil, &domain.SourceUnavailableError{Primary: primaryErr, Fallback: err}
	}

	usable := dedupeByID(filterWellFormed(pool))
	if len(usable) == 0 {
		return nil, domain.ErrEmptyPool
	}

	s.shuffle(usable)
	if len(usable) > count {
		usable = usable[:count]
	}
	return s.newRound(usable), nil
}

func (s *Service) samplePrimary(ctx context.Context, count int, category string) ([]domain.Question, error) {
	sampled, err := s.source.SampleRandom(ctx, count, category)
	if err != nil {
		return nil, err
	}
	// Pre-filtered by the source; de-dup keeps the selection invariant even
	// against a sloppy primitive, preserving returned order.
	sampled = dedupeByID(sampled)
	if len(sampled) > count {
		sampled = sampled[:count]
	}
	return sampled, nil
}

func filterWellFormed(pool []domain.Question) []domain.Question {
	usable := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if q.WellFormed() {
			usable = append(usable, q)
		}
	}
	return usable
}

func dedupeByID(questions []domain.Question) []domain.Question {
	seen := make(map[string]struct{}, len(questions))
	out := questions[:0]
	for _, q := range questions {
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}
