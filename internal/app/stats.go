package app

import (
	"context"
	"fmt"
	"math"
	"sort"

	"maquiz-service/internal/domain"
)

// unknownLabel groups historical rows missing a user label.
const unknownLabel = "unknown"

// Percent is round-half-up of 100*num/den, with 0 for an empty denominator.
func Percent(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(math.Round(100 * float64(num) / float64(den)))
}

// averagePercent is the mean of per-attempt score ratios, rounded once at the
// end. This is not the same as averaging the per-attempt percents.
func averagePercent(attempts []domain.Attempt) int {
	if len(attempts) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range attempts {
		if a.Total > 0 {
			sum += float64(a.Score) / float64(a.Total)
		}
	}
	return int(math.Round(sum / float64(len(attempts)) * 100))
}

func bestPercent(attempts []domain.Attempt) int {
	best := 0
	for _, a := range attempts {
		if p := Percent(a.Score, a.Total); p > best {
			best = p
		}
	}
	return best
}

// UserSummary derives the per-user rollup from that user's attempt history.
func (s *Service) UserSummary(ctx context.Context, userID, userLabel string) (domain.UserSummary, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID, s.limits.UserHistoryLimit)
	if err != nil {
		return domain.UserSummary{}, &domain.PersistenceError{Op: "list by user", Err: err}
	}
	avg := averagePercent(attempts)
	return domain.UserSummary{
		UserLabel:      userLabel,
		AttemptCount:   len(attempts),
		AveragePercent: avg,
		BestPercent:    bestPercent(attempts),
		Level:          domain.LevelFor(avg),
	}, nil
}

// UserAttempts returns a user's recent attempt history, oldest first.
func (s *Service) UserAttempts(ctx context.Context, userID string) ([]domain.Attempt, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID, s.limits.UserHistoryLimit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list by user", Err: err}
	}
	return attempts, nil
}

// Leaderboard groups the team-wide history by user label and returns both
// boards: Ranked (average-first) and BestRuns (best-first). BestRuns is
// ordered on its own primary key, not derived from Ranked's order.
func (s *Service) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	attempts, err := s.attempts.ListAll(ctx, s.limits.HistoryLimit)
	if err != nil {
		return domain.Leaderboard{}, &domain.PersistenceError{Op: "list all", Err: err}
	}

	// ListAll is newest-first, so the first attempt seen per label carries
	// that user's lastAttemptAt.
	byLabel := make(map[string][]domain.Attempt)
	order := make([]string, 0)
	for _, a := range attempts {
		label := a.UserLabel
		if label == "" {
			label = unknownLabel
		}
		if _, ok := byLabel[label]; !ok {
			order = append(order, label)
		}
		byLabel[label] = append(byLabel[label], a)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(order))
	for _, label := range order {
		group := byLabel[label]
		avg := averagePercent(group)
		entries = append(entries, domain.LeaderboardEntry{
			UserLabel:      label,
			AttemptCount:   len(group),
			AveragePercent: avg,
			BestPercent:    bestPercent(group),
			Level:          domain.LevelFor(avg),
			LastAttemptAt:  group[0].CreatedAt,
		})
	}

	ranked := make([]domain.LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AveragePercent != ranked[j].AveragePercent {
			return ranked[i].AveragePercent > ranked[j].AveragePercent
		}
		if ranked[i].BestPercent != ranked[j].BestPercent {
			return ranked[i].BestPercent > ranked[j].BestPercent
		}
		return ranked[i].UserLabel < ranked[j].UserLabel
	})

	bestRuns := make([]domain.LeaderboardEntry, len(entries))
	copy(bestRuns, entries)
	sort.Slice(bestRuns, func(i, j int) bool {
		if bestRuns[i].BestPercent != bestRuns[j].BestPercent {
			return bestRuns[i].BestPercent > bestRuns[j].BestPercent
		}
		if bestRuns[i].AveragePercent != bestRuns[j].AveragePercent {
			return bestRuns[i].AveragePercent > bestRuns[j].AveragePercent
		}
		return bestRuns[i].UserLabel < bestRuns[j].UserLabel
	})

	return domain.Leaderboard{
		Ranked:    ranked,
		BestRuns:  bestRuns,
		UpdatedAt: s.now().UTC(),
	}, nil
}

// HardestQuestions ranks questions by observed accuracy, lowest first.
// Questions seen fewer than MinSeen times are excluded so a single unlucky
// observation cannot top the list. limit == 0 returns the whole gated list
// (the export variant); a negative limit means the configured default.
func (s *Service) HardestQuestions(ctx context.Context, limit int) ([]domain.QuestionDifficulty, error) {
	if limit < 0 {
		limit = s.limits.HardestLimit
	}
	attempts, err := s.attempts.ListAll(ctx, s.limits.HistoryLimit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list all", Err: err}
	}

	type qstat struct {
		seen     int
		correct  int
		category string
	}
	stats := make(map[string]*qstat)
	for _, a := range attempts {
		for _, d := range a.Details {
			st, ok := stats[d.QuestionID]
			if !ok {
				st = &qstat{}
				stats[d.QuestionID] = st
			}
			st.seen++
			if d.IsCorrect {
				st.correct++
			}
			if st.category == "" {
				st.category = d.Category
			}
		}
	}

	gated := make([]domain.QuestionDifficulty, 0, len(stats))
	ids := make([]string, 0, len(stats))
	for id, st := range stats {
		if st.seen < s.limits.MinSeen {
			continue
		}
		ids = append(ids, id)
		gated = append(gated, domain.QuestionDifficulty{
			QuestionID:      id,
			Category:        st.category,
			TimesSeen:       st.seen,
			TimesCorrect:    st.correct,
			AccuracyPercent: Percent(st.correct, st.seen),
		})
	}

	// Text lookup is cosmetic: a failed or partial lookup falls back to a
	// placeholder instead of failing the view.
	texts := map[string]string{}
	if len(ids) > 0 {
		if m, err := s.source.TextsByID(ctx, ids); err == nil {
			texts = m
		}
	}
	for i := range gated {
		if text, ok := texts[gated[i].QuestionID]; ok && text != "" {
			gated[i].Text = text
		} else {
			gated[i].Text = fmt.Sprintf("question %s", gated[i].QuestionID)
		}
	}

	sort.Slice(gated, func(i, j int) bool {
		if gated[i].AccuracyPercent != gated[j].AccuracyPercent {
			return gated[i].AccuracyPercent < gated[j].AccuracyPercent
		}
		if gated[i].TimesSeen != gated[j].TimesSeen {
			return gated[i].TimesSeen > gated[j].TimesSeen
		}
		return gated[i].QuestionID < gated[j].QuestionID
	})

	if limit <= 0 {
		return gated, nil
	}
	if len(gated) > limit {
		gated = gated[:limit]
	}
	return gated, nil
}

// CategoryAccuracy is the team-wide per-category rollup. Unlike the hardest
// list there is no minimum-sample gate.
func (s *Service) CategoryAccuracy(ctx context.Context) ([]domain.CategoryAccuracy, error) {
	attempts, err := s.attempts.ListAll(ctx, s.limits.HistoryLimit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list all", Err: err}
	}
	return rollupCategories(attempts), nil
}

// UserCategoryAccuracy is the same rollup over a single user's history.
func (s *Service) UserCategoryAccuracy(ctx context.Context, userID string) ([]domain.CategoryAccuracy, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID, s.limits.UserHistoryLimit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list by user", Err: err}
	}
	return rollupCategories(attempts), nil
}

func rollupCategories(attempts []domain.Attempt) []domain.CategoryAccuracy {
	type cstat struct {
		correct   int
		total     int
		questions map[string]struct{}
	}
	stats := make(map[string]*cstat)
	for _, a := range attempts {
		for _, d := range a.Details {
			cat := d.Category
			if cat == "" {
				cat = domain.DefaultCategory
			}
			st, ok := stats[cat]
			if !ok {
				st = &cstat{questions: make(map[string]struct{})}
				stats[cat] = st
			}
			st.total++
			if d.IsCorrect {
				st.correct++
			}
			st.questions[d.QuestionID] = struct{}{}
		}
	}

	out := make([]domain.CategoryAccuracy, 0, len(stats))
	for cat, st := range stats {
		out = append(out, domain.CategoryAccuracy{
			Category:               cat,
			QuestionCount:          len(st.questions),
			AverageAccuracyPercent: Percent(st.correct, st.total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// ResetUser bulk-deletes one user's attempts: the only destructive operation
// on the history.
func (s *Service) ResetUser(ctx context.Context, userID string) error {
	if err := s.attempts.DeleteByUser(ctx, userID); err != nil {
		return &domain.PersistenceError{Op: "delete by user", Err: err}
	}
	s.publishLeaderboard(ctx)
	return nil
}

// ResetAll bulk-deletes the whole attempt history.
func (s *Service) ResetAll(ctx context.Context) error {
	if err := s.attempts.DeleteAll(ctx); err != nil {
		return &domain.PersistenceError{Op: "delete all", Err: err}
	}
	s.publishLeaderboard(ctx)
	return nil
}
