package app

import (
	"context"
	"errors"
	"testing"

	"maquiz-service/internal/domain"
)

func TestNewRoundFallbackTakesCountQuestions(t *testing.T) {
	source := newFakeSource(questionBank(30)...)
	service := NewService(source, &fakeStore{}, Limits{})

	round, err := service.NewRound(context.Background(), 20, AllCategories)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	if len(round.Questions) != 20 {
		t.Fatalf("expected 20 questions, got %d", len(round.Questions))
	}
	seen := make(map[string]struct{})
	for _, q := range round.Questions {
		if _, dup := seen[q.ID]; dup {
			t.Fatalf("duplicate question %s in round", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
}

func TestNewRoundSmallPoolReturnsAll(t *testing.T) {
	source := newFakeSource(questionBank(5)...)
	service := NewService(source, &fakeStore{}, Limits{})

	round, err := service.NewRound(context.Background(), 20, AllCategories)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	if len(round.Questions) != 5 {
		t.Fatalf("expected all 5 questions, got %d", len(round.Questions))
	}
}

func TestNewRoundShufflesFallbackPool(t *testing.T) {
	source := newFakeSource(questionBank(30)...)
	service := NewService(source, &fakeStore{}, Limits{})

	// With 30 questions the odds of two independent 20-question selections
	// coming out identical are negligible; allow a few retries anyway.
	first, err := service.NewRound(context.Background(), 20, AllCategories)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	for i := 0; i < 5; i++ {
		next, err := service.NewRound(context.Background(), 20, AllCategories)
		if err != nil {
			t.Fatalf("NewRound: %v", err)
		}
		if !sameOrder(first.Questions, next.Questions) {
			return
		}
	}
	t.Fatalf("six rounds came out in identical order; shuffle looks broken")
}

func TestNewRoundFallbackSelectionRoughlyUniform(t *testing.T) {
	source := newFakeSource(questionBank(10)...)
	service := NewService(source, &fakeStore{}, Limits{})

	// 1000 draws of 5 from 10: each question is expected in ~500 rounds
	// (sd ~16). The band is ~9 sigma wide, so a fair shuffle virtually never
	// trips it while a position-biased one does.
	const (
		trials = 1000
		low    = 350
		high   = 650
	)
	counts := make(map[string]int, 10)
	for i := 0; i < trials; i++ {
		round, err := service.NewRound(context.Background(), 5, AllCategories)
		if err != nil {
			t.Fatalf("NewRound: %v", err)
		}
		for _, q := range round.Questions {
			counts[q.ID]++
		}
	}
	for _, q := range source.questions {
		n := counts[q.ID]
		if n < low || n > high {
			t.Errorf("question %s selected %d times of %d, want within [%d, %d]", q.ID, n, trials, low, high)
		}
	}
}

func sameOrder(a, b []domain.Question) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func TestNewRoundPrimaryPreservesSourceOrder(t *testing.T) {
	source := newFakeSource(questionBank(10)...)
	source.sampleErr = nil // primary path available
	service := NewService(source, &fakeStore{}, Limits{})

	round, err := service.NewRound(context.Background(), 4, AllCategories)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	if len(round.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(round.Questions))
	}
	for i, q := range round.Questions {
		if want := source.questions[i].ID; q.ID != want {
			t.Fatalf("position %d: got %s, want %s (primary order must be kept)", i, q.ID, want)
		}
	}
	if source.listCalls != 0 {
		t.Fatalf("fallback was consulted although the primary succeeded")
	}
}

func TestNewRoundPrimaryDeduplicates(t *testing.T) {
	bank := questionBank(3)
	source := newFakeSource(bank[0], bank[0], bank[1], bank[1], bank[2])
	source.sampleErr = nil
	service := NewService(source, &fakeStore{}, Limits{})

	round, err := service.NewRound(context.Background(), 5, AllCategories)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	if len(round.Questions) != 3 {
		t.Fatalf("expected 3 distinct questions, got %d", len(round.Questions))
	}
}

func TestNewRoundFiltersMalformedQuestions(t *testing.T) {
	bank := questionBank(3)
	bank = append(bank,
		domain.Question{ID: "one-option", Options: []string{"only"}, Active: true},
		domain.Question{ID: "bad-index", Options: []string{"a", "b"}, CorrectIndex: 5, Active: true},
	)
	source := newFakeSource(bank...)
	service := NewService(source, &fakeStore{}, Limits{})

	round, err := service.NewRound(context.Background(), 10, AllCategories)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	if len(round.Questions) != 3 {
		t.Fatalf("expected malformed questions dropped, got %d", len(round.Questions))
	}
	for _, q := range round.Questions {
		if !q.WellFormed() {
			t.Fatalf("malformed question %s survived the filter", q.ID)
		}
	}
}

func TestNewRoundCategoryFilter(t *testing.T) {
	bank := questionBank(4)
	bank[0].Category = "Math"
	bank[1].Category = "Math"
	source := newFakeSource(bank...)
	service := NewService(source, &fakeStore{}, Limits{})

	round, err := service.NewRound(context.Background(), 10, "Math")
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	if len(round.Questions) != 2 {
		t.Fatalf("expected 2 Math questions, got %d", len(round.Questions))
	}
}

func TestNewRoundEmptyPool(t *testing.T) {
	source := newFakeSource() // no questions at all
	service := NewService(source, &fakeStore{}, Limits{})

	_, err := service.NewRound(context.Background(), 20, AllCategories)
	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
}

func TestNewRoundInactiveOnlyPoolIsEmpty(t *testing.T) {
	bank := questionBank(3)
	for i := range bank {
		bank[i].Active = false
	}
	source := newFakeSource(bank...)
	service := NewService(source, &fakeStore{}, Limits{})

	_, err := service.NewRound(context.Background(), 20, AllCategories)
	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
}

func TestNewRoundBothPathsFailing(t *testing.T) {
	source := newFakeSource(questionBank(3)...)
	source.listErr = errors.New("connection refused")
	service := NewService(source, &fakeStore{}, Limits{})

	_, err := service.NewRound(context.Background(), 20, AllCategories)
	var unavailable *domain.SourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
	if !errors.Is(unavailable.Primary, domain.ErrRandomSampleUnsupported) {
		t.Fatalf("primary cause not kept: %v", unavailable.Primary)
	}
	if !errors.Is(unavailable.Fallback, source.listErr) {
		t.Fatalf("fallback cause not kept: %v", unavailable.Fallback)
	}
}

func TestNewRoundDefaultCount(t *testing.T) {
	source := newFakeSource(questionBank(30)...)
	service := NewService(source, &fakeStore{}, Limits{RoundSize: 7})

	round, err := service.NewRound(context.Background(), 0, AllCategories)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	if len(round.Questions) != 7 {
		t.Fatalf("expected configured round size 7, got %d", len(round.Questions))
	}
}
