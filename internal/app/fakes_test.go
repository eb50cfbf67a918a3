package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"maquiz-service/internal/domain"
)

// fakeSource is a configurable QuestionSource for engine tests.
type fakeSource struct {
	questions []domain.Question
	sampleErr error // returned by SampleRandom; defaults to unsupported
	listErr   error

	mu          sync.Mutex
	listCalls   int
	sampleCalls int
}

func newFakeSource(questions ...domain.Question) *fakeSource {
	return &fakeSource{questions: questions, sampleErr: domain.ErrRandomSampleUnsupported}
}

func (f *fakeSource) ListActive(_ context.Context, category string) ([]domain.Question, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Question, 0, len(f.questions))
	for _, q := range f.questions {
		if !q.Active {
			continue
		}
		if category != AllCategories && q.CategoryOrDefault() != category {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeSource) SampleRandom(_ context.Context, count int, _ string) ([]domain.Question, error) {
	f.mu.Lock()
	f.sampleCalls++
	f.mu.Unlock()
	if f.sampleErr != nil {
		return nil, f.sampleErr
	}
	if len(f.questions) > count {
		return f.questions[:count], nil
	}
	return f.questions, nil
}

func (f *fakeSource) TextsByID(_ context.Context, ids []string) (map[string]string, error) {
	texts := make(map[string]string, len(ids))
	for _, id := range ids {
		for _, q := range f.questions {
			if q.ID == id {
				texts[id] = q.Text
			}
		}
	}
	return texts, nil
}

// fakeStore is an in-memory AttemptStore whose writes can be forced to fail.
type fakeStore struct {
	mu        sync.Mutex
	attempts  []domain.Attempt
	insertErr error
}

func (f *fakeStore) Insert(_ context.Context, attempt domain.Attempt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.attempts = append(f.attempts, attempt)
	return attempt.ID, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string, limit int) ([]domain.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Attempt, 0)
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context, limit int) ([]domain.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Attempt, 0, len(f.attempts))
	for i := len(f.attempts) - 1; i >= 0; i-- {
		out = append(out, f.attempts[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.attempts[:0]
	for _, a := range f.attempts {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	f.attempts = kept
	return nil
}

func (f *fakeStore) DeleteAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = nil
	return nil
}

func (f *fakeStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

// questionBank builds n active well-formed questions q1..qn with three options
// and the correct answer at index 0.
func questionBank(n int) []domain.Question {
	qs := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, domain.Question{
			ID:           fmt.Sprintf("q%d", i),
			Text:         fmt.Sprintf("question %d", i),
			Options:      []string{"right", "wrong", "also wrong"},
			CorrectIndex: 0,
			Active:       true,
		})
	}
	return qs
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
