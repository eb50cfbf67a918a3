package memory

import (
	"context"

	"maquiz-service/internal/domain"
)

// StaticQuestionSource serves a fixed in-memory question set (tests/demos).
// It has no server-side random primitive, so the sampler always takes the
// shuffle fallback against it.
type StaticQuestionSource struct {
	questions []domain.Question
}

func NewStaticQuestionSource(questions []domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{questions: questions}
}

func (s *StaticQuestionSource) ListActive(_ context.Context, category string) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if !q.Active {
			continue
		}
		if category != "" && q.CategoryOrDefault() != category {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *StaticQuestionSource) SampleRandom(context.Context, int, string) ([]domain.Question, error) {
	return nil, domain.ErrRandomSampleUnsupported
}

func (s *StaticQuestionSource) TextsByID(_ context.Context, ids []string) (map[string]string, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	texts := make(map[string]string, len(ids))
	for _, q := range s.questions {
		if _, ok := want[q.ID]; ok {
			texts[q.ID] = q.Text
		}
	}
	return texts, nil
}
