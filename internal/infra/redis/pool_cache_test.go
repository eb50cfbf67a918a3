package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"maquiz-service/internal/app"
	"maquiz-service/internal/domain"
	"maquiz-service/internal/infra/memory"
)

func TestPoolCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	source := &countingSource{
		QuestionSource: memory.NewStaticQuestionSource(samplePool()),
	}
	cache := NewPoolCache(client, source, time.Minute)

	pool, err := cache.ListActive(context.Background(), "")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(pool))
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}
	if !mr.Exists("questions:pool:all") {
		t.Fatalf("expected redis key to be set")
	}

	// Second call should hit redis, source not incremented.
	again, err := cache.ListActive(context.Background(), "")
	if err != nil {
		t.Fatalf("list active 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}
	if len(again) != 2 || again[0].ID != pool[0].ID {
		t.Fatalf("expected identical pool from cache, got %+v", again)
	}
}

func TestPoolCacheRefetchesAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	source := &countingSource{
		QuestionSource: memory.NewStaticQuestionSource(samplePool()),
	}
	cache := NewPoolCache(newClient(mr), source, time.Minute)

	if _, err := cache.ListActive(context.Background(), ""); err != nil {
		t.Fatalf("list active: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.ListActive(context.Background(), ""); err != nil {
		t.Fatalf("list active after expiry: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected refetch after expiry, source calls=%d", source.calls)
	}
}

func TestPoolCacheSampleRandomPassesThrough(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewPoolCache(newClient(mr), memory.NewStaticQuestionSource(samplePool()), time.Minute)
	if _, err := cache.SampleRandom(context.Background(), 5, ""); err != domain.ErrRandomSampleUnsupported {
		t.Fatalf("expected pass-through unsupported error, got %v", err)
	}
}

type countingSource struct {
	app.QuestionSource
	calls int
}

func (s *countingSource) ListActive(ctx context.Context, category string) ([]domain.Question, error) {
	s.calls++
	return s.QuestionSource.ListActive(ctx, category)
}

func samplePool() []domain.Question {
	return []domain.Question{
		{
			ID:           "q1",
			Text:         "What is 2 + 2?",
			Options:      []string{"3", "4", "5"},
			CorrectIndex: 1,
			Active:       true,
			Category:     "General",
		},
		{
			ID:           "q2",
			Text:         "How many players per side?",
			Options:      []string{"10", "11"},
			CorrectIndex: 1,
			Active:       true,
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
