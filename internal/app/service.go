package app

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"maquiz-service/internal/domain"
)

// QuestionSource supplies active multiple-choice questions (from SQL, cache, etc).
// SampleRandom is the server-side "give me N random rows" primitive; sources
// without one return domain.ErrRandomSampleUnsupported and the sampler falls
// back to a client-side shuffle over ListActive.
type QuestionSource interface {
	ListActive(ctx context.Context, category string) ([]domain.Question, error)
	SampleRandom(ctx context.Context, count int, category string) ([]domain.Question, error)
	TextsByID(ctx context.Context, ids []string) (map[string]string, error)
}

// AttemptStore persists immutable attempt records.
type AttemptStore interface {
	Insert(ctx context.Context, attempt domain.Attempt) (string, error)
	// ListByUser returns a user's attempts ordered by createdAt ascending.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Attempt, error)
	// ListAll returns attempts across all users ordered by createdAt descending.
	ListAll(ctx context.Context, limit int) ([]domain.Attempt, error)
	DeleteByUser(ctx context.Context, userID string) error
	DeleteAll(ctx context.Context) error
}

// Limits are the engine's tunable knobs. Zero values fall back to defaults;
// none of them are correctness requirements except MinSeen, which gates the
// hardest-questions view.
type Limits struct {
	RoundSize        int // questions per round
	HistoryLimit     int // team-scope aggregation window (most recent rows)
	UserHistoryLimit int // per-user aggregation window
	HardestLimit     int // default size of the hardest-questions view
	MinSeen          int // minimum observations before a question is ranked
}

func (l Limits) withDefaults() Limits {
	if l.RoundSize <= 0 {
		l.RoundSize = 20
	}
	if l.HistoryLimit <= 0 {
		l.HistoryLimit = 2000
	}
	if l.UserHistoryLimit <= 0 {
		l.UserHistoryLimit = 500
	}
	if l.HardestLimit <= 0 {
		l.HardestLimit = 5
	}
	if l.MinSeen <= 0 {
		l.MinSeen = 3
	}
	return l
}

// Service contains the trainer use cases: assembling rounds, recording
// attempts, and deriving stats views from the attempt history.
type Service struct {
	source   QuestionSource
	attempts AttemptStore
	limits   Limits
	hub      *Hub
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewService(source QuestionSource, attempts AttemptStore, limits Limits) *Service {
	return NewServiceWithClock(source, attempts, limits, time.Now)
}

// NewServiceWithClock is test-only for deterministic timestamps.
func NewServiceWithClock(source QuestionSource, attempts AttemptStore, limits Limits, now func() time.Time) *Service {
	return &Service{
		source:   source,
		attempts: attempts,
		limits:   limits.withDefaults(),
		hub:      NewHub(),
		now:      now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Subscribe returns a channel that receives leaderboard snapshots whenever an
// attempt is recorded or the history is reset. The first snapshot is sent
// immediately. The caller must invoke the returned cancel function.
func (s *Service) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe()
	s.hub.send(ch, initial)
	return ch, cancel, nil
}

// publishLeaderboard pushes a fresh snapshot to subscribers. Best-effort: a
// failed read is logged, never surfaced to the triggering write path.
func (s *Service) publishLeaderboard(ctx context.Context) {
	if s.hub.empty() {
		return
	}
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		log.Printf("leaderboard refresh for subscribers failed: %v", err)
		return
	}
	s.hub.publish(lb)
}

func (s *Service) shuffle(questions []domain.Question) {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	// Fisher-Yates, fresh per call.
	for i := len(questions) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
