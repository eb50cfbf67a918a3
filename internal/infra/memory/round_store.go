package memory

import (
	"sync"
	"time"

	"maquiz-service/internal/app"
)

// RoundStore keeps live rounds by ID for the HTTP layer. Rounds are
// session-scoped and transient; Sweep drops abandoned ones so the map does
// not grow without bound.
type RoundStore struct {
	mu     sync.RWMutex
	rounds map[string]*app.Round
}

func NewRoundStore() *RoundStore {
	return &RoundStore{rounds: make(map[string]*app.Round)}
}

func (s *RoundStore) Put(round *app.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.ID] = round
}

func (s *RoundStore) Get(id string) (*app.Round, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, ok := s.rounds[id]
	return round, ok
}

func (s *RoundStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rounds, id)
}

// Sweep removes rounds created before the cutoff and reports how many went.
func (s *RoundStore) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, round := range s.rounds {
		if round.CreatedAt.Before(cutoff) {
			delete(s.rounds, id)
			removed++
		}
	}
	return removed
}
