package memory

import (
	"context"
	"sync"
	"time"

	"trivia-arena/internal/domain"
)

// ProfileStore is an in-memory implementation of app.ProfileStore, used
// when no Postgres is configured and in tests.
type ProfileStore struct {
	mu       sync.Mutex
	clock    func() time.Time
	profiles map[string]*domain.Profile
	matches  []domain.MatchRecord
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		clock:    time.Now,
		profiles: make(map[string]*domain.Profile),
	}
}

func (s *ProfileStore) RecordMatch(_ context.Context, rec domain.MatchRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, rec)
	return rec.ID, nil
}

func (s *ProfileStore) ApplyOutcome(_ context.Context, userID string, out domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &domain.Profile{UserID: userID, Tier: domain.TierForWins(0)}
		s.profiles[userID] = p
	}
	p.Apply(out, s.clock())
	return nil
}

// Profile returns a copy of the user's aggregates.
func (s *ProfileStore) Profile(userID string) (domain.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{}, false
	}
	return *p, true
}

// Matches returns a copy of all recorded matches.
func (s *ProfileStore) Matches() []domain.MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MatchRecord(nil), s.matches...)
}
