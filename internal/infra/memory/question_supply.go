package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-arena/internal/domain"
)

// QuestionLoader fetches question pools from a backing store (e.g. Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error)
}

// QuestionSupply caches question pools per category/difficulty with TTL
// to avoid repeated store hits, and tracks consumed question ids so a
// question is never served to a second match.
type QuestionSupply struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu       sync.Mutex
	cache    map[string]cachedPool
	consumed map[string]struct{}
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionSupply(loader QuestionLoader, ttl time.Duration) *QuestionSupply {
	return &QuestionSupply{
		loader:   loader,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedPool),
		consumed: make(map[string]struct{}),
	}
}

// GetQuestion returns a random question from the pool that is neither in
// excludeIDs nor already consumed by a settled match.
func (s *QuestionSupply) GetQuestion(ctx context.Context, category string, difficulty domain.Difficulty, excludeIDs []string) (domain.Question, error) {
	pool, err := s.pool(ctx, category, difficulty)
	if err != nil {
		return domain.Question{}, err
	}

	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if _, ok := excluded[q.ID]; ok {
			continue
		}
		if _, ok := s.consumed[q.ID]; ok {
			continue
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return domain.Question{}, domain.ErrNoQuestionAvailable
	}
	return candidates[s.rnd.Intn(len(candidates))], nil
}

// MarkConsumed flags question ids so they are never served again.
func (s *QuestionSupply) MarkConsumed(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.consumed[id] = struct{}{}
	}
	return nil
}

func (s *QuestionSupply) pool(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error) {
	key := category + ":" + string(difficulty)
	now := s.clock()

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && entry.expiresAt.After(now) {
		s.mu.Unlock()
		return entry.questions, nil
	}
	s.mu.Unlock()

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		now := s.clock()
		s.mu.Lock()
		if entry, ok := s.cache[key]; ok && entry.expiresAt.After(now) {
			s.mu.Unlock()
			return entry.questions, nil
		}
		s.mu.Unlock()

		questions, err := s.loader.LoadQuestions(ctx, category, difficulty)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[key] = cachedPool{
			questions: questions,
			expiresAt: now.Add(s.ttlWithJitter()),
		}
		s.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *QuestionSupply) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed question set (tests/demo runs).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(l.questions))
	for _, q := range l.questions {
		if q.Category == category && q.Difficulty == difficulty {
			out = append(out, q)
		}
	}
	return out, nil
}
