package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-arena/internal/domain"
)

// QuestionLoader fetches question pools from a backing store (e.g. Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error)
}

// QuestionSupply caches question pools in Redis and keeps a shared set of
// consumed question ids so instances never serve the same question twice.
// Pools are stored as: HSET questions:{category}:{difficulty} {id} {json}
// Consumed ids as:     SADD questions:consumed {id...}
type QuestionSupply struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionSupply(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionSupply {
	return &QuestionSupply{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *QuestionSupply) GetQuestion(ctx context.Context, category string, difficulty domain.Difficulty, excludeIDs []string) (domain.Question, error) {
	key := s.poolKey(category, difficulty)

	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil || len(raw) == 0 {
		if raw, err = s.fillPool(ctx, key, category, difficulty); err != nil {
			return domain.Question{}, err
		}
	}
	return s.pick(ctx, raw, excludeIDs)
}

// MarkConsumed flags question ids in the shared consumed set.
func (s *QuestionSupply) MarkConsumed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return s.client.SAdd(ctx, s.consumedKey(), members...).Err()
}

func (s *QuestionSupply) fillPool(ctx context.Context, key, category string, difficulty domain.Difficulty) (map[string]string, error) {
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := s.client.HGetAll(ctx, key).Result()
		if err == nil && len(raw) > 0 {
			return raw, nil
		}

		questions, err := s.loader.LoadQuestions(ctx, category, difficulty)
		if err != nil {
			return nil, err
		}

		raw = make(map[string]string, len(questions))
		pipe := s.client.Pipeline()
		for _, q := range questions {
			data, err := json.Marshal(q)
			if err != nil {
				continue
			}
			raw[q.ID] = string(data)
			pipe.HSet(ctx, key, q.ID, data)
		}
		if ttl := s.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]string), nil
}

func (s *QuestionSupply) pick(ctx context.Context, raw map[string]string, excludeIDs []string) (domain.Question, error) {
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		if _, ok := excluded[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return domain.Question{}, domain.ErrNoQuestionAvailable
	}

	consumed, err := s.client.SMIsMember(ctx, s.consumedKey(), toMembers(ids)...).Result()
	if err != nil {
		consumed = make([]bool, len(ids))
	}
	available := ids[:0]
	for i, id := range ids {
		if !consumed[i] {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		return domain.Question{}, domain.ErrNoQuestionAvailable
	}

	id := available[s.rnd.Intn(len(available))]
	var q domain.Question
	if err := json.Unmarshal([]byte(raw[id]), &q); err != nil {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *QuestionSupply) poolKey(category string, difficulty domain.Difficulty) string {
	return "questions:" + category + ":" + string(difficulty)
}

func (s *QuestionSupply) consumedKey() string {
	return "questions:consumed"
}

func (s *QuestionSupply) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

func toMembers(ids []string) []interface{} {
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return members
}
