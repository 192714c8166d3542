package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-arena/internal/domain"
	"trivia-arena/internal/infra/memory"
)

func TestQuestionSupplyCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(samplePool()),
	}
	supply := NewQuestionSupply(client, loader, time.Minute)

	if _, err := supply.GetQuestion(context.Background(), "General", domain.DifficultyEasy, nil); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("questions:General:easy") {
		t.Fatalf("expected pool cached in redis")
	}

	// Second call should hit the redis cache.
	if _, err := supply.GetQuestion(context.Background(), "General", domain.DifficultyEasy, nil); err != nil {
		t.Fatalf("get question 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestQuestionSupplyExcludesAndConsumes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	supply := NewQuestionSupply(client, memory.NewStaticQuestionLoader(samplePool()), time.Minute)
	ctx := context.Background()

	q, err := supply.GetQuestion(ctx, "General", domain.DifficultyEasy, []string{"q1", "q2"})
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if q.ID != "q3" {
		t.Fatalf("expected q3, got %s", q.ID)
	}

	if err := supply.MarkConsumed(ctx, []string{"q3"}); err != nil {
		t.Fatalf("mark consumed: %v", err)
	}
	if _, err := supply.GetQuestion(ctx, "General", domain.DifficultyEasy, []string{"q1", "q2"}); err != domain.ErrNoQuestionAvailable {
		t.Fatalf("expected consumed question excluded, got %v", err)
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, category, difficulty)
}

func samplePool() []domain.Question {
	questions := make([]domain.Question, 0, 3)
	for _, id := range []string{"q1", "q2", "q3"} {
		questions = append(questions, domain.Question{
			ID:         id,
			Text:       "Question " + id,
			Options:    []string{"a", "b", "c", "d"},
			Correct:    "a",
			TimeLimit:  7,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		})
	}
	return questions
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
