package memory

import (
	"context"
	"testing"
	"time"

	"trivia-arena/internal/domain"
)

func TestQuestionSupplyCachesPool(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(samplePool()),
	}
	supply := NewQuestionSupply(loader, time.Minute)

	if _, err := supply.GetQuestion(context.Background(), "General", domain.DifficultyEasy, nil); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := supply.GetQuestion(context.Background(), "General", domain.DifficultyEasy, nil); err != nil {
		t.Fatalf("get question 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuestionSupplyHonorsExclusions(t *testing.T) {
	supply := NewQuestionSupply(NewStaticQuestionLoader(samplePool()), time.Minute)
	ctx := context.Background()

	q, err := supply.GetQuestion(ctx, "General", domain.DifficultyEasy, []string{"q1", "q2"})
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if q.ID != "q3" {
		t.Fatalf("expected only q3 eligible, got %s", q.ID)
	}

	_, err = supply.GetQuestion(ctx, "General", domain.DifficultyEasy, []string{"q1", "q2", "q3"})
	if err != domain.ErrNoQuestionAvailable {
		t.Fatalf("expected exhaustion, got %v", err)
	}
}

func TestQuestionSupplyConsumedNeverServedAgain(t *testing.T) {
	supply := NewQuestionSupply(NewStaticQuestionLoader(samplePool()), time.Minute)
	ctx := context.Background()

	if err := supply.MarkConsumed(ctx, []string{"q1", "q2", "q3"}); err != nil {
		t.Fatalf("mark consumed: %v", err)
	}
	if _, err := supply.GetQuestion(ctx, "General", domain.DifficultyEasy, nil); err != domain.ErrNoQuestionAvailable {
		t.Fatalf("expected consumed pool exhausted, got %v", err)
	}
}

func TestQuestionSupplyFiltersByCategoryAndDifficulty(t *testing.T) {
	supply := NewQuestionSupply(NewStaticQuestionLoader(samplePool()), time.Minute)

	_, err := supply.GetQuestion(context.Background(), "Science", domain.DifficultyHard, nil)
	if err != domain.ErrNoQuestionAvailable {
		t.Fatalf("expected no hard science questions, got %v", err)
	}
}

type countingLoader struct {
	QuestionLoader
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
