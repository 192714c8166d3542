package app

import (
	"time"

	"trivia-arena/internal/domain"
)

// Rules holds the tunable parameters of match orchestration.
// Tests shrink the durations; production uses DefaultRules with
// overrides from config.
type Rules struct {
	EntryFee          int
	QuestionsPerMatch int
	CountdownFrom     int
	CountdownInterval time.Duration
	StartDelay        time.Duration
	TransitionDelay   time.Duration
	TickInterval      time.Duration
	GraceWindow       time.Duration
	DefaultCategory   string
	DefaultDifficulty domain.Difficulty
}

func DefaultRules() Rules {
	return Rules{
		EntryFee:          10,
		QuestionsPerMatch: 10,
		CountdownFrom:     3,
		CountdownInterval: time.Second,
		StartDelay:        time.Second,
		TransitionDelay:   time.Second,
		TickInterval:      100 * time.Millisecond,
		GraceWindow:       5 * time.Second,
		DefaultCategory:   "General",
		DefaultDifficulty: domain.DifficultyEasy,
	}
}
