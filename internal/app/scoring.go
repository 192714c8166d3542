package app

import (
	"math"

	"trivia-arena/internal/domain"
)

// answerInput is everything scoring needs about a submission.
type answerInput struct {
	Correct      bool
	TimeTaken    float64 // seconds since the question was served
	TimeLimit    float64 // the question's limit in seconds
	Difficulty   domain.Difficulty
	Streak       int  // the player's streak before this answer
	FirstCorrect bool // no other correct answer recorded for this question yet
}

// answerScore is the resulting point delta and streak.
type answerScore struct {
	Delta  int
	Streak int
}

// scoreAnswer computes the score delta for a submission. Pure: identical
// inputs always yield identical output.
//
// Correct answers earn a base of 100 (first responder) or 50 (second),
// plus a time bonus of 10 (or 5) points per unspent second. A streak of
// three or more multiplies the base by 1.5, and the difficulty multiplier
// applies last. Incorrect answers reset the streak and score nothing.
func scoreAnswer(in answerInput) answerScore {
	if !in.Correct {
		return answerScore{Delta: 0, Streak: 0}
	}

	bonus := in.TimeLimit - in.TimeTaken
	if bonus < 0 {
		bonus = 0
	}

	var base float64
	if in.FirstCorrect {
		base = 100 + bonus*10
	} else {
		base = 50 + bonus*5
	}

	streak := in.Streak + 1
	if streak >= 3 {
		base *= 1.5
	}

	return answerScore{
		Delta:  int(math.Round(base * in.Difficulty.Multiplier())),
		Streak: streak,
	}
}

// round1 rounds to one decimal place, used for elapsed/remaining seconds
// in outbound events.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
