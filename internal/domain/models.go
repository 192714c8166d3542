package domain

import "time"

// Difficulty selects the score multiplier and question pool for a match.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Multiplier returns the score multiplier for the difficulty.
// Unknown difficulties fall back to easy.
func (d Difficulty) Multiplier() float64 {
	switch d {
	case DifficultyMedium:
		return 1.5
	case DifficultyHard:
		return 2
	default:
		return 1
	}
}

// Question models a timed MCQ served to both players of a match.
type Question struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Options    []string   `json:"options"`
	Correct    string     `json:"correct"`
	TimeLimit  int        `json:"timeLimit"` // seconds
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Active     bool       `json:"isActive,omitempty"`
}

// MatchSettings captures the parameters a match was played under.
type MatchSettings struct {
	Category        string     `json:"category"`
	Difficulty      Difficulty `json:"difficulty"`
	TimePerQuestion int        `json:"timePerQuestion"`
	QuestionCount   int        `json:"questionCount"`
}

// PlayerResult is one player's final line in a match record.
type PlayerResult struct {
	UserID   string `json:"userId"`
	Score    int    `json:"score"`
	Earnings int    `json:"earnings"`
	Status   string `json:"status"` // won, lost, draw, quit
}

// MatchRecord is the persisted outcome of one settled match.
type MatchRecord struct {
	ID        string         `json:"id"`
	RoomID    string         `json:"roomId"`
	Players   []PlayerResult `json:"players"`
	Winner    string         `json:"winner"` // empty on a draw
	Status    string         `json:"status"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   time.Time      `json:"endedAt"`
	Settings  MatchSettings  `json:"settings"`
}

// Draw reports whether the match ended without a winner.
func (r MatchRecord) Draw() bool {
	return r.Winner == ""
}

// Outcome is the per-player settlement applied to a profile.
type Outcome struct {
	Won      bool   `json:"won"`
	Draw     bool   `json:"draw"`
	Score    int    `json:"score"`
	Earnings int    `json:"earnings"`
	Opponent string `json:"opponent"`
	MatchID  string `json:"matchId"`
}

// Profile holds a player's running aggregates across matches.
type Profile struct {
	UserID        string    `json:"userId"`
	MatchesPlayed int       `json:"matchesPlayed"`
	MatchesWon    int       `json:"matchesWon"`
	WinStreak     int       `json:"winStreak"`
	TotalEarnings int       `json:"totalEarnings"`
	WinRate       float64   `json:"winRate"`
	Tier          string    `json:"tier"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Apply folds one match outcome into the profile aggregates.
func (p *Profile) Apply(o Outcome, now time.Time) {
	p.MatchesPlayed++
	if o.Won {
		p.MatchesWon++
		p.WinStreak++
	} else if !o.Draw {
		p.WinStreak = 0
	}
	p.TotalEarnings += o.Earnings
	p.WinRate = float64(p.MatchesWon) / float64(p.MatchesPlayed)
	p.Tier = TierForWins(p.MatchesWon)
	p.UpdatedAt = now
}

// TierForWins maps total wins to a display tier.
func TierForWins(wins int) string {
	switch {
	case wins >= 100:
		return "Diamond"
	case wins >= 50:
		return "Platinum"
	case wins >= 25:
		return "Gold"
	case wins >= 10:
		return "Silver"
	default:
		return "Bronze"
	}
}
