package app

import "trivia-arena/internal/domain"

// Event is the engine-to-client message envelope. The transport layer
// serializes it as-is.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// QueuePositionPayload is unicast to a waiting player.
type QueuePositionPayload struct {
	Position int `json:"position"`
}

// PairedPayload announces a new room to both players.
type PairedPayload struct {
	Room    string   `json:"room"`
	Players []string `json:"players"`
}

// CountdownPayload carries one tick of the pre-match countdown.
type CountdownPayload struct {
	Count int `json:"count"`
}

// MatchStartedPayload marks the transition into play.
type MatchStartedPayload struct {
	Players []string       `json:"players"`
	Scores  map[string]int `json:"scores"`
}

// QuestionPayload serves a question to both players. The correct option
// is deliberately withheld.
type QuestionPayload struct {
	Number     int               `json:"number"`
	Text       string            `json:"text"`
	Options    []string          `json:"options"`
	TimeLimit  int               `json:"timeLimit"`
	Category   string            `json:"category"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

// TimerTickPayload carries the server-owned remaining time.
type TimerTickPayload struct {
	RemainingSeconds float64 `json:"remainingSeconds"`
}

// LastAnswer describes the submission that produced a score update.
type LastAnswer struct {
	Player          string  `json:"player"`
	Correct         bool    `json:"correct"`
	Delta           int     `json:"delta"`
	ElapsedSeconds  float64 `json:"elapsedSeconds"`
	Streak          int     `json:"streak"`
	WasFirstCorrect bool    `json:"wasFirstCorrect"`
}

// ScoreUpdatePayload is broadcast after every accepted answer.
type ScoreUpdatePayload struct {
	Scores     map[string]int `json:"scores"`
	LastAnswer LastAnswer     `json:"lastAnswer"`
}

// MatchEndedPayload is the terminal broadcast of a match.
type MatchEndedPayload struct {
	MatchID         string         `json:"matchId"`
	Scores          map[string]int `json:"scores"`
	Winner          string         `json:"winner"` // user id or "draw"
	Earnings        map[string]int `json:"earnings"`
	DurationSeconds float64        `json:"durationSeconds"`
	QuitBy          string         `json:"quitBy,omitempty"`
}

// FatalErrorPayload surfaces the only user-visible failure class.
type FatalErrorPayload struct {
	Message string `json:"message"`
}
