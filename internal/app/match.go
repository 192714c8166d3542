package app

import (
	"sort"
	"sync"
	"time"

	"trivia-arena/internal/domain"
)

// matchPhase is the lifecycle stage of a room.
type matchPhase int

const (
	phaseCountdown matchPhase = iota
	phasePlaying
	phaseEnded
)

func (p matchPhase) String() string {
	switch p {
	case phaseCountdown:
		return "countdown"
	case phasePlaying:
		return "playing"
	case phaseEnded:
		return "ended"
	}
	return "unknown"
}

// RoomKey derives the room identifier for an unordered player pair. The
// ids are sorted so both orders map to the same room.
func RoomKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return "match_" + ids[0] + "_" + ids[1]
}

// Match is the mutable aggregate for one active room. It is owned by the
// engine; every field below the mutex is accessed only with it held.
// players and settings are fixed at creation and safe to read without it.
type Match struct {
	roomID    string
	players   [2]string
	settings  domain.MatchSettings
	createdAt time.Time

	mu             sync.Mutex
	phase          matchPhase
	joined         map[string]bool
	countdownOn    bool
	scores         map[string]int
	streaks        map[string]int
	questionNumber int
	current        *domain.Question
	questionStart  time.Time
	answered       map[string]bool
	firstCorrect   string
	usedIDs        []string
	timerSeq       uint64
	settled        bool
	startTime      time.Time
	endTime        time.Time
}

func newMatch(roomID string, a, b queueEntry, questionCount int, now time.Time) *Match {
	m := &Match{
		roomID:    roomID,
		players:   [2]string{a.userID, b.userID},
		createdAt: now,
		phase:     phaseCountdown,
		joined:    make(map[string]bool, 2),
		scores:    map[string]int{a.userID: 0, b.userID: 0},
		streaks:   map[string]int{a.userID: 0, b.userID: 0},
		answered:  make(map[string]bool, 2),
		settings: domain.MatchSettings{
			Category:      a.category,
			Difficulty:    a.difficulty,
			QuestionCount: questionCount,
		},
	}
	return m
}

func (m *Match) hasPlayer(userID string) bool {
	return m.players[0] == userID || m.players[1] == userID
}

func (m *Match) opponent(userID string) string {
	if m.players[0] == userID {
		return m.players[1]
	}
	return m.players[0]
}

// bumpTimerLocked invalidates any scheduled timer callback and returns the
// sequence a newly scheduled one should carry. At most one live timer per
// room follows from every schedule going through this counter.
func (m *Match) bumpTimerLocked() uint64 {
	m.timerSeq++
	return m.timerSeq
}

// timerCurrent reports whether a scheduled callback's snapshot is still
// the live one. Stale callbacks (superseded timer, settled match) must
// return without acting.
func (m *Match) timerCurrent(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timerSeq == seq && !m.settled
}

func (m *Match) scoresLocked() map[string]int {
	out := make(map[string]int, len(m.scores))
	for k, v := range m.scores {
		out[k] = v
	}
	return out
}
