package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"trivia-arena/internal/domain"
)

const (
	winnerEarningsFactor = 1.6
	drawEarningsFactor   = 0.8
)

// settle computes and persists the match outcome exactly once, then
// releases the room. quitter is empty for natural completion; otherwise
// the opponent wins unconditionally. Persistence is best-effort: failures
// are logged and cleanup proceeds, the timer-driven flow must never stall
// on storage.
func (e *Engine) settle(m *Match, quitter string) {
	m.mu.Lock()
	if m.settled {
		m.mu.Unlock()
		return
	}
	m.settled = true
	m.phase = phaseEnded
	m.bumpTimerLocked()
	m.endTime = e.now()
	if m.startTime.IsZero() {
		m.startTime = m.createdAt
	}
	scores := m.scoresLocked()
	used := append([]string(nil), m.usedIDs...)
	settings := m.settings
	start, end := m.startTime, m.endTime
	m.mu.Unlock()

	if !e.grace.MarkSettled(m.roomID) {
		log.Printf("settlement of %s suppressed: settled within grace window", m.roomID)
		e.release(m)
		return
	}

	var winner string
	switch {
	case quitter != "":
		winner = m.opponent(quitter)
	case scores[m.players[0]] > scores[m.players[1]]:
		winner = m.players[0]
	case scores[m.players[1]] > scores[m.players[0]]:
		winner = m.players[1]
	}

	earnings := make(map[string]int, 2)
	results := make([]domain.PlayerResult, 0, 2)
	for _, p := range m.players[:] {
		var amount int
		var status string
		switch {
		case p == quitter:
			amount, status = 0, "quit"
		case p == winner:
			amount = int(float64(e.rules.EntryFee) * winnerEarningsFactor)
			status = "won"
		case winner == "":
			amount = int(float64(e.rules.EntryFee) * drawEarningsFactor)
			status = "draw"
		default:
			amount, status = 0, "lost"
		}
		earnings[p] = amount
		results = append(results, domain.PlayerResult{
			UserID:   p,
			Score:    scores[p],
			Earnings: amount,
			Status:   status,
		})
	}

	recStatus := "completed"
	if quitter != "" {
		recStatus = "forfeited"
	}
	rec := domain.MatchRecord{
		ID:        uuid.NewString(),
		RoomID:    m.roomID,
		Players:   results,
		Winner:    winner,
		Status:    recStatus,
		StartedAt: start,
		EndedAt:   end,
		Settings:  settings,
	}

	winnerField := winner
	if winner == "" {
		winnerField = "draw"
	}
	e.broadcast(m, Event{Type: "match-ended", Payload: MatchEndedPayload{
		MatchID:         rec.ID,
		Scores:          scores,
		Winner:          winnerField,
		Earnings:        earnings,
		DurationSeconds: round1(end.Sub(start).Seconds()),
		QuitBy:          quitter,
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	matchID, err := e.profiles.RecordMatch(ctx, rec)
	if err != nil {
		log.Printf("room %s: record match failed: %v (continuing cleanup)", m.roomID, err)
		matchID = rec.ID
	}
	for _, p := range m.players[:] {
		out := domain.Outcome{
			Won:      p == winner,
			Draw:     winner == "",
			Score:    scores[p],
			Earnings: earnings[p],
			Opponent: m.opponent(p),
			MatchID:  matchID,
		}
		if err := e.profiles.ApplyOutcome(ctx, p, out); err != nil {
			log.Printf("room %s: apply outcome for %s failed: %v", m.roomID, p, err)
		}
	}
	if len(used) > 0 {
		if err := e.supply.MarkConsumed(ctx, used); err != nil {
			log.Printf("room %s: mark questions consumed failed: %v", m.roomID, err)
		}
	}

	e.release(m)
}

// release frees the room and any leftover queue entries for its players.
func (e *Engine) release(m *Match) {
	e.mu.Lock()
	delete(e.rooms, m.roomID)
	for _, p := range m.players[:] {
		e.queue.remove(p)
	}
	e.mu.Unlock()
	log.Printf("room %s reclaimed", m.roomID)
}
