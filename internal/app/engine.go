package app

import (
	"context"
	"log"
	"sync"
	"time"

	"trivia-arena/internal/domain"
)

// QuestionSupply provides unused question content by category/difficulty.
// GetQuestion returns domain.ErrNoQuestionAvailable when the pool is
// exhausted for the given filter.
type QuestionSupply interface {
	GetQuestion(ctx context.Context, category string, difficulty domain.Difficulty, excludeIDs []string) (domain.Question, error)
	MarkConsumed(ctx context.Context, ids []string) error
}

// ProfileStore persists settled matches and per-player aggregates. Both
// calls are best-effort from the engine's perspective: failures are
// logged, never fatal to the match.
type ProfileStore interface {
	RecordMatch(ctx context.Context, rec domain.MatchRecord) (string, error)
	ApplyOutcome(ctx context.Context, userID string, out domain.Outcome) error
}

// Notifier delivers events to a player's live connection, dropping them
// if none is registered.
type Notifier interface {
	Send(userID string, ev Event)
}

// GraceSet suppresses a second settlement of the same room shortly after
// the first (covers the race between a client game-end event and the
// server's own timer-driven completion). MarkSettled returns false if the
// room settled within the grace window.
type GraceSet interface {
	MarkSettled(roomID string) bool
}

// Engine is the match orchestration core: matchmaking queue, room
// registry, and the per-room state machines. All queue/registry mutation
// happens under e.mu; per-room state under each Match's own mutex. The
// lock order is engine before match, never the reverse.
type Engine struct {
	supply   QuestionSupply
	profiles ProfileStore
	notifier Notifier
	grace    GraceSet
	rules    Rules
	now      func() time.Time

	mu    sync.Mutex
	queue waitQueue
	rooms map[string]*Match
}

func NewEngine(supply QuestionSupply, profiles ProfileStore, notifier Notifier, grace GraceSet, rules Rules) *Engine {
	return NewEngineWithClock(supply, profiles, notifier, grace, rules, time.Now)
}

// NewEngineWithClock is test-only for deterministic elapsed-time scoring.
func NewEngineWithClock(supply QuestionSupply, profiles ProfileStore, notifier Notifier, grace GraceSet, rules Rules, now func() time.Time) *Engine {
	return &Engine{
		supply:   supply,
		profiles: profiles,
		notifier: notifier,
		grace:    grace,
		rules:    rules,
		now:      now,
		rooms:    make(map[string]*Match),
	}
}

// JoinQueue enqueues a player, pairing the two oldest waiters when the
// pool reaches two. A player already in an active match is ignored;
// a player already queued has their entry replaced in place.
func (e *Engine) JoinQueue(userID, category string, difficulty domain.Difficulty) {
	if category == "" {
		category = e.rules.DefaultCategory
	}
	switch difficulty {
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
	default:
		difficulty = e.rules.DefaultDifficulty
	}

	e.mu.Lock()
	for _, m := range e.rooms {
		if m.hasPlayer(userID) {
			e.mu.Unlock()
			log.Printf("join-queue ignored: %s already in room %s", userID, m.roomID)
			return
		}
	}

	replaced, pos := e.queue.upsert(queueEntry{
		userID:     userID,
		category:   category,
		difficulty: difficulty,
		enqueuedAt: e.now(),
	})
	if replaced {
		log.Printf("queue entry for %s replaced", userID)
	}

	if e.queue.len() >= 2 {
		a, b, _ := e.queue.popPair()
		roomID := RoomKey(a.userID, b.userID)
		if _, exists := e.rooms[roomID]; exists {
			// A room for this pair is still active; discard the pairing
			// and keep both players queued.
			e.queue.pushFront(a, b)
			e.mu.Unlock()
			log.Printf("pairing discarded: room %s still active", roomID)
			return
		}
		m := newMatch(roomID, a, b, e.rules.QuestionsPerMatch, e.now())
		e.rooms[roomID] = m
		e.mu.Unlock()

		paired := Event{Type: "paired", Payload: PairedPayload{Room: roomID, Players: []string{a.userID, b.userID}}}
		e.notifier.Send(a.userID, paired)
		e.notifier.Send(b.userID, paired)
		return
	}
	e.mu.Unlock()

	e.notifier.Send(userID, Event{Type: "queue-position", Payload: QueuePositionPayload{Position: pos}})
}

// LeaveQueue removes a player's queue entry. No-op when absent.
func (e *Engine) LeaveQueue(userID string) {
	e.mu.Lock()
	removed := e.queue.remove(userID)
	e.mu.Unlock()
	if removed {
		log.Printf("%s left the queue", userID)
	}
}

// JoinRoom registers a player's connection with their room. The countdown
// starts once, when the second player joins; repeated joins are no-ops.
func (e *Engine) JoinRoom(roomID, userID string) {
	m := e.room(roomID)
	if m == nil {
		log.Printf("join-room for unknown room %s ignored", roomID)
		return
	}
	if !m.hasPlayer(userID) {
		log.Printf("join-room: %s is not in room %s", userID, roomID)
		return
	}

	m.mu.Lock()
	m.joined[userID] = true
	start := !m.countdownOn && m.phase == phaseCountdown &&
		m.joined[m.players[0]] && m.joined[m.players[1]]
	var seq uint64
	if start {
		m.countdownOn = true
		seq = m.bumpTimerLocked()
	}
	m.mu.Unlock()

	if start {
		go e.runCountdown(m, seq)
	}
}

// SubmitAnswer scores a player's answer to the current question. Late,
// duplicate, or over-quota submissions are dropped silently; the question
// always runs out its full timer regardless.
func (e *Engine) SubmitAnswer(roomID, userID, answer string) {
	m := e.room(roomID)
	if m == nil {
		log.Printf("answer for unknown room %s dropped", roomID)
		return
	}

	m.mu.Lock()
	q := m.current
	if m.phase != phasePlaying || q == nil || m.settled || !m.hasPlayer(userID) {
		m.mu.Unlock()
		return
	}
	if m.answered[userID] || len(m.answered) >= 2 {
		m.mu.Unlock()
		return
	}
	m.answered[userID] = true

	elapsed := e.now().Sub(m.questionStart).Seconds()
	correct := answer == q.Correct
	first := correct && m.firstCorrect == ""
	res := scoreAnswer(answerInput{
		Correct:      correct,
		TimeTaken:    elapsed,
		TimeLimit:    float64(q.TimeLimit),
		Difficulty:   q.Difficulty,
		Streak:       m.streaks[userID],
		FirstCorrect: first,
	})
	m.streaks[userID] = res.Streak
	m.scores[userID] += res.Delta
	if first {
		m.firstCorrect = userID
	}
	scores := m.scoresLocked()
	m.mu.Unlock()

	e.broadcast(m, Event{Type: "score-update", Payload: ScoreUpdatePayload{
		Scores: scores,
		LastAnswer: LastAnswer{
			Player:          userID,
			Correct:         correct,
			Delta:           res.Delta,
			ElapsedSeconds:  round1(elapsed),
			Streak:          res.Streak,
			WasFirstCorrect: first,
		},
	}})
}

// TimeExpiredAck acknowledges a client's local timer expiry. The server
// clock is authoritative, so this never advances the match; a late ack
// after cleanup is the expected case and is simply dropped.
func (e *Engine) TimeExpiredAck(roomID, userID string) {
	if m := e.room(roomID); m == nil || !m.hasPlayer(userID) {
		log.Printf("time-expired-ack for %s/%s dropped", roomID, userID)
	}
}

// Quit settles the match immediately with the opponent as winner.
func (e *Engine) Quit(roomID, userID string) {
	m := e.room(roomID)
	if m == nil || !m.hasPlayer(userID) {
		log.Printf("quit for %s/%s ignored", roomID, userID)
		return
	}
	e.settle(m, userID)
}

// Disconnected handles a dropped connection: dequeue if waiting, forfeit
// if in a match, otherwise nothing.
func (e *Engine) Disconnected(userID string) {
	e.mu.Lock()
	if e.queue.remove(userID) {
		e.mu.Unlock()
		log.Printf("%s disconnected while queued, removed", userID)
		return
	}
	var target *Match
	for _, m := range e.rooms {
		if m.hasPlayer(userID) {
			target = m
			break
		}
	}
	e.mu.Unlock()

	if target == nil {
		return
	}
	log.Printf("%s disconnected during match %s, forfeiting", userID, target.roomID)
	e.settle(target, userID)
}

// QueueLen reports the number of waiting players.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.len()
}

// ActiveRooms reports the number of live rooms.
func (e *Engine) ActiveRooms() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rooms)
}

func (e *Engine) room(roomID string) *Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms[roomID]
}

func (e *Engine) broadcast(m *Match, ev Event) {
	for _, p := range m.players {
		e.notifier.Send(p, ev)
	}
}

// runCountdown drives the synchronized 3-2-1 sequence, then enters play
// and serves the first question after the start delay. The seq snapshot
// aborts the sequence if the room settles mid-countdown.
func (e *Engine) runCountdown(m *Match, seq uint64) {
	for n := e.rules.CountdownFrom; n >= 1; n-- {
		if !m.timerCurrent(seq) {
			return
		}
		e.broadcast(m, Event{Type: "countdown-tick", Payload: CountdownPayload{Count: n}})
		time.Sleep(e.rules.CountdownInterval)
	}
	if !m.timerCurrent(seq) {
		return
	}

	m.mu.Lock()
	m.phase = phasePlaying
	m.startTime = e.now()
	scores := m.scoresLocked()
	m.mu.Unlock()

	e.broadcast(m, Event{Type: "countdown-tick", Payload: CountdownPayload{Count: 0}})
	e.broadcast(m, Event{Type: "match-started", Payload: MatchStartedPayload{
		Players: []string{m.players[0], m.players[1]},
		Scores:  scores,
	}})

	time.Sleep(e.rules.StartDelay)
	e.nextQuestion(m)
}

// nextQuestion advances the question sequence: settles after the last
// question, otherwise fetches an unused question and starts its clock.
func (e *Engine) nextQuestion(m *Match) {
	m.mu.Lock()
	if m.phase != phasePlaying || m.settled {
		m.mu.Unlock()
		return
	}
	m.questionNumber++
	if m.questionNumber > e.rules.QuestionsPerMatch {
		m.mu.Unlock()
		e.settle(m, "")
		return
	}
	num := m.questionNumber
	exclude := append([]string(nil), m.usedIDs...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	q, err := e.supply.GetQuestion(ctx, m.settings.Category, m.settings.Difficulty, exclude)
	cancel()
	if err != nil {
		log.Printf("room %s question %d: supply failed: %v", m.roomID, num, err)
		e.broadcast(m, Event{Type: "fatal-error", Payload: FatalErrorPayload{
			Message: "no question available, the match cannot continue",
		}})
		return
	}

	m.mu.Lock()
	if m.phase != phasePlaying || m.settled || m.questionNumber != num {
		m.mu.Unlock()
		return
	}
	if q.ID != "" {
		m.usedIDs = append(m.usedIDs, q.ID)
	}
	if m.settings.TimePerQuestion == 0 {
		m.settings.TimePerQuestion = q.TimeLimit
	}
	m.current = &q
	m.questionStart = e.now()
	m.answered = make(map[string]bool, 2)
	m.firstCorrect = ""
	seq := m.bumpTimerLocked()
	m.mu.Unlock()

	e.broadcast(m, Event{Type: "question", Payload: QuestionPayload{
		Number:     num,
		Text:       q.Text,
		Options:    q.Options,
		TimeLimit:  q.TimeLimit,
		Category:   q.Category,
		Difficulty: q.Difficulty,
	}})

	go e.runQuestionClock(m, seq, q.TimeLimit)
}

// runQuestionClock ticks down the question's time limit, broadcasting the
// remaining time each tick. Each tick logically spends 0.1s of the limit,
// so tests can compress wall time via Rules.TickInterval. When the clock
// hits zero the match advances after the transition delay, whether or not
// either player answered.
func (e *Engine) runQuestionClock(m *Match, seq uint64, limitSeconds int) {
	remaining := float64(limitSeconds)
	ticker := time.NewTicker(e.rules.TickInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !m.timerCurrent(seq) {
			return
		}
		remaining -= 0.1
		if remaining <= 0 {
			e.broadcast(m, Event{Type: "timer-tick", Payload: TimerTickPayload{RemainingSeconds: 0}})
			break
		}
		e.broadcast(m, Event{Type: "timer-tick", Payload: TimerTickPayload{RemainingSeconds: round1(remaining)}})
	}

	if !m.timerCurrent(seq) {
		return
	}
	time.Sleep(e.rules.TransitionDelay)
	if !m.timerCurrent(seq) {
		return
	}
	e.nextQuestion(m)
}
