package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"trivia-arena/internal/app"
	"trivia-arena/internal/domain"
	"trivia-arena/internal/infra/memory"
)

// captureNotifier records every event per player for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	events map[string][]app.Event
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{events: make(map[string][]app.Event)}
}

func (n *captureNotifier) Send(userID string, ev app.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[userID] = append(n.events[userID], ev)
}

func (n *captureNotifier) count(userID, typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events[userID] {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

func (n *captureNotifier) last(userID, typ string) (app.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events[userID]) - 1; i >= 0; i-- {
		if n.events[userID][i].Type == typ {
			return n.events[userID][i], true
		}
	}
	return app.Event{}, false
}

func (n *captureNotifier) all(userID, typ string) []app.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []app.Event
	for _, ev := range n.events[userID] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// testRules compresses every delay so a full match runs in milliseconds.
// Each clock tick still spends 0.1s of a question's time limit.
func testRules() app.Rules {
	r := app.DefaultRules()
	r.QuestionsPerMatch = 2
	r.CountdownFrom = 1
	r.CountdownInterval = time.Millisecond
	r.StartDelay = time.Millisecond
	r.TransitionDelay = time.Millisecond
	r.TickInterval = time.Millisecond
	return r
}

func testQuestions() []domain.Question {
	texts := []struct{ id, text, correct string }{
		{"tq1", "What is 2 + 2?", "4"},
		{"tq2", "What is 3 + 3?", "6"},
		{"tq3", "What is 4 + 4?", "8"},
	}
	out := make([]domain.Question, 0, len(texts))
	for _, q := range texts {
		out = append(out, domain.Question{
			ID:         q.id,
			Text:       q.text,
			Options:    []string{"1", q.correct, "2", "3"},
			Correct:    q.correct,
			TimeLimit:  1,
			Category:   "General",
			Difficulty: domain.DifficultyEasy,
			Active:     true,
		})
	}
	return out
}

type testEnv struct {
	engine   *app.Engine
	notifier *captureNotifier
	profiles *memory.ProfileStore
}

func newTestEnv(t *testing.T, rules app.Rules, questions []domain.Question) *testEnv {
	t.Helper()
	notifier := newCaptureNotifier()
	profiles := memory.NewProfileStore()
	supply := memory.NewQuestionSupply(memory.NewStaticQuestionLoader(questions), time.Minute)
	engine := app.NewEngine(supply, profiles, notifier, memory.NewGraceSet(rules.GraceWindow), rules)
	return &testEnv{engine: engine, notifier: notifier, profiles: profiles}
}

func (env *testEnv) pairAndStart(t *testing.T, a, b string) string {
	t.Helper()
	env.engine.JoinQueue(a, "", "")
	env.engine.JoinQueue(b, "", "")

	room := app.RoomKey(a, b)
	ev, ok := env.notifier.last(a, "paired")
	if !ok {
		t.Fatalf("expected paired event for %s", a)
	}
	if got := ev.Payload.(app.PairedPayload).Room; got != room {
		t.Fatalf("expected room %s, got %s", room, got)
	}

	env.engine.JoinRoom(room, a)
	env.engine.JoinRoom(room, b)
	waitFor(t, func() bool {
		return env.notifier.count(a, "match-started") > 0 &&
			env.notifier.count(b, "match-started") > 0
	}, "match start")
	return room
}

func TestQueuePositionUnicastWhileWaiting(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.engine.JoinQueue("u1", "", "")

	ev, ok := env.notifier.last("u1", "queue-position")
	if !ok {
		t.Fatalf("expected queue-position for a lone waiter")
	}
	if pos := ev.Payload.(app.QueuePositionPayload).Position; pos != 1 {
		t.Fatalf("expected position 1, got %d", pos)
	}
	if env.engine.QueueLen() != 1 {
		t.Fatalf("expected one waiting player")
	}
}

func TestPairingCreatesDeterministicRoom(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.engine.JoinQueue("bob", "", "")
	env.engine.JoinQueue("alice", "", "")

	ev, ok := env.notifier.last("bob", "paired")
	if !ok {
		t.Fatalf("expected paired event")
	}
	if room := ev.Payload.(app.PairedPayload).Room; room != "match_alice_bob" {
		t.Fatalf("expected match_alice_bob regardless of join order, got %s", room)
	}
	if env.engine.ActiveRooms() != 1 || env.engine.QueueLen() != 0 {
		t.Fatalf("expected one room and empty queue")
	}
}

func TestNoDuplicateRoomForActivePair(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.engine.JoinQueue("u1", "", "")
	env.engine.JoinQueue("u2", "", "")
	if env.engine.ActiveRooms() != 1 {
		t.Fatalf("expected one active room")
	}

	// Both players try to queue again while their room is live.
	env.engine.JoinQueue("u1", "", "")
	env.engine.JoinQueue("u2", "", "")
	if env.engine.ActiveRooms() != 1 {
		t.Fatalf("expected still one active room, got %d", env.engine.ActiveRooms())
	}
	if env.engine.QueueLen() != 0 {
		t.Fatalf("players in a match must not occupy queue slots")
	}
}

func TestCountdownBroadcastToBothPlayers(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.pairAndStart(t, "u1", "u2")

	for _, u := range []string{"u1", "u2"} {
		if env.notifier.count(u, "countdown-tick") < 2 { // 1 ... 0
			t.Fatalf("expected countdown ticks for %s", u)
		}
	}
}

func TestRepeatedJoinRoomDoesNotRestartCountdown(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	room := env.pairAndStart(t, "u1", "u2")

	env.engine.JoinRoom(room, "u1")
	env.engine.JoinRoom(room, "u2")
	time.Sleep(20 * time.Millisecond)

	if got := env.notifier.count("u1", "match-started"); got != 1 {
		t.Fatalf("expected a single match start, got %d", got)
	}
}

func TestMatchRunsToDrawWithoutAnswers(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.pairAndStart(t, "u1", "u2")

	waitFor(t, func() bool {
		return env.notifier.count("u1", "match-ended") > 0
	}, "match end")

	ev, _ := env.notifier.last("u1", "match-ended")
	payload := ev.Payload.(app.MatchEndedPayload)
	if payload.Winner != "draw" {
		t.Fatalf("expected a draw, got %q", payload.Winner)
	}
	if payload.Earnings["u1"] != 8 || payload.Earnings["u2"] != 8 {
		t.Fatalf("expected draw earnings 8/8, got %+v", payload.Earnings)
	}

	// Both questions of the match must have been distinct.
	questions := env.notifier.all("u1", "question")
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	q1 := questions[0].Payload.(app.QuestionPayload)
	q2 := questions[1].Payload.(app.QuestionPayload)
	if q1.Text == q2.Text {
		t.Fatalf("question repeated within a match: %q", q1.Text)
	}

	waitFor(t, func() bool { return env.engine.ActiveRooms() == 0 }, "room reclaim")

	records := env.profiles.Matches()
	if len(records) != 1 {
		t.Fatalf("expected one match record, got %d", len(records))
	}
	if !records[0].Draw() {
		t.Fatalf("expected recorded draw, got winner %q", records[0].Winner)
	}
}

func TestAnswersScoreAndExtraSubmissionsDrop(t *testing.T) {
	rules := testRules()
	notifier := newCaptureNotifier()
	profiles := memory.NewProfileStore()
	// Long limits keep question 1 live for the whole test.
	questions := testQuestions()
	for i := range questions {
		questions[i].TimeLimit = 60
	}
	supply := memory.NewQuestionSupply(memory.NewStaticQuestionLoader(questions), time.Minute)
	// Frozen clock: every answer arrives at elapsed 0s, bonus = full limit.
	frozen := time.Unix(1700000000, 0)
	engine := app.NewEngineWithClock(supply, profiles, notifier, memory.NewGraceSet(rules.GraceWindow), rules, func() time.Time { return frozen })
	env := &testEnv{engine: engine, notifier: notifier, profiles: profiles}

	room := env.pairAndStart(t, "u1", "u2")

	waitFor(t, func() bool { return notifier.count("u1", "question") > 0 }, "first question")
	ev, _ := notifier.last("u1", "question")
	q := ev.Payload.(app.QuestionPayload)
	correct := correctFor(questions, q.Text)

	engine.SubmitAnswer(room, "u1", correct)
	engine.SubmitAnswer(room, "u2", "definitely wrong")
	engine.SubmitAnswer(room, "u1", correct) // duplicate, dropped
	engine.SubmitAnswer(room, "u2", correct) // quota filled, dropped

	updates := notifier.all("u1", "score-update")
	if len(updates) != 2 {
		t.Fatalf("expected exactly 2 score updates, got %d", len(updates))
	}

	first := updates[0].Payload.(app.ScoreUpdatePayload)
	if !first.LastAnswer.WasFirstCorrect || first.LastAnswer.Player != "u1" {
		t.Fatalf("expected u1 first-correct, got %+v", first.LastAnswer)
	}
	// timeLimit 60s, elapsed 0: base = 100 + 60*10 = 700
	if first.LastAnswer.Delta != 700 {
		t.Fatalf("expected delta 700, got %d", first.LastAnswer.Delta)
	}
	if first.LastAnswer.Streak != 1 {
		t.Fatalf("expected streak 1, got %d", first.LastAnswer.Streak)
	}

	second := updates[1].Payload.(app.ScoreUpdatePayload)
	if second.LastAnswer.Correct || second.LastAnswer.Delta != 0 || second.LastAnswer.Streak != 0 {
		t.Fatalf("expected scoreless incorrect answer, got %+v", second.LastAnswer)
	}
	if second.Scores["u1"] != 700 || second.Scores["u2"] != 0 {
		t.Fatalf("unexpected scores %+v", second.Scores)
	}
}

func TestQuitForcesOpponentWin(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	room := env.pairAndStart(t, "u1", "u2")

	env.engine.Quit(room, "u1")

	ev, ok := env.notifier.last("u2", "match-ended")
	if !ok {
		t.Fatalf("expected match-ended broadcast")
	}
	payload := ev.Payload.(app.MatchEndedPayload)
	if payload.Winner != "u2" {
		t.Fatalf("quit must hand the win to the opponent, got %q", payload.Winner)
	}
	if payload.QuitBy != "u1" {
		t.Fatalf("expected quitBy u1, got %q", payload.QuitBy)
	}
	if payload.Earnings["u1"] != 0 || payload.Earnings["u2"] != 16 {
		t.Fatalf("expected earnings 0/16, got %+v", payload.Earnings)
	}

	if env.engine.ActiveRooms() != 0 {
		t.Fatalf("expected room reclaimed after quit")
	}

	winner, ok := env.profiles.Profile("u2")
	if !ok || winner.MatchesWon != 1 || winner.TotalEarnings != 16 {
		t.Fatalf("expected winner aggregates applied, got %+v", winner)
	}
	quitter, ok := env.profiles.Profile("u1")
	if !ok || quitter.MatchesWon != 0 || quitter.TotalEarnings != 0 {
		t.Fatalf("expected quitter aggregates applied, got %+v", quitter)
	}

	// No stale timer may advance a settled match.
	before := env.notifier.count("u1", "question")
	time.Sleep(30 * time.Millisecond)
	if after := env.notifier.count("u1", "question"); after != before {
		t.Fatalf("question served after settlement")
	}
}

func TestSettlementHappensExactlyOnce(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	room := env.pairAndStart(t, "u1", "u2")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.engine.Quit(room, "u1")
		}()
	}
	wg.Wait()

	if got := len(env.profiles.Matches()); got != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", got)
	}
	p, _ := env.profiles.Profile("u2")
	if p.MatchesPlayed != 1 {
		t.Fatalf("expected one profile update, got %d", p.MatchesPlayed)
	}
	if got := env.notifier.count("u1", "match-ended"); got != 1 {
		t.Fatalf("expected a single match-ended broadcast, got %d", got)
	}
}

func TestDisconnectWhileQueuedRemovesEntry(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.engine.JoinQueue("u1", "", "")
	env.engine.Disconnected("u1")
	if env.engine.QueueLen() != 0 {
		t.Fatalf("expected queue entry removed on disconnect")
	}
}

func TestDisconnectDuringMatchForfeits(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.pairAndStart(t, "u1", "u2")

	env.engine.Disconnected("u2")

	ev, ok := env.notifier.last("u1", "match-ended")
	if !ok {
		t.Fatalf("expected match-ended after disconnect")
	}
	payload := ev.Payload.(app.MatchEndedPayload)
	if payload.Winner != "u1" || payload.QuitBy != "u2" {
		t.Fatalf("expected u1 to win by forfeit, got %+v", payload)
	}
}

func TestDisconnectWhileIdleIsNoop(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.engine.Disconnected("stranger")
	if len(env.profiles.Matches()) != 0 || env.engine.ActiveRooms() != 0 {
		t.Fatalf("idle disconnect must not touch any state")
	}
}

func TestLeaveQueueRemovesEntry(t *testing.T) {
	env := newTestEnv(t, testRules(), testQuestions())
	env.engine.JoinQueue("u1", "", "")
	env.engine.LeaveQueue("u1")
	if env.engine.QueueLen() != 0 {
		t.Fatalf("expected empty queue after leave")
	}
}

type exhaustedSupply struct{}

func (exhaustedSupply) GetQuestion(context.Context, string, domain.Difficulty, []string) (domain.Question, error) {
	return domain.Question{}, domain.ErrNoQuestionAvailable
}

func (exhaustedSupply) MarkConsumed(context.Context, []string) error { return nil }

func TestSupplyExhaustionSurfacesFatalError(t *testing.T) {
	rules := testRules()
	notifier := newCaptureNotifier()
	profiles := memory.NewProfileStore()
	engine := app.NewEngine(exhaustedSupply{}, profiles, notifier, memory.NewGraceSet(rules.GraceWindow), rules)
	env := &testEnv{engine: engine, notifier: notifier, profiles: profiles}

	room := env.pairAndStart(t, "u1", "u2")

	waitFor(t, func() bool {
		return notifier.count("u1", "fatal-error") > 0 && notifier.count("u2", "fatal-error") > 0
	}, "fatal error broadcast")

	// The match does not crash: a quit still settles it cleanly.
	engine.Quit(room, "u2")
	ev, ok := notifier.last("u1", "match-ended")
	if !ok {
		t.Fatalf("expected settlement after fatal error")
	}
	if ev.Payload.(app.MatchEndedPayload).Winner != "u1" {
		t.Fatalf("expected u1 to win after u2 quit")
	}
}

func correctFor(questions []domain.Question, text string) string {
	for _, q := range questions {
		if q.Text == text {
			return q.Correct
		}
	}
	return ""
}
