package app

import (
	"testing"
	"time"
)

func now0() time.Time { return time.Unix(0, 0) }

func TestRoomKeyIsOrderIndependent(t *testing.T) {
	if RoomKey("alice", "bob") != RoomKey("bob", "alice") {
		t.Fatalf("room key must not depend on join order")
	}
	if got := RoomKey("bob", "alice"); got != "match_alice_bob" {
		t.Fatalf("expected match_alice_bob, got %s", got)
	}
}

func TestTimerSnapshotInvalidation(t *testing.T) {
	m := newMatch("match_a_b", entry("a", now0()), entry("b", now0()), 10, now0())

	m.mu.Lock()
	seq := m.bumpTimerLocked()
	m.mu.Unlock()
	if !m.timerCurrent(seq) {
		t.Fatalf("fresh timer should be current")
	}

	m.mu.Lock()
	next := m.bumpTimerLocked()
	m.mu.Unlock()
	if m.timerCurrent(seq) {
		t.Fatalf("superseded timer must never fire")
	}
	if !m.timerCurrent(next) {
		t.Fatalf("new timer should be current")
	}

	m.mu.Lock()
	m.settled = true
	m.mu.Unlock()
	if m.timerCurrent(next) {
		t.Fatalf("no timer may fire after settlement")
	}
}
