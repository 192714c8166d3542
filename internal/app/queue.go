package app

import (
	"time"

	"trivia-arena/internal/domain"
)

// queueEntry is one waiting player. A player holds at most one slot;
// re-enqueueing replaces the prior entry in place.
type queueEntry struct {
	userID     string
	category   string
	difficulty domain.Difficulty
	enqueuedAt time.Time
}

// waitQueue is an insertion-ordered matchmaking pool. It is not safe for
// concurrent use; the engine serializes access under its own mutex.
type waitQueue struct {
	entries []queueEntry
}

// upsert inserts the entry or replaces an existing one for the same user,
// keeping the original queue position on replace. Returns whether an entry
// was replaced and the 1-based position.
func (q *waitQueue) upsert(e queueEntry) (bool, int) {
	for i := range q.entries {
		if q.entries[i].userID == e.userID {
			e.enqueuedAt = q.entries[i].enqueuedAt
			q.entries[i] = e
			return true, i + 1
		}
	}
	q.entries = append(q.entries, e)
	return false, len(q.entries)
}

// remove drops the user's entry. No-op when absent.
func (q *waitQueue) remove(userID string) bool {
	for i := range q.entries {
		if q.entries[i].userID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// popPair removes and returns the two oldest entries.
func (q *waitQueue) popPair() (queueEntry, queueEntry, bool) {
	if len(q.entries) < 2 {
		return queueEntry{}, queueEntry{}, false
	}
	a, b := q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	return a, b, true
}

// pushFront returns a popped pair to the head of the queue, preserving
// their relative order.
func (q *waitQueue) pushFront(a, b queueEntry) {
	q.entries = append([]queueEntry{a, b}, q.entries...)
}

func (q *waitQueue) len() int {
	return len(q.entries)
}
