package memory

import (
	"sync"
	"time"
)

// GraceSet tracks recently settled rooms so a duplicate terminal trigger
// inside the window is suppressed.
type GraceSet struct {
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	settled map[string]time.Time
}

func NewGraceSet(window time.Duration) *GraceSet {
	return &GraceSet{
		window:  window,
		clock:   time.Now,
		settled: make(map[string]time.Time),
	}
}

// MarkSettled records the room as settled. Returns false if the room was
// already marked within the grace window.
func (g *GraceSet) MarkSettled(roomID string) bool {
	now := g.clock()
	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.settled[roomID]; ok && now.Sub(at) < g.window {
		return false
	}
	g.settled[roomID] = now

	// Drop expired markers so the map does not grow unbounded.
	for id, at := range g.settled {
		if now.Sub(at) >= g.window {
			delete(g.settled, id)
		}
	}
	return true
}
