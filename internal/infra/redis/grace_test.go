package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestGraceSetKeysWithTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	grace := NewGraceSet(newClient(mr), 5*time.Second)

	if !grace.MarkSettled("match_a_b") {
		t.Fatalf("first settlement must pass")
	}
	if !mr.Exists("match:settled:match_a_b") {
		t.Fatalf("expected grace key set")
	}
	if grace.MarkSettled("match_a_b") {
		t.Fatalf("second settlement inside window must be suppressed")
	}

	mr.FastForward(6 * time.Second)
	if !grace.MarkSettled("match_a_b") {
		t.Fatalf("settlement after the window must pass again")
	}
}
