package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// GraceSet implements the settlement grace window as SETNX keys with a
// TTL, so the suppression also holds across instances sharing the Redis.
type GraceSet struct {
	client *redis.Client
	window time.Duration
}

func NewGraceSet(client *redis.Client, window time.Duration) *GraceSet {
	return &GraceSet{client: client, window: window}
}

// MarkSettled returns false if the room settled within the grace window.
// On Redis failure it errs on the side of settling: losing dedup is less
// harmful than dropping a legitimate settlement.
func (g *GraceSet) MarkSettled(roomID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := g.client.SetNX(ctx, g.key(roomID), "1", g.window).Result()
	if err != nil {
		return true
	}
	return ok
}

func (g *GraceSet) key(roomID string) string {
	return "match:settled:" + roomID
}
