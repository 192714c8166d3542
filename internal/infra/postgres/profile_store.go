package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-arena/internal/domain"
)

// ProfileStore persists match records and per-player aggregates in Postgres.
type ProfileStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool, clock: time.Now}
}

func (s *ProfileStore) RecordMatch(ctx context.Context, rec domain.MatchRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal match record: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO matches (id, data) VALUES ($1, $2::jsonb) ON CONFLICT (id) DO NOTHING`,
		rec.ID, string(data))
	if err != nil {
		return "", fmt.Errorf("insert match: %w", err)
	}
	return rec.ID, nil
}

// ApplyOutcome folds a match outcome into the user's profile row. The
// aggregate arithmetic lives on domain.Profile so the in-memory store
// computes identically.
func (s *ProfileStore) ApplyOutcome(ctx context.Context, userID string, out domain.Outcome) error {
	profile := domain.Profile{UserID: userID, Tier: domain.TierForWins(0)}

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM profiles WHERE user_id=$1`, userID).Scan(&raw)
	switch {
	case err == pgx.ErrNoRows:
		// first match for this user
	case err != nil:
		return fmt.Errorf("load profile: %w", err)
	default:
		if err := json.Unmarshal(raw, &profile); err != nil {
			return fmt.Errorf("unmarshal profile: %w", err)
		}
	}

	profile.Apply(out, s.clock())

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (user_id) DO UPDATE SET data=EXCLUDED.data`,
		userID, string(data))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// LoadProfile returns the stored aggregates for a user.
func (s *ProfileStore) LoadProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM profiles WHERE user_id=$1`, userID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	var p domain.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Profile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return p, nil
}
