package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictory-labs/predictory/internal/domain"
)

// UserStore projects user stake balances into PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Upsert inserts or updates a user projection row.
func (s *UserStore) Upsert(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (owner, name, stake, locked_stake, trust_level, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (owner) DO UPDATE SET
			name         = EXCLUDED.name,
			stake        = EXCLUDED.stake,
			locked_stake = EXCLUDED.locked_stake,
			trust_level  = EXCLUDED.trust_level,
			updated_at   = NOW()`

	_, err := s.pool.Exec(ctx, query,
		u.Owner.String(), domain.TrimText(u.Name[:]),
		u.Stake, u.LockedStake, u.TrustLevel,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert user %s: %w", u.Owner, err)
	}
	return nil
}

// UpsertBatch writes many user rows in one round trip.
func (s *UserStore) UpsertBatch(ctx context.Context, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}

	const query = `
		INSERT INTO users (owner, name, stake, locked_stake, trust_level, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (owner) DO UPDATE SET
			name         = EXCLUDED.name,
			stake        = EXCLUDED.stake,
			locked_stake = EXCLUDED.locked_stake,
			trust_level  = EXCLUDED.trust_level,
			updated_at   = NOW()`

	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(query,
			u.Owner.String(), domain.TrimText(u.Name[:]),
			u.Stake, u.LockedStake, u.TrustLevel,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range users {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: batch upsert users: %w", err)
		}
	}
	return nil
}
