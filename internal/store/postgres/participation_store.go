package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictory-labs/predictory/internal/domain"
)

// ParticipationStore projects per-voter positions into PostgreSQL.
type ParticipationStore struct {
	pool *pgxpool.Pool
}

// NewParticipationStore creates a new ParticipationStore backed by the given
// connection pool.
func NewParticipationStore(pool *pgxpool.Pool) *ParticipationStore {
	return &ParticipationStore{pool: pool}
}

// Upsert inserts or updates a participation projection row.
func (s *ParticipationStore) Upsert(ctx context.Context, p domain.Participation) error {
	const query = `
		INSERT INTO participations (event_id, payer, option, deposited_amount, is_claimed, appealed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (event_id, payer) DO UPDATE SET
			option           = EXCLUDED.option,
			deposited_amount = EXCLUDED.deposited_amount,
			is_claimed       = EXCLUDED.is_claimed,
			appealed         = EXCLUDED.appealed,
			updated_at       = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.EventID.String(), p.Payer.String(), int16(p.Option),
		p.DepositedAmount, p.IsClaimed, p.Appealed,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert participation %s/%s: %w", p.EventID, p.Payer, err)
	}
	return nil
}

// UpsertBatch writes many participation rows in one round trip.
func (s *ParticipationStore) UpsertBatch(ctx context.Context, parts []domain.Participation) error {
	if len(parts) == 0 {
		return nil
	}

	const query = `
		INSERT INTO participations (event_id, payer, option, deposited_amount, is_claimed, appealed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (event_id, payer) DO UPDATE SET
			option           = EXCLUDED.option,
			deposited_amount = EXCLUDED.deposited_amount,
			is_claimed       = EXCLUDED.is_claimed,
			appealed         = EXCLUDED.appealed,
			updated_at       = NOW()`

	batch := &pgx.Batch{}
	for _, p := range parts {
		batch.Queue(query,
			p.EventID.String(), p.Payer.String(), int16(p.Option),
			p.DepositedAmount, p.IsClaimed, p.Appealed,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range parts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: batch upsert participations: %w", err)
		}
	}
	return nil
}
