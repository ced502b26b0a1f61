package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/status"
)

// EventRow is the projected view of an event joined with its metadata.
type EventRow struct {
	Event       domain.Event
	Name        string
	Description string
	IsPrivate   bool
	Phase       status.Phase
	ArchivedAt  *time.Time
}

// EventStore projects events, their options, and dispute aggregates into
// PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Upsert inserts or updates an event projection row.
func (s *EventStore) Upsert(ctx context.Context, row EventRow) error {
	const query = `
		INSERT INTO events (
			id, authority, name, description, is_private,
			stake, start_date, end_date, participation_deadline,
			option_count, participation_count, total_amount, total_trust,
			canceled, result, phase, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			authority              = EXCLUDED.authority,
			name                   = EXCLUDED.name,
			description            = EXCLUDED.description,
			is_private             = EXCLUDED.is_private,
			stake                  = EXCLUDED.stake,
			start_date             = EXCLUDED.start_date,
			end_date               = EXCLUDED.end_date,
			participation_deadline = EXCLUDED.participation_deadline,
			option_count           = EXCLUDED.option_count,
			participation_count    = EXCLUDED.participation_count,
			total_amount           = EXCLUDED.total_amount,
			total_trust            = EXCLUDED.total_trust,
			canceled               = EXCLUDED.canceled,
			result                 = EXCLUDED.result,
			phase                  = EXCLUDED.phase,
			updated_at             = NOW()`

	ev := row.Event
	var result *int16
	if ev.Result != nil {
		v := int16(*ev.Result)
		result = &v
	}
	_, err := s.pool.Exec(ctx, query,
		ev.ID.String(), ev.Authority.String(), row.Name, row.Description, row.IsPrivate,
		ev.Stake, ev.StartDate, ev.EndDate, ev.ParticipationDeadline,
		int16(ev.OptionCount), ev.ParticipationCount, ev.TotalAmount, ev.TotalTrust,
		ev.Canceled, result, row.Phase.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert event %s: %w", ev.ID, err)
	}
	return nil
}

// UpsertOption inserts or updates one outcome option row.
func (s *EventStore) UpsertOption(ctx context.Context, opt domain.EventOption) error {
	const query = `
		INSERT INTO event_options (event_id, index, description, votes, vault_balance, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (event_id, index) DO UPDATE SET
			description   = EXCLUDED.description,
			votes         = EXCLUDED.votes,
			vault_balance = EXCLUDED.vault_balance,
			updated_at    = NOW()`

	_, err := s.pool.Exec(ctx, query,
		opt.EventID.String(), int16(opt.Index), domain.TrimText(opt.Description[:]),
		opt.Votes, opt.VaultBalance,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert option %s/%d: %w", opt.EventID, opt.Index, err)
	}
	return nil
}

// UpsertAppeal inserts or updates the dispute aggregate of an event.
func (s *EventStore) UpsertAppeal(ctx context.Context, a domain.Appellation) error {
	const query = `
		INSERT INTO appeals (event_id, disagree_count, disagree_trust_level, disagree_volume, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			disagree_count       = EXCLUDED.disagree_count,
			disagree_trust_level = EXCLUDED.disagree_trust_level,
			disagree_volume      = EXCLUDED.disagree_volume,
			updated_at           = NOW()`

	_, err := s.pool.Exec(ctx, query,
		a.EventID.String(), a.DisagreeCount, a.DisagreeTrustLevel, a.DisagreeVolume,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert appeal %s: %w", a.EventID, err)
	}
	return nil
}

// MarkArchived stamps the archive time on an event row.
func (s *EventStore) MarkArchived(ctx context.Context, id domain.EventID) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE events SET archived_at = NOW() WHERE id = $1", id.String())
	if err != nil {
		return fmt.Errorf("postgres: mark event %s archived: %w", id, err)
	}
	return nil
}

// ListUnarchivedSettled returns ids of events that reached a terminal state
// (result posted or canceled) and have not yet been archived.
func (s *EventStore) ListUnarchivedSettled(ctx context.Context) ([]domain.EventID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM events
		WHERE archived_at IS NULL AND (canceled OR result IS NOT NULL)
		ORDER BY end_date`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unarchived settled events: %w", err)
	}
	defer rows.Close()

	var out []domain.EventID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan settled event id: %w", err)
		}
		id, err := domain.ParseEventID(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
