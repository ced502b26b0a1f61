package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/engine"
)

// ReceiptRow is a persisted instruction receipt.
type ReceiptRow struct {
	ID          int64
	Instruction string
	UnixTime    int64
	EventID     *domain.EventID
	Credits     []engine.Credit
}

// ReceiptStore is an append-only audit log of applied instructions.
type ReceiptStore struct {
	pool *pgxpool.Pool
}

// NewReceiptStore creates a new ReceiptStore backed by the given connection
// pool.
func NewReceiptStore(pool *pgxpool.Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Insert appends a receipt to the audit log.
func (s *ReceiptStore) Insert(ctx context.Context, rcp *engine.Receipt) error {
	credits, err := json.Marshal(rcp.Credits)
	if err != nil {
		return fmt.Errorf("postgres: marshal receipt credits: %w", err)
	}

	var eventID *string
	if rcp.EventID != nil {
		v := rcp.EventID.String()
		eventID = &v
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO receipts (instruction, unix_time, event_id, credits)
		VALUES ($1, $2, $3, $4)`,
		rcp.Instruction, rcp.UnixTime, eventID, credits,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert receipt %s: %w", rcp.Instruction, err)
	}
	return nil
}

// ListByEvent returns the receipts recorded against one event, oldest first.
func (s *ReceiptStore) ListByEvent(ctx context.Context, id domain.EventID, limit int) ([]ReceiptRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, instruction, unix_time, event_id, credits
		FROM receipts WHERE event_id = $1
		ORDER BY id LIMIT $2`,
		id.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts for %s: %w", id, err)
	}
	defer rows.Close()
	return scanReceipts(rows)
}

// ListRecent returns the newest receipts across all events, newest first.
func (s *ReceiptStore) ListRecent(ctx context.Context, limit int) ([]ReceiptRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, instruction, unix_time, event_id, credits
		FROM receipts ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent receipts: %w", err)
	}
	defer rows.Close()
	return scanReceipts(rows)
}

func scanReceipts(rows pgx.Rows) ([]ReceiptRow, error) {
	var out []ReceiptRow
	for rows.Next() {
		var (
			row     ReceiptRow
			rawID   *string
			credits []byte
		)
		if err := rows.Scan(&row.ID, &row.Instruction, &row.UnixTime, &rawID, &credits); err != nil {
			return nil, fmt.Errorf("postgres: scan receipt: %w", err)
		}
		if rawID != nil {
			id, err := domain.ParseEventID(*rawID)
			if err != nil {
				return nil, err
			}
			row.EventID = &id
		}
		if len(credits) > 0 {
			if err := json.Unmarshal(credits, &row.Credits); err != nil {
				return nil, fmt.Errorf("postgres: decode receipt credits: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
