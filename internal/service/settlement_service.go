// Package service coordinates the settlement engine, its read-side
// projections, and the receipt fan-out.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/predictory-labs/predictory/internal/cache/redis"
	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/engine"
	"github.com/predictory-labs/predictory/internal/status"
)

// Receipt bus destinations. Every applied instruction is published on the
// pub/sub channel for live subscribers and appended to the stream for the
// projector.
const (
	ReceiptChannel = "receipts"
	ReceiptStream  = "stream:receipts"
)

// SettlementService applies instructions to the engine and serves ledger
// reads, with an optional snapshot cache in front of event lookups.
type SettlementService struct {
	eng    *engine.Engine
	reader *client.Reader
	cache  *redis.EventCache
	bus    *redis.SignalBus
	logger *slog.Logger
}

// NewSettlementService creates a SettlementService. Cache and bus may be nil;
// reads then go straight to the ledger and receipts are not fanned out.
func NewSettlementService(
	eng *engine.Engine,
	reader *client.Reader,
	cache *redis.EventCache,
	bus *redis.SignalBus,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		eng:    eng,
		reader: reader,
		cache:  cache,
		bus:    bus,
		logger: logger,
	}
}

// Submit applies one built operation to the engine. On success the receipt is
// published to the bus and any cached snapshot of the touched event is
// invalidated.
func (s *SettlementService) Submit(ctx context.Context, op client.Operation) (*engine.Receipt, error) {
	rcp, err := client.Execute(s.eng, op)
	if err != nil {
		return nil, fmt.Errorf("service: submit %s: %w", op.Instruction, err)
	}

	if s.cache != nil && rcp.EventID != nil {
		if cacheErr := s.cache.Invalidate(ctx, *rcp.EventID); cacheErr != nil {
			s.logger.WarnContext(ctx, "service: cache invalidate failed",
				slog.String("event_id", rcp.EventID.String()),
				slog.String("error", cacheErr.Error()),
			)
			// Non-fatal: the cache entry expires on its own.
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(rcp)
		if err != nil {
			return rcp, fmt.Errorf("service: marshal receipt: %w", err)
		}
		if err := s.bus.Publish(ctx, ReceiptChannel, payload); err != nil {
			s.logger.WarnContext(ctx, "service: receipt publish failed",
				slog.String("error", err.Error()),
			)
		}
		if err := s.bus.StreamAppend(ctx, ReceiptStream, payload); err != nil {
			return rcp, fmt.Errorf("service: receipt stream append: %w", err)
		}
	}

	return rcp, nil
}

// State returns the protocol configuration singleton.
func (s *SettlementService) State(ctx context.Context) (domain.ContractState, error) {
	return s.reader.ContractState()
}

// User returns the stake record of one wallet.
func (s *SettlementService) User(ctx context.Context, owner domain.PublicKey) (domain.User, error) {
	return s.reader.User(owner)
}

// Users returns every user record.
func (s *SettlementService) Users(ctx context.Context) ([]domain.User, error) {
	return s.reader.Users()
}

// EventSummary pairs an event with its display name and lifecycle phase.
type EventSummary struct {
	Event domain.Event `json:"event"`
	Name  string       `json:"name"`
	Phase status.Phase `json:"phase"`
}

// Events lists all events with their current phase. When phase is non-empty
// only events in that phase are returned.
func (s *SettlementService) Events(ctx context.Context, phase string) ([]EventSummary, error) {
	events, err := s.reader.Events()
	if err != nil {
		return nil, fmt.Errorf("service: list events: %w", err)
	}

	now := s.eng.Now().Unix()
	out := make([]EventSummary, 0, len(events))
	for _, ev := range events {
		p := status.Of(now, ev.StartDate, ev.EndDate, ev.ParticipationDeadline, ev.Canceled, ev.Result)
		if phase != "" && p.String() != phase {
			continue
		}
		name := ""
		if meta, err := s.reader.EventMeta(ev.ID); err == nil {
			name = domain.TrimText(meta.Name[:])
		}
		out = append(out, EventSummary{Event: ev, Name: name, Phase: p})
	}
	return out, nil
}

// Snapshot returns the full read-model of one event, checking the cache first
// and falling back to the ledger on a miss.
func (s *SettlementService) Snapshot(ctx context.Context, id domain.EventID) (client.EventSnapshot, error) {
	if s.cache != nil {
		if snap, err := s.cache.Get(ctx, id); err == nil {
			return snap, nil
		}
	}

	snap, err := s.reader.Snapshot(id)
	if err != nil {
		return client.EventSnapshot{}, err
	}

	// Back-fill the cache; log but do not fail on cache write errors.
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, snap); cacheErr != nil {
			s.logger.WarnContext(ctx, "service: cache set failed",
				slog.String("event_id", id.String()),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return snap, nil
}

// Participation returns one wallet's position in an event.
func (s *SettlementService) Participation(ctx context.Context, id domain.EventID, payer domain.PublicKey) (domain.Participation, error) {
	return s.reader.Participation(id, payer)
}

// UserParticipations returns every position held by one wallet.
func (s *SettlementService) UserParticipations(ctx context.Context, owner domain.PublicKey) ([]domain.Participation, error) {
	all, err := s.reader.Participations()
	if err != nil {
		return nil, fmt.Errorf("service: list participations: %w", err)
	}
	var out []domain.Participation
	for _, p := range all {
		if p.Payer == owner {
			out = append(out, p)
		}
	}
	return out, nil
}

// Appeal returns the dispute aggregate of an event, or domain.ErrNotFound
// when nobody has appealed.
func (s *SettlementService) Appeal(ctx context.Context, id domain.EventID) (domain.Appellation, error) {
	return s.reader.Appeal(id)
}
