package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/predictory-labs/predictory/internal/blob/s3"
	"github.com/predictory-labs/predictory/internal/cache/redis"
	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/engine"
	"github.com/predictory-labs/predictory/internal/notify"
	"github.com/predictory-labs/predictory/internal/status"
	"github.com/predictory-labs/predictory/internal/store/postgres"
)

// streamBatchSize bounds how many receipts one stream read returns.
const streamBatchSize = 64

// archiveLockTTL bounds how long a single archive sweep may hold the
// cross-instance lock.
const archiveLockTTL = 5 * time.Minute

// Projector consumes instruction receipts from the bus and maintains the
// PostgreSQL projection, the snapshot cache, notifications, and the archive.
type Projector struct {
	reader   *client.Reader
	users    *postgres.UserStore
	events   *postgres.EventStore
	parts    *postgres.ParticipationStore
	receipts *postgres.ReceiptStore
	cache    *redis.EventCache
	bus      *redis.SignalBus
	locks    *redis.LockManager
	notifier *notify.Notifier
	archiver *s3blob.Archiver
	sweep    time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// ProjectorDeps bundles the projector's dependencies. Notifier and Archiver
// are optional; the corresponding steps are skipped when nil.
type ProjectorDeps struct {
	Reader   *client.Reader
	Users    *postgres.UserStore
	Events   *postgres.EventStore
	Parts    *postgres.ParticipationStore
	Receipts *postgres.ReceiptStore
	Cache    *redis.EventCache
	Bus      *redis.SignalBus
	Locks    *redis.LockManager
	Notifier *notify.Notifier
	Archiver *s3blob.Archiver
	Sweep    time.Duration
}

// NewProjector creates a Projector.
func NewProjector(deps ProjectorDeps, logger *slog.Logger) *Projector {
	return &Projector{
		reader:   deps.Reader,
		users:    deps.Users,
		events:   deps.Events,
		parts:    deps.Parts,
		receipts: deps.Receipts,
		cache:    deps.Cache,
		bus:      deps.Bus,
		locks:    deps.Locks,
		notifier: deps.Notifier,
		archiver: deps.Archiver,
		sweep:    deps.Sweep,
		logger:   logger.With(slog.String("component", "projector")),
		now:      time.Now,
	}
}

// Run tails the receipt stream and applies each receipt to the projection.
// It blocks until the context is cancelled.
func (p *Projector) Run(ctx context.Context) error {
	lastID := "0"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := p.bus.StreamRead(ctx, ReceiptStream, lastID, streamBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.ErrorContext(ctx, "stream read failed",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if len(msgs) == 0 {
			// XRead without BLOCK returns immediately when the stream is
			// drained; pause before polling again.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(250 * time.Millisecond):
			}
			continue
		}

		for _, msg := range msgs {
			var rcp engine.Receipt
			if err := json.Unmarshal(msg.Payload, &rcp); err != nil {
				p.logger.WarnContext(ctx, "skipping malformed receipt",
					slog.String("stream_id", msg.ID),
					slog.String("error", err.Error()),
				)
				lastID = msg.ID
				continue
			}
			if err := p.Apply(ctx, &rcp); err != nil {
				// Leave lastID untouched so the receipt is retried.
				p.logger.ErrorContext(ctx, "apply receipt failed",
					slog.String("instruction", rcp.Instruction),
					slog.String("error", err.Error()),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
				break
			}
			lastID = msg.ID
		}
	}
}

// Apply projects one receipt: the audit row, the affected event's rows, the
// user balances, the cache entry, and a notification when the instruction
// warrants one.
func (p *Projector) Apply(ctx context.Context, rcp *engine.Receipt) error {
	if err := p.receipts.Insert(ctx, rcp); err != nil {
		return err
	}

	if rcp.EventID != nil {
		if err := p.projectEvent(ctx, *rcp.EventID, rcp.UnixTime); err != nil {
			return err
		}
	}

	if err := p.projectUsers(ctx); err != nil {
		return err
	}

	if p.notifier != nil {
		if event, title, message, ok := notify.FromReceipt(rcp); ok {
			if err := p.notifier.Notify(ctx, event, title, message); err != nil {
				p.logger.WarnContext(ctx, "notification failed",
					slog.String("event", event),
					slog.String("error", err.Error()),
				)
				// Non-fatal: the projection itself is complete.
			}
		}
	}

	p.logger.DebugContext(ctx, "receipt projected",
		slog.String("instruction", rcp.Instruction),
	)
	return nil
}

// projectEvent refreshes every projection row derived from one event and
// replaces its cached snapshot.
func (p *Projector) projectEvent(ctx context.Context, id domain.EventID, now int64) error {
	snap, err := p.reader.Snapshot(id)
	if err != nil {
		return fmt.Errorf("service: project event %s: %w", id, err)
	}

	ev := snap.Event
	phase := status.Of(now, ev.StartDate, ev.EndDate, ev.ParticipationDeadline, ev.Canceled, ev.Result)
	row := postgres.EventRow{
		Event:       ev,
		Name:        snap.Name,
		Description: snap.Description,
		IsPrivate:   snap.IsPrivate,
		Phase:       phase,
	}
	if err := p.events.Upsert(ctx, row); err != nil {
		return err
	}

	opts, err := p.reader.Options(id)
	if err != nil {
		return fmt.Errorf("service: project options %s: %w", id, err)
	}
	for _, opt := range opts {
		if err := p.events.UpsertOption(ctx, opt); err != nil {
			return err
		}
	}

	if err := p.parts.UpsertBatch(ctx, snap.Participations); err != nil {
		return err
	}

	if snap.Appeal != nil {
		if err := p.events.UpsertAppeal(ctx, *snap.Appeal); err != nil {
			return err
		}
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, snap); err != nil {
			p.logger.WarnContext(ctx, "cache refresh failed",
				slog.String("event_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// projectUsers rewrites the user projection. Receipts do not carry which
// wallets changed balance, so the whole set is upserted in one batch.
func (p *Projector) projectUsers(ctx context.Context) error {
	users, err := p.reader.Users()
	if err != nil {
		return fmt.Errorf("service: project users: %w", err)
	}
	return p.users.UpsertBatch(ctx, users)
}

// RunArchiveLoop periodically archives settled events to object storage. The
// sweep runs under a distributed lock so only one instance archives at a
// time. It blocks until the context is cancelled; it returns immediately when
// no archiver is configured.
func (p *Projector) RunArchiveLoop(ctx context.Context) error {
	if p.archiver == nil {
		return nil
	}

	ticker := time.NewTicker(p.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runSweep(ctx)
		}
	}
}

func (p *Projector) runSweep(ctx context.Context) {
	unlock, err := p.locks.Acquire(ctx, "archive_sweep", archiveLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			p.logger.DebugContext(ctx, "archive sweep already running elsewhere")
			return
		}
		p.logger.ErrorContext(ctx, "archive lock failed",
			slog.String("error", err.Error()),
		)
		return
	}
	defer unlock()

	count, err := p.archiver.Sweep(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "archive sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if count > 0 {
		p.logger.InfoContext(ctx, "archived settled events",
			slog.Int64("count", count),
		)
	}
}
