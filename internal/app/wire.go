package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/predictory-labs/predictory/internal/blob/s3"
	"github.com/predictory-labs/predictory/internal/cache/redis"
	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/config"
	"github.com/predictory-labs/predictory/internal/engine"
	"github.com/predictory-labs/predictory/internal/ledger"
	"github.com/predictory-labs/predictory/internal/notify"
	"github.com/predictory-labs/predictory/internal/service"
	"github.com/predictory-labs/predictory/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Core ledger
	Engine *engine.Engine
	Reader *client.Reader

	// Services
	Settlement *service.SettlementService
	Projector  *service.Projector

	// Projection stores (nil unless the mode needs Postgres)
	EventStore         *postgres.EventStore
	UserStore          *postgres.UserStore
	ParticipationStore *postgres.ParticipationStore
	ReceiptStore       *postgres.ReceiptStore

	// Redis
	EventCache  *redis.EventCache
	SignalBus   *redis.SignalBus
	LockManager *redis.LockManager
	RateLimiter *redis.RateLimiter

	// Blob storage (nil unless archiving is enabled)
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that maintain the read-side projection.
func needsPostgres(mode string) bool {
	switch mode {
	case "project", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that run the archive sweep.
func needsS3(mode string) bool {
	switch mode {
	case "project", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Settlement engine ---
	deps.Engine = engine.New(ledger.New())
	deps.Reader = client.NewReader(deps.Engine.Ledger())

	// --- PostgreSQL (only for modes that run the projector) ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		// Run migrations if enabled.
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.EventStore = postgres.NewEventStore(pool)
		deps.UserStore = postgres.NewUserStore(pool)
		deps.ParticipationStore = postgres.NewParticipationStore(pool)
		deps.ReceiptStore = postgres.NewReceiptStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.EventCache = redis.NewEventCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- S3 archive (only when the mode sweeps and archiving is enabled) ---
	if needsS3(cfg.Mode) && cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		// The archiver reads settlement snapshots from the ledger and tracks
		// archived events through the Postgres projection.
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Reader,
			deps.EventStore,
			cfg.Archive.Prefix,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	deps.Settlement = service.NewSettlementService(
		deps.Engine,
		deps.Reader,
		deps.EventCache,
		deps.SignalBus,
		logger,
	)

	if needsPostgres(cfg.Mode) {
		deps.Projector = service.NewProjector(service.ProjectorDeps{
			Reader:   deps.Reader,
			Users:    deps.UserStore,
			Events:   deps.EventStore,
			Parts:    deps.ParticipationStore,
			Receipts: deps.ReceiptStore,
			Cache:    deps.EventCache,
			Bus:      deps.SignalBus,
			Locks:    deps.LockManager,
			Notifier: deps.Notifier,
			Archiver: deps.Archiver,
			Sweep:    cfg.Archive.SweepInterval.Duration,
		}, logger)
	}

	return deps, cleanup, nil
}
