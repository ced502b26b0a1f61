// Package app provides the top-level application lifecycle for the predictory
// settlement service. It wires together all dependencies (engine, stores,
// caches, blob storage, services, and notifications) and starts the
// appropriate goroutines based on the configured operating mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/predictory-labs/predictory/internal/config"
	"github.com/predictory-labs/predictory/internal/domain"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, bootstraps the
// ledger, selects the operating mode, starts the corresponding goroutines,
// and blocks until the context is cancelled. On return it runs all registered
// cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := a.bootstrapGenesis(ctx, deps); err != nil {
		return fmt.Errorf("app: bootstrap genesis: %w", err)
	}

	mode := strings.ToLower(a.cfg.Mode)
	switch mode {
	case "server":
		return a.ServerMode(ctx, deps)
	case "project":
		return a.ProjectMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// bootstrapGenesis initializes the contract state singleton from the genesis
// configuration when the ledger is still empty. Restarting against an already
// initialized ledger is a no-op.
func (a *App) bootstrapGenesis(ctx context.Context, deps *Dependencies) error {
	authority, err := domain.ParsePublicKey(a.cfg.Genesis.Authority)
	if err != nil {
		return err
	}

	_, err = deps.Engine.InitializeContractState(
		authority,
		a.cfg.Genesis.Multiplier,
		a.cfg.Genesis.EventPrice,
		a.cfg.Genesis.PlatformFee,
		a.cfg.Genesis.OrgReward,
	)
	if err != nil {
		if errors.Is(err, domain.ErrStateInitialized) {
			a.logger.InfoContext(ctx, "ledger already initialized")
			return nil
		}
		return err
	}

	a.logger.InfoContext(ctx, "genesis applied",
		slog.String("authority", authority.String()),
		slog.Uint64("multiplier", a.cfg.Genesis.Multiplier),
		slog.Uint64("event_price", a.cfg.Genesis.EventPrice),
	)
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
