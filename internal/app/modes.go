package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predictory-labs/predictory/internal/server"
	"github.com/predictory-labs/predictory/internal/server/handler"
	"github.com/predictory-labs/predictory/internal/server/middleware"
	"github.com/predictory-labs/predictory/internal/server/ws"
)

// ServerMode serves the REST and WebSocket API without maintaining the
// read-side projection.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ProjectMode runs the receipt projector and the archive sweep without
// serving HTTP.
func (a *App) ProjectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting project mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startProjector(ctx, g, deps)
	return g.Wait()
}

// FullMode runs every subsystem: the API server, the projector, and the
// archive sweep.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startProjector(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

// startProjector adds the receipt projector and, when archiving is enabled,
// the periodic archive sweep to the errgroup.
func (a *App) startProjector(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return deps.Projector.Run(ctx)
	})
	g.Go(func() error {
		return deps.Projector.RunArchiveLoop(ctx)
	})
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(a.logger),
		State:        handler.NewStateHandler(deps.Settlement, a.logger),
		Users:        handler.NewUserHandler(deps.Settlement, a.logger),
		Events:       handler.NewEventHandler(deps.Settlement, a.logger),
		Instructions: handler.NewInstructionHandler(deps.Settlement, a.logger),
	}

	var limiter middleware.Limiter
	if deps.RateLimiter != nil {
		limiter = deps.RateLimiter
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, limiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
