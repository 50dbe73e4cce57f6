// Package app wires the identity store, chat hub, broadcast log, and TCP
// acceptor into one runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/chatlog"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/identity"
	"github.com/vovakirdan/linechat-server/internal/identity/sqlite"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	server          *tcp.Server
	hub             *core.Hub
	identity        identity.Store
	chatlog         *chatlog.Log
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. Failures
// opening durable storage are downgraded: the server starts with an
// empty in-memory identity store, and without a broadcast log.
func New(cfg config.Config, logger *zerolog.Logger) *App {
	var ids identity.Store
	if st, err := sqlite.New(cfg.DatabasePath); err != nil {
		logger.Warn().Err(err).Str("db_path", cfg.DatabasePath).Msg("identity store unavailable, starting empty in-memory store")
		ids = identity.NewMemory()
	} else {
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("identity store ready")
		ids = st
	}

	blog, err := chatlog.Open(cfg.LogDir)
	if err != nil {
		logger.Warn().Err(err).Str("log_dir", cfg.LogDir).Msg("broadcast log unavailable")
		blog = nil
	} else {
		logger.Info().Str("path", blog.Path()).Msg("broadcast log opened")
	}

	var bl core.BroadcastLog
	if blog != nil {
		bl = blog
	}
	hub := core.NewHub(logger, bl)
	server := tcp.NewServer(hub, ids, cfg, logger)

	return &App{
		server:          server,
		hub:             hub,
		identity:        ids,
		chatlog:         blog,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
}

// Run starts the hub and the TCP server and blocks until context
// cancellation or a fatal listener error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		err := a.server.ListenAndServe(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
		select {
		case err := <-serverErr:
			a.cleanup()
			return err
		case <-time.After(a.shutdownTimeout):
			a.cleanup()
			return fmt.Errorf("shutdown timed out after %s", a.shutdownTimeout)
		}
	}
}

// cleanup closes storage and the broadcast log.
func (a *App) cleanup() {
	if err := a.identity.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close identity store")
	} else {
		a.log.Info().Msg("identity store closed")
	}

	if a.chatlog != nil {
		if err := a.chatlog.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close broadcast log")
		}
	}
}
