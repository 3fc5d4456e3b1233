package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"netauction-server/internal/adapters/audit"
	"netauction-server/internal/adapters/db"
	"netauction-server/internal/adapters/notifier"
	"netauction-server/internal/adapters/scheduler"
	"netauction-server/internal/adapters/tcp"
	"netauction-server/internal/adapters/ws"
	"netauction-server/internal/app"
	"netauction-server/internal/config"
	"netauction-server/internal/ports/outbound"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting netauction server...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence is optional; without it the server runs memory-only.
	var store outbound.Store
	if cfg.Persistence.Enabled {
		s, err := db.NewStore(ctx, db.StoreParams{
			Driver: cfg.Persistence.Driver,
			DSN:    cfg.Persistence.DSN,
			Logger: log.Logger,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
		defer s.Close()
		store = s
		log.Info().Str("driver", cfg.Persistence.Driver).Msg("Database connection established")
	}

	auditLog := audit.NewLogger(audit.LoggerParams{
		FilePath: cfg.Audit.LogPath,
		Logger:   log.Logger,
	})
	defer auditLog.Close()

	hub := notifier.NewHub(notifier.HubParams{Logger: log.Logger})

	sessions := app.NewSessionStore(app.SessionStoreParams{Logger: log.Logger})
	sessions.StartSweeper()

	users := app.NewUserService(app.UserServiceParams{
		Store:  store,
		Logger: log.Logger,
	})
	auctions := app.NewAuctionService(app.AuctionServiceParams{
		Store:  store,
		Logger: log.Logger,
	})

	log.Info().Msg("Business services initialized")

	dispatcher := app.NewDispatcher(app.DispatcherParams{
		Sessions: sessions,
		Users:    users,
		Auctions: auctions,
		Notifier: hub,
		Audit:    auditLog,
		Logger:   log.Logger,
	})

	auctionScheduler := scheduler.NewAuctionScheduler(scheduler.AuctionSchedulerParams{
		Auctions: auctions,
		Notifier: hub,
		Audit:    auditLog,
		Logger:   log.Logger,
	})
	auctionScheduler.Start()
	log.Info().Msg("Auction scheduler started")

	tcpServer := tcp.NewServer(tcp.ServerParams{
		Config:     cfg,
		Dispatcher: dispatcher,
		Logger:     log.Logger,
	})
	if err := tcpServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	var wsServer *ws.Server
	if cfg.WebSocket.Enabled {
		wsServer = ws.NewServer(ws.ServerParams{
			Config:     cfg,
			Dispatcher: dispatcher,
			Logger:     log.Logger,
		})
		go func() {
			if err := wsServer.Start(); err != nil {
				log.Error().Err(err).Msg("WebSocket server failed")
				cancel()
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	auctionScheduler.Stop()
	sessions.Stop()

	if wsServer != nil {
		if err := wsServer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping WebSocket server")
		}
	}
	tcpServer.Stop()

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
