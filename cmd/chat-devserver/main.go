package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obraviva/site-chat/internal/backend"
	"github.com/obraviva/site-chat/internal/config"
	"github.com/obraviva/site-chat/pkg/database"
	pkglog "github.com/obraviva/site-chat/pkg/log"
	"github.com/obraviva/site-chat/pkg/pubsub"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	if err := pkglog.Init(cfg.Log); err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to initialize logger")
	}
	logger := pkglog.L()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event bus")
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("event bus ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store backend.Repository = backend.NewStore()
	if cfg.Database.Persistent() {
		db, err := database.New(cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close(db)

		gormStore := backend.NewGormStore(db)
		if err := gormStore.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("failed to auto-migrate")
		}
		logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")
		store = gormStore
	}

	if cfg.Seed.Enabled {
		if err := backend.Seed(ctx, store); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed development data")
		}
		logger.Info().Str(pkglog.FieldChatID, backend.SeedChatID).Msg("seeded development chat")
	}

	srv, err := backend.New(backend.Options{
		WebSocket: cfg.WebSocket,
		JWT:       cfg.JWT,
		Bus:       bus,
		Store:     store,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create backend")
	}

	if err := srv.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start backend")
	}
	defer srv.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("chat dev backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat dev backend")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	srv.DropConnections()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("chat dev backend stopped")
}
