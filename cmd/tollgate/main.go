package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/tollgate-io/tollgate/pkg/api"
	"github.com/tollgate-io/tollgate/pkg/audit"
	"github.com/tollgate-io/tollgate/pkg/config"
	"github.com/tollgate-io/tollgate/pkg/observability"
	"github.com/tollgate-io/tollgate/pkg/rbac"
	"github.com/tollgate-io/tollgate/pkg/schema"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogPlainText)

	registry, err := schema.LoadFile(cfg.Schema.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to load entity schema")
	}
	log.WithField("entities", len(registry.Entities())).Info("entity schema loaded")

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("database unreachable")
	}

	if err := rbac.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to run access control migrations")
	}
	if err := audit.NewStore(db).EnsureSchema(ctx); err != nil {
		log.WithError(err).Fatal("failed to prepare audit schema")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("permission cache unreachable")
	}

	server := api.NewServer(registry, db, redisClient, log, api.ServerOptions{
		MetricsEnabled: cfg.Observability.MetricsEnabled,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", httpServer.Addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
