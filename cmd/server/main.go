package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/popup-engine/internal/api"
	"github.com/ignite/popup-engine/internal/auth"
	"github.com/ignite/popup-engine/internal/cache"
	"github.com/ignite/popup-engine/internal/config"
	"github.com/ignite/popup-engine/internal/pkg/logger"
	"github.com/ignite/popup-engine/internal/repository/dynamo"
	"github.com/ignite/popup-engine/internal/repository/postgres"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("loading config", "error", err.Error())
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		logger.Error("opening postgres", "error", err.Error())
		os.Exit(1)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		logger.Error("pinging postgres", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Cache degrades to direct store reads; keep going.
		logger.Warn("redis unreachable, activity cache degraded", "addr", cfg.Redis.Addr, "error", err.Error())
	}
	defer redisClient.Close()

	ledger, err := dynamo.NewLedger(ctx, cfg.Dynamo.Table, cfg.Dynamo.Region, cfg.Dynamo.Endpoint)
	if err != nil {
		logger.Error("connecting to dynamodb", "error", err.Error())
		os.Exit(1)
	}

	activities := cache.New(redisClient, postgres.NewActivityRepo(db), cfg.Redis.TTL())
	events := postgres.NewEventRepo(db)
	submissions := postgres.NewSubmissionRepo(db)

	recorder := metrics.NewRecorder(activities, ledger, events)
	engine := metrics.NewEngine(events, cfg.Stats.Location())
	exporter := metrics.NewExporter(engine, submissions, cfg.Export.Parallelism, cfg.Export.LookupTimeout())

	verifier := auth.NewHTTPVerifier(cfg.Auth.SessionServiceURL, time.Duration(cfg.Auth.TimeoutSeconds)*time.Second)

	handlers := api.NewHandlers(activities, recorder, engine, exporter, verifier)
	server := api.NewServer(handlers, cfg.Server.DashboardOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err.Error())
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err.Error())
	}
}
