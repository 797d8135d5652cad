package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anika/warmpath/internal/config"
	"github.com/anika/warmpath/internal/generator"
	"github.com/anika/warmpath/internal/graph"
	"github.com/anika/warmpath/internal/invite"
	"github.com/anika/warmpath/internal/logging"
	"github.com/anika/warmpath/internal/repository"
	"github.com/anika/warmpath/internal/server"
	"github.com/anika/warmpath/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	repo, graphClient, err := buildRepository(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to create evidence repository", "error", err)
		os.Exit(1)
	}
	defer func() {
		if graphClient != nil {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}
	}()

	engine := service.NewGraphService(repo, logger, service.Options{
		MaxHops:      cfg.Engine.MaxHops,
		MaxPaths:     cfg.Engine.MaxPaths,
		MaxGroupSize: cfg.Engine.MaxGroupSize,
	}, generator.NewInterestSource(cfg.Engine.MaxGroupSize))

	if _, err := engine.RebuildGraph(ctx); err != nil {
		logger.Error("initial graph rebuild failed", "error", err)
		os.Exit(1)
	}

	inviteStore, err := invite.OpenBadgerStore(cfg.Invite.DBPath)
	if err != nil {
		logger.Error("failed to open invitation store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := inviteStore.Close(); err != nil {
			logger.Warn("closing invitation store failed", "error", err)
		}
	}()

	invites := invite.NewService(inviteStore, invite.NewLogNotifier(logger), engine, logger, cfg.Invite.TTL)
	apiHandlers := server.NewAPIHandlers(logger, engine, invites)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.GraphHealthService{Client: graphClient},
		API:              apiHandlers,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	tickerCtx, stopTickers := context.WithCancel(ctx)
	defer stopTickers()
	go runRebuildLoop(tickerCtx, logger, engine, cfg.Engine.RebuildInterval)
	go runSweepLoop(tickerCtx, logger, invites, cfg.Invite.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	stopTickers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildRepository selects the evidence store: a Neo4j-backed repository when
// a graph URI is configured, otherwise the in-process memory repository.
func buildRepository(ctx context.Context, logger *slog.Logger, cfg config.Config) (service.EvidenceRepository, graph.Client, error) {
	if cfg.Graph.URI == "" {
		logger.Info("no graph URI configured, using in-memory evidence store")
		return repository.NewMemory(), nil, nil
	}

	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	client, err := graph.NewNeo4jClient(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return repository.New(client), client, nil
}

func runRebuildLoop(ctx context.Context, logger *slog.Logger, engine *service.GraphService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.RebuildGraph(ctx); err != nil {
				logger.Error("scheduled rebuild failed", "error", err)
			}
		}
	}
}

func runSweepLoop(ctx context.Context, logger *slog.Logger, invites *invite.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := invites.SweepExpired(ctx); err != nil {
				logger.Error("invitation sweep failed", "error", err)
			}
		}
	}
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
