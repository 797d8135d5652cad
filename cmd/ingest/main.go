package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anika/warmpath/internal/config"
	"github.com/anika/warmpath/internal/graph"
	"github.com/anika/warmpath/internal/logging"
	"github.com/anika/warmpath/internal/repository"
	"github.com/anika/warmpath/internal/service"
)

var errMissingDataset = errors.New("dataset not found")

func main() {
	var (
		datasetDir = flag.String("dataset-dir", "./seed-data", "Directory containing people.json")
		peoplePath = flag.String("people", "", "Path to people.json (overrides dataset-dir)")
		workers    = flag.Int("workers", 4, "Number of concurrent workers for ingestion")
		rebuild    = flag.Bool("rebuild", true, "Rebuild the relationship graph after ingestion")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "ingest")

	peopleFile, err := resolveDatasetPath(*datasetDir, *peoplePath)
	if err != nil {
		logger.Error("dataset resolution failed", "error", err)
		os.Exit(1)
	}

	people, err := loadPersonInputs(peopleFile)
	if err != nil {
		logger.Error("failed to load people", "error", err, "path", peopleFile)
		os.Exit(1)
	}
	if len(people) == 0 {
		logger.Error("people dataset empty", "path", peopleFile)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
	})
	ingestor := service.NewBulkIngestor(engine, *workers)

	start := time.Now()
	logger.Info("ingesting people", "count", len(people), "workers", *workers)
	if err := ingestor.IngestPersons(ctx, people); err != nil {
		logger.Error("person ingestion failed", "error", err)
		os.Exit(1)
	}

	if *rebuild {
		stats, err := engine.RebuildGraph(ctx)
		if err != nil {
			logger.Error("graph rebuild failed", "error", err)
			os.Exit(1)
		}
		logger.Info("graph rebuilt", "nodes", stats.Nodes, "edges", stats.Edges)
	}

	logger.Info("ingestion complete", "duration", time.Since(start).String(), "people", len(people))
}

func resolveDatasetPath(baseDir, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("stat %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}
	path := filepath.Join(baseDir, "people.json")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", errMissingDataset, path)
	}
	return path, nil
}

func loadPersonInputs(path string) ([]service.PersonInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var people []service.PersonInput
	if err := json.NewDecoder(file).Decode(&people); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return people, nil
}

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
