// Package app wires the configured backends into the services shared by the
// HTTP server, the MCP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/agent"
	"github.com/aslamsikder/VoiceRAG-Agent-System/config"
	"github.com/aslamsikder/VoiceRAG-Agent-System/database"
	"github.com/aslamsikder/VoiceRAG-Agent-System/embeddings"
	"github.com/aslamsikder/VoiceRAG-Agent-System/ingestion"
	"github.com/aslamsikder/VoiceRAG-Agent-System/knowledge"
	"github.com/aslamsikder/VoiceRAG-Agent-System/llm"
	"github.com/aslamsikder/VoiceRAG-Agent-System/retrieval"
	"github.com/aslamsikder/VoiceRAG-Agent-System/stt"
	"github.com/aslamsikder/VoiceRAG-Agent-System/tools"
	"github.com/aslamsikder/VoiceRAG-Agent-System/vectorindex"
)

// App holds one instance of every long-lived component.
type App struct {
	Config config.Config
	Logger *zap.Logger

	LLM          llm.Client
	Embedder     embeddings.Embedder
	Store        vectorindex.Store
	Retriever    *retrieval.Retriever
	Tools        *tools.Registry
	Orchestrator *agent.Orchestrator
	Transcriber  *stt.Transcriber
	Ingestion    *ingestion.Service

	graph  *knowledge.Graph
	pool   *pgxpool.Pool
	driver neo4j.DriverWithContext

	// rebuildMu serialises Ingest and Clear so the persisted index and the
	// live one always come from the same operation.
	rebuildMu sync.Mutex
}

// New connects the configured backends and builds the services. The vector
// index is not loaded here; call LoadIndex or let the first query load it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	a.initCatalog(ctx)

	client, err := llm.NewClient(cfg)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("llm setup: %w", err)
	}
	a.LLM = client

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("embedder setup: %w", err)
	}
	a.Embedder = embeddings.WithRetry(embedder, cfg.MaxRetries, cfg.RetryDelay)

	a.Retriever = retrieval.New(a.Store, a.Embedder, logger.Named("retrieval"))
	a.Tools = tools.NewRegistry(tools.NewWeatherClient(cfg.Tools), tools.SimulatedPrices{}, logger.Named("tools"))
	a.Orchestrator = agent.New(a.LLM, a.Retriever, a.Tools,
		agent.WithRetrievalK(cfg.Index.RetrievalK),
		agent.WithLogger(logger.Named("agent")),
	)
	a.Transcriber = stt.NewFromConfig(cfg, logger.Named("stt"))

	opts := []ingestion.Option{
		ingestion.WithSplitter(ingestion.NewSplitter(
			ingestion.WithChunkSize(cfg.Index.ChunkSize),
			ingestion.WithOverlap(cfg.Index.ChunkOverlap),
		)),
		ingestion.WithBatching(cfg.Embeddings.BatchSize, cfg.Embeddings.Workers),
	}
	if a.graph != nil {
		opts = append(opts, ingestion.WithCatalog(a.graph))
	}
	a.Ingestion = ingestion.NewService(a.Store, a.Embedder, logger.Named("ingestion"), opts...)

	logger.Info("components initialised",
		zap.String("llm", cfg.LLM.Provider+"/"+cfg.LLM.Model),
		zap.String("embeddings", cfg.Embeddings.Provider+"/"+cfg.Embeddings.Model),
		zap.String("index_backend", cfg.Index.Backend),
		zap.Bool("catalog", a.graph != nil),
	)
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.Config.Index.Backend {
	case config.IndexBackendPostgres:
		pool, err := database.NewPostgresPool(ctx, a.Config.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		a.pool = pool
		a.Store = vectorindex.NewPostgresStore(pool)
	default:
		a.Store = vectorindex.NewFileStore(a.Config.Index.Path)
	}
	return nil
}

// initCatalog connects the Neo4j mirror when configured. An unreachable
// server only disables the mirror.
func (a *App) initCatalog(ctx context.Context) {
	if a.Config.Neo4jURI == "" {
		return
	}
	driver, err := database.NewNeo4jDriver(ctx, a.Config.Neo4jURI, a.Config.Neo4jUser, a.Config.Neo4jPass)
	if err != nil {
		a.Logger.Warn("neo4j unavailable, document catalog disabled", zap.Error(err))
		return
	}
	a.driver = driver
	a.graph = knowledge.NewGraph(driver)
}

// LoadIndex reads the persisted index into the retriever.
func (a *App) LoadIndex(ctx context.Context) error {
	return a.Retriever.Load(ctx)
}

// Ingest rebuilds the index from dir (the configured data dir when empty) and
// makes it live for subsequent queries.
func (a *App) Ingest(ctx context.Context, dir string) (ingestion.Result, error) {
	if dir == "" {
		dir = a.Config.DataDir
	}

	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()

	res, err := a.Ingestion.IngestDirectory(ctx, dir)
	if err != nil {
		return res, err
	}
	if res.Built() {
		a.Retriever.Swap(res.Index)
	}
	return res, nil
}

// Clear removes the persisted index and the catalog mirror.
func (a *App) Clear(ctx context.Context) error {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()

	var errs []error
	if err := a.Retriever.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.graph != nil {
		if err := a.graph.Purge(ctx); err != nil {
			errs = append(errs, fmt.Errorf("purge catalog: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) Close(ctx context.Context) {
	if a.driver != nil {
		if err := a.driver.Close(ctx); err != nil {
			a.Logger.Warn("close neo4j driver", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
