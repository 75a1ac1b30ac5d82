package app

import (
	"context"
	"fmt"
	"os"

	"github.com/inktime/support-backend/internal/answer"
	"github.com/inktime/support-backend/internal/chat"
	"github.com/inktime/support-backend/internal/db"
	"github.com/inktime/support-backend/internal/embedding"
	"github.com/inktime/support-backend/internal/ingest"
	"github.com/inktime/support-backend/internal/memory"
	"github.com/inktime/support-backend/internal/platform/kvstore"
	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/platform/openrouter"
	"github.com/inktime/support-backend/internal/repos"
	"github.com/inktime/support-backend/internal/retrieval"
	"github.com/inktime/support-backend/internal/vectorindex"
)

type Repos struct {
	Documents     repos.DocumentRepo
	Conversations repos.ConversationRepo
	Messages      repos.MessageRepo
}

type App struct {
	Log    *logger.Logger
	Cfg    Config
	Repos  Repos
	KV     kvstore.Store
	Index  *vectorindex.Index
	Loader *ingest.Loader

	Pipeline *ingest.Pipeline
	Worker   *ingest.Worker
	Memory   *memory.Memory
	Chat     *chat.Service

	cancel context.CancelFunc
}

// New wires the full service: logger, config, database, KV store, embedder,
// vector index, repos, ingestion pipeline and worker, retrieval, the model
// race client, and the chat orchestrator.
func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	kv, err := newKVStore(log, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init kv store: %w", err)
	}

	embedder, err := newEmbedder(log, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	index, err := vectorindex.LoadOrCreate(log, cfg.IndexDir, embedder.Dimension())
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	reposet := Repos{
		Documents:     repos.NewDocumentRepo(theDB, log),
		Conversations: repos.NewConversationRepo(theDB, log),
		Messages:      repos.NewMessageRepo(theDB, log),
	}

	loader := ingest.NewLoader(log)
	chunker := ingest.NewChunker(log, cfg.ChunkSize, cfg.ChunkOverlap)
	pipeline := ingest.NewPipeline(log, reposet.Documents, loader, chunker, embedder, index, kv, cfg.IndexDir)
	worker := ingest.NewWorker(log, reposet.Documents, pipeline, cfg.WorkerInterval)

	retriever := retrieval.NewService(log, embedder, index, cfg.RetrievalMaxDistance)
	mem := memory.New(log, kv, cfg.MemoryWindow, cfg.EpisodicTTL, cfg.LongTermTTL)

	models, err := answer.LoadModels(log, cfg.ModelsConfigPath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load model config: %w", err)
	}
	provider, err := openrouter.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init model provider: %w", err)
	}
	generator, err := answer.NewClient(log, provider, models, cfg.MaxModelAttempts)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init answer client: %w", err)
	}

	chatService := chat.NewService(
		log,
		reposet.Conversations,
		reposet.Messages,
		reposet.Documents,
		mem,
		retriever,
		generator,
		answer.NewConfidenceMarker(""),
		kv,
		cfg.RequestTimeout,
	)

	return &App{
		Log:      log,
		Cfg:      cfg,
		Repos:    reposet,
		KV:       kv,
		Index:    index,
		Loader:   loader,
		Pipeline: pipeline,
		Worker:   worker,
		Memory:   mem,
		Chat:     chatService,
	}, nil
}

// Start launches the background ingestion worker.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Worker.Start(ctx)
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.KV != nil {
		if err := a.KV.Close(); err != nil {
			a.Log.Warn("Failed to close kv store", "error", err)
		}
	}
	a.Log.Sync()
}

func newKVStore(log *logger.Logger, cfg Config) (kvstore.Store, error) {
	switch cfg.KVBackend {
	case "memory":
		log.Info("Using in-memory kv store")
		return kvstore.NewMemory(), nil
	default:
		return kvstore.NewRedis(log)
	}
}

func newEmbedder(log *logger.Logger, cfg Config) (embedding.Provider, error) {
	switch cfg.EmbedderKind {
	case "remote":
		client, err := openrouter.New(log)
		if err != nil {
			return nil, err
		}
		return embedding.NewRemote(log, client, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	default:
		log.Info("Using local feature-hashing embedder", "dimension", cfg.EmbeddingDimension)
		return embedding.NewLocal(cfg.EmbeddingDimension), nil
	}
}
