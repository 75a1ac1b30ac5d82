package app

import (
	"time"

	"github.com/inktime/support-backend/internal/answer"
	"github.com/inktime/support-backend/internal/embedding"
	"github.com/inktime/support-backend/internal/ingest"
	"github.com/inktime/support-backend/internal/memory"
	"github.com/inktime/support-backend/internal/platform/envutil"
	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/retrieval"
)

type Config struct {
	IndexDir string

	EmbedderKind       string // local or remote
	EmbeddingModel     string
	EmbeddingDimension int

	ChunkSize    int
	ChunkOverlap int

	KVBackend      string // redis or memory
	WorkerInterval time.Duration

	RetrievalMaxDistance float64

	MemoryWindow int
	EpisodicTTL  time.Duration
	LongTermTTL  time.Duration

	ModelsConfigPath string
	MaxModelAttempts int
	RequestTimeout   time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		IndexDir: envutil.Get("VECTOR_INDEX_DIR", "data/index", log),

		EmbedderKind:       envutil.Get("EMBEDDER", "local", log),
		EmbeddingModel:     envutil.Get("EMBEDDING_MODEL", "openai/text-embedding-3-small", log),
		EmbeddingDimension: envutil.GetInt("EMBEDDING_DIMENSION", embedding.DefaultLocalDimension, log),

		ChunkSize:    envutil.GetInt("CHUNK_SIZE", ingest.DefaultChunkSize, log),
		ChunkOverlap: envutil.GetInt("CHUNK_OVERLAP", ingest.DefaultChunkOverlap, log),

		KVBackend:      envutil.Get("KV_BACKEND", "redis", log),
		WorkerInterval: envutil.GetDuration("INGEST_WORKER_INTERVAL", 2*time.Second, log),

		RetrievalMaxDistance: envutil.GetFloat("RETRIEVAL_MAX_DISTANCE", retrieval.DefaultMaxDistance, log),

		MemoryWindow: envutil.GetInt("MEMORY_WINDOW", memory.DefaultWindow, log),
		EpisodicTTL:  envutil.GetDuration("MEMORY_EPISODIC_TTL", memory.DefaultEpisodicTTL, log),
		LongTermTTL:  envutil.GetDuration("MEMORY_LONG_TERM_TTL", memory.DefaultLongTermTTL, log),

		ModelsConfigPath: envutil.Get("MODELS_CONFIG_PATH", "models.yaml", log),
		MaxModelAttempts: envutil.GetInt("MODEL_MAX_ATTEMPTS", answer.DefaultMaxAttempts, log),
		RequestTimeout:   envutil.GetDuration("CHAT_REQUEST_TIMEOUT", 60*time.Second, log),
	}
}
