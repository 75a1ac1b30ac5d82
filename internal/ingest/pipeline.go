package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/inktime/support-backend/internal/embedding"
	"github.com/inktime/support-backend/internal/platform/kvstore"
	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/repos"
	"github.com/inktime/support-backend/internal/types"
	"github.com/inktime/support-backend/internal/vectorindex"
)

// DocumentsAvailableKey is the process-wide flag read by the answer path to
// short-circuit before any index lookup. Set with no expiry once the first
// document finishes processing.
const DocumentsAvailableKey = "documents_available"

const (
	defaultParallelism = 4
	embedBatchSize     = 64
)

// Pipeline drives a document through load → chunk → embed → index and
// records each transition on the document row. Documents fail independently:
// one bad file never aborts its siblings, and every failure lands as a
// failed status with a recorded error rather than a crash.
//
// Index mutation and persistence are single-writer: all of it happens under
// one mutex, so two concurrent batches can never interleave at the file
// level.
type Pipeline struct {
	log      *logger.Logger
	docs     repos.DocumentRepo
	loader   *Loader
	chunker  *Chunker
	embedder embedding.Provider
	index    *vectorindex.Index
	kv       kvstore.Store

	indexDir    string
	parallelism int

	mu sync.Mutex
}

func NewPipeline(
	log *logger.Logger,
	docs repos.DocumentRepo,
	loader *Loader,
	chunker *Chunker,
	embedder embedding.Provider,
	index *vectorindex.Index,
	kv kvstore.Store,
	indexDir string,
) *Pipeline {
	return &Pipeline{
		log:         log.With("service", "IngestionPipeline"),
		docs:        docs,
		loader:      loader,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		kv:          kv,
		indexDir:    indexDir,
		parallelism: defaultParallelism,
	}
}

// ProcessDocument runs the full pipeline for one document. On success the
// row is marked processed and the documents-available flag is set; on
// failure the row is marked failed with the error recorded.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc *types.Document) error {
	if err := p.process(ctx, doc); err != nil {
		p.log.Error("Document processing failed", "document_id", doc.ID, "path", doc.FilePath, "error", err)
		if markErr := p.docs.MarkFailed(ctx, nil, doc.ID, err.Error()); markErr != nil {
			p.log.Error("Failed to record document failure", "document_id", doc.ID, "error", markErr)
		}
		return err
	}

	if err := p.docs.MarkProcessed(ctx, nil, doc.ID); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	p.markDocumentsAvailable(ctx)
	p.log.Info("Document processed", "document_id", doc.ID, "path", doc.FilePath)
	return nil
}

func (p *Pipeline) process(ctx context.Context, doc *types.Document) error {
	if !types.AllowedFileType(doc.FileType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, doc.FileType)
	}
	if err := p.docs.SetStatus(ctx, nil, doc.ID, types.DocStatusLoading); err != nil {
		return fmt.Errorf("set status loading: %w", err)
	}
	segments, err := p.loader.LoadFile(doc.FilePath, doc.FileType)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if len(segments) == 0 {
		return fmt.Errorf("no extractable text in %s", doc.FilePath)
	}

	if err := p.docs.SetStatus(ctx, nil, doc.ID, types.DocStatusChunking); err != nil {
		return fmt.Errorf("set status chunking: %w", err)
	}
	chunks, err := p.chunker.ChunkSegments(segments)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("chunking produced no chunks for %s", doc.FilePath)
	}

	if err := p.docs.SetStatus(ctx, nil, doc.ID, types.DocStatusEmbedding); err != nil {
		return fmt.Errorf("set status embedding: %w", err)
	}
	vectors, entries, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	return p.indexDocument(doc.FilePath, vectors, entries)
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, []vectorindex.Entry, error) {
	vectors := make([][]float32, 0, len(chunks))
	entries := make([]vectorindex.Entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, nil, err
		}
		vectors = append(vectors, vecs...)
		for _, c := range batch {
			entries = append(entries, vectorindex.Entry{Text: c.Text, Source: c.Source, Position: c.Position})
		}
	}
	return vectors, entries, nil
}

// indexDocument replaces the document's rows in the index and persists. If
// the append fails the index is reset and rebuilt from the new chunk set
// alone, so a failed append can lose older rows (recoverable by re-ingest)
// but never leaves the index partially updated.
func (p *Pipeline) indexDocument(source string, vectors [][]float32, entries []vectorindex.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.index.ReplaceSource(source, vectors, entries); err != nil {
		p.log.Error("Index append failed, rebuilding from new chunk set", "source", source, "error", err)
		p.index.Reset()
		if err := p.index.Add(vectors, entries); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
	}
	if err := p.index.Persist(p.indexDir); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

func (p *Pipeline) markDocumentsAvailable(ctx context.Context) {
	if err := p.kv.Set(ctx, DocumentsAvailableKey, []byte("1"), 0); err != nil {
		// Non-fatal: the answer path falls back to counting processed rows.
		p.log.Warn("Failed to set documents-available flag", "error", err)
	}
}

// IngestDir creates a document row for every supported file directly under
// dir and processes them with bounded parallelism. Per-document failures are
// recorded on their rows and do not fail the batch; only infrastructure
// errors (unreadable directory, row creation) surface here.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	var docs []*types.Document
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fileType, err := ResolveType(path)
		if err != nil {
			p.log.Warn("Skipping unsupported file", "path", path)
			continue
		}
		doc, err := p.docs.Create(ctx, nil, &types.Document{
			Title:    entry.Name(),
			FilePath: path,
			FileType: fileType,
			Status:   types.DocStatusUploaded,
		})
		if err != nil {
			return fmt.Errorf("create document row for %s: %w", path, err)
		}
		docs = append(docs, doc)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			// Failures are recorded on the row; the batch continues.
			_ = p.ProcessDocument(gctx, doc)
			return nil
		})
	}
	return g.Wait()
}
