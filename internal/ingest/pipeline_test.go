package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inktime/support-backend/internal/embedding"
	"github.com/inktime/support-backend/internal/platform/kvstore"
	"github.com/inktime/support-backend/internal/types"
	"github.com/inktime/support-backend/internal/vectorindex"
)

type fakeDocumentRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*types.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[uuid.UUID]*types.Document{}}
}

func (r *fakeDocumentRepo) Create(_ context.Context, _ *gorm.DB, doc *types.Document) (*types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	copied := *doc
	r.docs[doc.ID] = &copied
	return doc, nil
}

func (r *fakeDocumentRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocumentRepo) ListByStatus(_ context.Context, _ *gorm.DB, status string) ([]*types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Document
	for _, doc := range r.docs {
		if doc.Status == status {
			copied := *doc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) ClaimNextUploaded(_ context.Context, _ *gorm.DB) (*types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.Status == types.DocStatusUploaded {
			doc.Status = types.DocStatusLoading
			copied := *doc
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeDocumentRepo) SetStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.Status = status
	}
	return nil
}

func (r *fakeDocumentRepo) MarkProcessed(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.Status = types.DocStatusProcessed
		doc.Processed = true
		doc.ProcessingError = ""
	}
	return nil
}

func (r *fakeDocumentRepo) MarkFailed(_ context.Context, _ *gorm.DB, id uuid.UUID, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.Status = types.DocStatusFailed
		doc.Processed = false
		doc.ProcessingError = processingError
	}
	return nil
}

func (r *fakeDocumentRepo) HasProcessed(_ context.Context, _ *gorm.DB) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.Processed {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDocumentRepo) ListProcessed(ctx context.Context, tx *gorm.DB) ([]*types.Document, error) {
	return r.ListByStatus(ctx, tx, types.DocStatusProcessed)
}

func newTestPipeline(t *testing.T, repo *fakeDocumentRepo) (*Pipeline, *vectorindex.Index, kvstore.Store) {
	t.Helper()
	log := testLogger(t)
	embedder := embedding.NewLocal(64)
	index, err := vectorindex.New(log, embedder.Dimension())
	if err != nil {
		t.Fatalf("vectorindex.New: %v", err)
	}
	kv := kvstore.NewMemory()
	pipeline := NewPipeline(
		log,
		repo,
		NewLoader(log),
		NewChunker(log, 1000, 200),
		embedder,
		index,
		kv,
		t.TempDir(),
	)
	return pipeline, index, kv
}

func TestProcessDocumentSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Our support hours are 9 to 5.")

	repo := newFakeDocumentRepo()
	pipeline, index, kv := newTestPipeline(t, repo)

	doc, err := repo.Create(context.Background(), nil, &types.Document{
		Title: "notes.txt", FilePath: path, FileType: types.DocTypeText,
		Status: types.DocStatusUploaded,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := pipeline.ProcessDocument(context.Background(), doc); err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	stored, err := repo.GetByID(context.Background(), nil, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != types.DocStatusProcessed || !stored.Processed {
		t.Fatalf("document state: status=%q processed=%v", stored.Status, stored.Processed)
	}
	if index.Len() == 0 {
		t.Fatal("index has no entries after processing")
	}

	val, ok, err := kv.Get(context.Background(), DocumentsAvailableKey)
	if err != nil || !ok {
		t.Fatalf("documents-available flag: ok=%v err=%v", ok, err)
	}
	if string(val) != "1" {
		t.Fatalf("flag value: want=%q got=%q", "1", val)
	}
}

func TestProcessDocumentTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Our support hours are 9 to 5.")

	repo := newFakeDocumentRepo()
	pipeline, index, _ := newTestPipeline(t, repo)

	doc, _ := repo.Create(context.Background(), nil, &types.Document{
		Title: "notes.txt", FilePath: path, FileType: types.DocTypeText,
		Status: types.DocStatusUploaded,
	})

	if err := pipeline.ProcessDocument(context.Background(), doc); err != nil {
		t.Fatalf("first ProcessDocument: %v", err)
	}
	countAfterFirst := index.Len()

	if err := pipeline.ProcessDocument(context.Background(), doc); err != nil {
		t.Fatalf("second ProcessDocument: %v", err)
	}
	if index.Len() != countAfterFirst {
		t.Fatalf("re-ingest doubled entries: first=%d second=%d", countAfterFirst, index.Len())
	}
}

func TestProcessDocumentMissingFileMarksFailed(t *testing.T) {
	repo := newFakeDocumentRepo()
	pipeline, index, _ := newTestPipeline(t, repo)

	doc, _ := repo.Create(context.Background(), nil, &types.Document{
		Title: "gone.txt", FilePath: "/nonexistent/gone.txt", FileType: types.DocTypeText,
		Status: types.DocStatusUploaded,
	})

	if err := pipeline.ProcessDocument(context.Background(), doc); err == nil {
		t.Fatal("ProcessDocument on missing file: want error, got nil")
	}

	stored, _ := repo.GetByID(context.Background(), nil, doc.ID)
	if stored.Status != types.DocStatusFailed {
		t.Fatalf("status: want=%q got=%q", types.DocStatusFailed, stored.Status)
	}
	if stored.ProcessingError == "" {
		t.Fatal("processing error not recorded")
	}
	if index.Len() != 0 {
		t.Fatalf("failed document added %d index entries", index.Len())
	}
}

func TestIngestDirProcessesSiblingsDespiteFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "refund within 30 days")
	writeFile(t, dir, "also-good.md", "# Shipping\n\nShips in 3 days.")
	writeFile(t, dir, "empty.txt", "") // no extractable text, marks failed
	writeFile(t, dir, "skip.png", "not a document")

	repo := newFakeDocumentRepo()
	pipeline, index, _ := newTestPipeline(t, repo)

	if err := pipeline.IngestDir(context.Background(), dir); err != nil {
		t.Fatalf("IngestDir: %v", err)
	}

	processed, err := repo.ListProcessed(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListProcessed: %v", err)
	}
	if len(processed) != 2 {
		t.Fatalf("processed documents: want=2 got=%d", len(processed))
	}
	failed, err := repo.ListByStatus(context.Background(), nil, types.DocStatusFailed)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("failed documents: want=1 got=%d", len(failed))
	}
	if index.Len() == 0 {
		t.Fatal("index empty after batch ingest")
	}
}
