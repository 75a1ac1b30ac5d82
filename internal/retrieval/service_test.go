package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/inktime/support-backend/internal/embedding"
	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/vectorindex"
)

func newTestService(t *testing.T, texts []string) (*Service, *embedding.LocalEmbedder) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	embedder := embedding.NewLocal(128)
	index, err := vectorindex.New(log, embedder.Dimension())
	if err != nil {
		t.Fatalf("vectorindex.New: %v", err)
	}
	if len(texts) > 0 {
		vecs, err := embedder.Embed(context.Background(), texts)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		entries := make([]vectorindex.Entry, len(texts))
		for i, text := range texts {
			entries[i] = vectorindex.Entry{Text: text, Source: "kb.txt", Position: i}
		}
		if err := index.Add(vecs, entries); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return NewService(log, embedder, index, DefaultMaxDistance), embedder
}

func TestRetrieveExactTextTopExcerpt(t *testing.T) {
	svc, _ := newTestService(t, []string{
		"Our support hours are 9 to 5.",
		"We ship within 3 business days.",
	})

	block, err := svc.Retrieve(context.Background(), "Our support hours are 9 to 5.", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !strings.HasPrefix(block, "--- DOCUMENT EXCERPT 1 ---\n") {
		t.Fatalf("block missing first excerpt label:\n%s", block)
	}
	first := strings.SplitN(block, "\n\n", 2)[0]
	if !strings.Contains(first, "Our support hours are 9 to 5.") {
		t.Fatalf("exact text not the top excerpt:\n%s", block)
	}
}

func TestRetrieveLabelsPreserveRankOrder(t *testing.T) {
	svc, _ := newTestService(t, []string{
		"refund policy details for orders",
		"refund policy summary",
		"the office plant is a ficus",
	})

	block, err := svc.Retrieve(context.Background(), "refund policy details", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	idx1 := strings.Index(block, "--- DOCUMENT EXCERPT 1 ---")
	idx2 := strings.Index(block, "--- DOCUMENT EXCERPT 2 ---")
	if idx1 < 0 || idx2 < 0 || idx2 < idx1 {
		t.Fatalf("excerpt labels out of order:\n%s", block)
	}
	if strings.Contains(block, "ficus") {
		t.Fatalf("unrelated chunk survived the threshold:\n%s", block)
	}
}

func TestRetrieveNoRelevantContent(t *testing.T) {
	svc, _ := newTestService(t, []string{
		"the mitochondria is the powerhouse of the cell",
	})

	_, err := svc.Retrieve(context.Background(), "zzqy wvxt plorb", 5)
	if !errors.Is(err, ErrNoRelevantContent) {
		t.Fatalf("want ErrNoRelevantContent, got %v", err)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Retrieve(context.Background(), "anything at all", 5)
	if !errors.Is(err, ErrNoRelevantContent) {
		t.Fatalf("want ErrNoRelevantContent, got %v", err)
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	svc, _ := newTestService(t, []string{"content"})

	if _, err := svc.Retrieve(context.Background(), "   ", 5); err == nil {
		t.Fatal("empty query: want error, got nil")
	}
}
