package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/repos"
	"github.com/inktime/support-backend/internal/types"
)

// Worker polls for uploaded documents and runs them through the pipeline
// off the request path. A single loop processes one document at a time; the
// request-facing side only creates rows and polls the processed flag.
type Worker struct {
	log      *logger.Logger
	docs     repos.DocumentRepo
	pipeline *Pipeline
	interval time.Duration
}

func NewWorker(baseLog *logger.Logger, docs repos.DocumentRepo, pipeline *Pipeline, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		log:      baseLog.With("component", "IngestWorker"),
		docs:     docs,
		pipeline: pipeline,
		interval: interval,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting ingestion worker", "interval", w.interval)
	go w.runLoop(ctx)
}

func (w *Worker) runLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Ingestion worker stopped")
			return
		case <-ticker.C:
			// Drain the queue before sleeping again.
			for {
				doc, err := w.docs.ClaimNextUploaded(ctx, nil)
				if err != nil {
					w.log.Warn("ClaimNextUploaded failed", "error", err)
					break
				}
				if doc == nil {
					break
				}
				w.processSafely(ctx, doc)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processSafely keeps a panicking extractor from taking the worker loop
// down; the document is marked failed and the loop continues.
func (w *Worker) processSafely(ctx context.Context, doc *types.Document) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Document processing panic", "document_id", doc.ID, "panic", r)
			if err := w.docs.MarkFailed(ctx, nil, doc.ID, fmt.Sprintf("panic: %v", r)); err != nil {
				w.log.Error("Failed to record document failure", "document_id", doc.ID, "error", err)
			}
		}
	}()
	_ = w.pipeline.ProcessDocument(ctx, doc)
}
