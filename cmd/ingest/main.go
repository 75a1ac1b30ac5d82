package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/inktime/support-backend/internal/app"
	"github.com/inktime/support-backend/internal/types"
)

// One-shot batch ingestion: registers every supported file in a directory
// and processes them, then reports per-document status.
func main() {
	dir := flag.String("dir", "documents", "directory of files to ingest")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()
	if err := application.Pipeline.IngestDir(ctx, *dir); err != nil {
		application.Log.Error("Batch ingestion failed", "dir", *dir, "error", err)
		os.Exit(1)
	}

	processed, err := application.Repos.Documents.ListByStatus(ctx, nil, types.DocStatusProcessed)
	if err != nil {
		application.Log.Error("Failed to list processed documents", "error", err)
		os.Exit(1)
	}
	failed, err := application.Repos.Documents.ListByStatus(ctx, nil, types.DocStatusFailed)
	if err != nil {
		application.Log.Error("Failed to list failed documents", "error", err)
		os.Exit(1)
	}

	application.Log.Info("Batch ingestion finished",
		"dir", *dir,
		"processed", len(processed),
		"failed", len(failed),
		"index_entries", application.Index.Len(),
	)
	for _, doc := range failed {
		application.Log.Warn("Document failed", "path", doc.FilePath, "error", doc.ProcessingError)
	}
	if len(failed) > 0 {
		os.Exit(1)
	}
}
