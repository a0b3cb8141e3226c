// Package indexer loads meeting record files into a search engine collection.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openmeetings/meetsearch/internal/engine"
	"go.uber.org/zap"
)

// Indexer recreates the meetings collection and imports validated records through a Loader.
type Indexer struct {
	loader engine.Loader
	logger *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for skipped records and import progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer writing to loader.
func NewIndexer(loader engine.Loader, opts ...IndexerOption) *Indexer {
	idx := &Indexer{loader: loader, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	return idx
}

// Report summarizes one import run.
type Report struct {
	Path     string                 `json:"path"`
	Total    int                    `json:"total"`
	Skipped  int                    `json:"skipped"`
	Imported int                    `json:"imported"`
	Failures []engine.ImportFailure `json:"failures,omitempty"`
}

// IndexFile reads a JSON array of meeting records from path and replaces the collection with
// its valid records. Invalid records are logged and skipped. Imported is the collection's
// document count after the import.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (*Report, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open meetings file: %w", err)
	}
	defer f.Close()

	docs, invalid, err := ParseRecords(f)
	if err != nil {
		return nil, err
	}
	for _, rec := range invalid {
		idx.logger.Warn("skipping invalid meeting record",
			zap.String("path", absPath),
			zap.Int("index", rec.Index),
			zap.String("id", rec.ID),
			zap.Error(rec.Err))
	}

	report, err := idx.Index(ctx, docs)
	if err != nil {
		return nil, err
	}
	report.Path = absPath
	report.Total = len(docs) + len(invalid)
	report.Skipped = len(invalid)
	return report, nil
}

// Index recreates the collection and imports docs.
func (idx *Indexer) Index(ctx context.Context, docs []*engine.Document) (*Report, error) {
	idx.logger.Info("creating meetings collection")
	if err := idx.loader.Recreate(ctx); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	res, err := idx.loader.Import(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to import meetings: %w", err)
	}
	for _, f := range res.Failures {
		idx.logger.Warn("error importing meeting", zap.String("id", f.ID), zap.String("error", f.Error))
	}

	count, err := idx.loader.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count meetings: %w", err)
	}
	idx.logger.Info("meeting import finished", zap.Int("imported", count), zap.Int("total", len(docs)))
	return &Report{Total: len(docs), Imported: count, Failures: res.Failures}, nil
}

// Clear deletes the collection. It reports false without error when there was nothing to
// delete.
func (idx *Indexer) Clear(ctx context.Context) (bool, error) {
	err := idx.loader.Drop(ctx)
	if errors.Is(err, engine.ErrNotFound) {
		idx.logger.Info("could not find collection")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete collection: %w", err)
	}
	idx.logger.Info("deleted collection")
	return true, nil
}
