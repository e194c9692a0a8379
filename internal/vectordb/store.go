// Package vectordb persists chunk embeddings under named collections and
// serves nearest-neighbour lookups over them.
package vectordb

import (
	"context"

	"pdfrag/internal/config"
	"pdfrag/internal/faults"
	"pdfrag/internal/models"
)

// Store is the vector store contract. One collection holds the index of one
// processed document; queries never cross collections.
type Store interface {
	// Upsert inserts or replaces entries keyed by chunk ID.
	Upsert(ctx context.Context, collectionID string, chunks []models.Chunk, embeddings [][]float32) error
	// Query returns up to k hits ordered by descending similarity. Fewer
	// than k only when the collection holds fewer entries.
	Query(ctx context.Context, collectionID string, embedding []float32, k int) ([]models.Hit, error)
	// Drop removes a collection and all its entries. Dropping a collection
	// that does not exist is not an error.
	Drop(ctx context.Context, collectionID string) error
	Close() error
}

// New builds the configured store backend.
func New(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "chromem":
		return NewChromemStore(cfg.Path)
	case "pgvector":
		if cfg.PGVector == nil {
			return nil, faults.Newf(faults.KindStore, "init store", "pgvector selected but not configured")
		}
		return NewPGVectorStore(cfg.PGVector)
	default:
		return nil, faults.Newf(faults.KindStore, "init store", "unknown store type %q", cfg.Type)
	}
}
