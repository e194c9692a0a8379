package vectordb

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdfrag/internal/config"
	"pdfrag/internal/faults"
	"pdfrag/internal/models"
)

type pgEntry struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID           string    `bun:"id,pk"`
	CollectionID string    `bun:"collection_id,notnull"`
	Source       string    `bun:"source,notnull"`
	Page         int       `bun:"page,notnull"`
	Seq          int       `bun:"seq,notnull"`
	Content      string    `bun:"content,notnull"`
	Embedding    []float32 `bun:"embedding,notnull,type:vector(1536)"`
}

// PGVectorStore keeps collections in one Postgres table partitioned by a
// collection_id column, ordered at query time by the pgvector `<->`
// distance operator. Requires the pgvector extension.
type PGVectorStore struct {
	db *bun.DB
}

func NewPGVectorStore(cfg *config.PGVectorConfig) (*PGVectorStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	if _, err := db.NewCreateTable().Model((*pgEntry)(nil)).IfNotExists().Exec(context.Background()); err != nil {
		return nil, faults.New(faults.KindStore, "init store", err)
	}
	return &PGVectorStore{db: db}, nil
}

func (s *PGVectorStore) Upsert(ctx context.Context, collectionID string, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return faults.Newf(faults.KindStore, "upsert", "%d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}
	entries := make([]pgEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = pgEntry{
			ID:           chunk.ID,
			CollectionID: collectionID,
			Source:       chunk.Source,
			Page:         chunk.Page,
			Seq:          chunk.Seq,
			Content:      chunk.Content,
			Embedding:    embeddings[i],
		}
	}
	_, err := s.db.NewInsert().
		Model(&entries).
		On("CONFLICT (id) DO UPDATE").
		Set("collection_id = EXCLUDED.collection_id").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return faults.New(faults.KindStore, "upsert", err)
	}
	return nil
}

func (s *PGVectorStore) Query(ctx context.Context, collectionID string, embedding []float32, k int) ([]models.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	var entries []pgEntry
	// pgdialect renders []float32 as an array literal, which pgvector
	// accepts as vector input for the `<->` operand.
	err := s.db.NewSelect().
		Model(&entries).
		Where("collection_id = ?", collectionID).
		OrderExpr("embedding <-> ?", embedding).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, faults.New(faults.KindStore, "query", err)
	}
	// Similarity stays zero on this backend: `<->` is a distance, not a
	// similarity, and hits already arrive in relevance order.
	hits := make([]models.Hit, len(entries))
	for i, e := range entries {
		hits[i] = models.Hit{
			Chunk: models.Chunk{
				ID:      e.ID,
				Content: e.Content,
				Source:  e.Source,
				Page:    e.Page,
				Seq:     e.Seq,
			},
		}
	}
	return hits, nil
}

func (s *PGVectorStore) Drop(ctx context.Context, collectionID string) error {
	_, err := s.db.NewDelete().
		Model((*pgEntry)(nil)).
		Where("collection_id = ?", collectionID).
		Exec(ctx)
	if err != nil {
		return faults.New(faults.KindStore, "drop", err)
	}
	return nil
}

func (s *PGVectorStore) Close() error { return s.db.Close() }
