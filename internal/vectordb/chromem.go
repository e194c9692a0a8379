package vectordb

import (
	"context"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"pdfrag/internal/faults"
	"pdfrag/internal/models"
)

const compress = false

// ChromemStore persists collections under a directory on disk. Deleting the
// directory fully resets indexed state. Similarity is chromem's cosine
// similarity over normalized vectors.
type ChromemStore struct {
	db *chromem.DB
}

// NewChromemStore opens (or creates) the persistent database at path.
func NewChromemStore(path string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, faults.New(faults.KindStore, "open store", err)
	}
	return &ChromemStore{db: db}, nil
}

// NewMemoryStore returns a non-persistent store, used in tests.
func NewMemoryStore() *ChromemStore {
	return &ChromemStore{db: chromem.NewDB()}
}

func (s *ChromemStore) Upsert(ctx context.Context, collectionID string, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return faults.Newf(faults.KindStore, "upsert", "%d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}
	// The embedding func is never used: vectors always arrive precomputed.
	c, err := s.db.GetOrCreateCollection(collectionID, nil, noEmbed)
	if err != nil {
		return faults.New(faults.KindStore, "upsert", err)
	}
	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				"source": chunk.Source,
				"page":   strconv.Itoa(chunk.Page),
				"seq":    strconv.Itoa(chunk.Seq),
			},
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return faults.New(faults.KindStore, "upsert", err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, collectionID string, embedding []float32, k int) ([]models.Hit, error) {
	c := s.db.GetCollection(collectionID, noEmbed)
	if c == nil {
		return nil, faults.Newf(faults.KindStore, "query", "collection %q does not exist", collectionID)
	}
	// chromem rejects k larger than the collection.
	if n := c.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	results, err := c.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, faults.New(faults.KindStore, "query", err)
	}
	hits := make([]models.Hit, len(results))
	for i, r := range results {
		page, _ := strconv.Atoi(r.Metadata["page"])
		seq, _ := strconv.Atoi(r.Metadata["seq"])
		hits[i] = models.Hit{
			Chunk: models.Chunk{
				ID:      r.ID,
				Content: r.Content,
				Source:  r.Metadata["source"],
				Page:    page,
				Seq:     seq,
			},
			Similarity: r.Similarity,
		}
	}
	return hits, nil
}

func (s *ChromemStore) Drop(ctx context.Context, collectionID string) error {
	if s.db.GetCollection(collectionID, noEmbed) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(collectionID); err != nil {
		return faults.New(faults.KindStore, "drop", err)
	}
	return nil
}

func (s *ChromemStore) Close() error { return nil }

// noEmbed satisfies chromem's embedding-func parameter for collections that
// only ever receive precomputed vectors.
func noEmbed(_ context.Context, _ string) ([]float32, error) {
	return nil, faults.Newf(faults.KindStore, "embed", "store does not compute embeddings")
}
