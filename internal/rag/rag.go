// Package rag orchestrates the pipeline: ingest, chunk, embed, index at
// processing time; embed, retrieve, generate at question time. A Session is
// the explicit per-session state the UI drives.
package rag

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pdfrag/internal/chunker"
	"pdfrag/internal/faults"
	"pdfrag/internal/models"
	"pdfrag/internal/parser"
	"pdfrag/internal/vectordb"
)

// ErrNoDocument is returned when a question arrives before any document has
// been processed.
var ErrNoDocument = errors.New("no document indexed, upload and process a document first")

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateProcessing
	StateReady
	StateAnswering
)

// Embedder converts texts and queries into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer from a question, retrieved hits and history.
type Generator interface {
	Answer(ctx context.Context, question string, hits []models.Hit, history []models.Turn) (models.Turn, error)
}

// Session holds one user's conversation: the current collection, its source
// document and the append-only turn history. Safe for concurrent use: the UI
// runs pipeline work in background goroutines while its event loop keeps
// reading session state, so every mutable field is guarded by mu. The lock
// is never held across an external call; Process and Ask snapshot what they
// need, work unlocked, and commit the result atomically.
type Session struct {
	store     vectordb.Store
	embedder  Embedder
	generator Generator
	splitter  *chunker.Splitter
	topK      int

	mu         sync.Mutex
	state      State
	collection string
	source     string
	chunkCount int
	history    []models.Turn
}

func NewSession(store vectordb.Store, embedder Embedder, generator Generator, splitter *chunker.Splitter, topK int) *Session {
	return &Session{
		store:     store,
		embedder:  embedder,
		generator: generator,
		splitter:  splitter,
		topK:      topK,
		state:     StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkCount
}

// History returns a copy of the conversation turns in order. A copy, so the
// caller can render it while a new turn is being appended.
func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.history...)
}

// Process indexes an uploaded document into a fresh collection and makes it
// the session's current one. The previous collection stays intact and
// queryable until the new index is complete, so a failed run never leaves a
// partial index behind.
func (s *Session) Process(ctx context.Context, filename string, data []byte) (retErr error) {
	s.mu.Lock()
	prior := s.state
	old := s.collection
	s.state = StateProcessing
	s.mu.Unlock()

	defer func() {
		if retErr != nil {
			s.mu.Lock()
			s.state = prior
			s.mu.Unlock()
		}
	}()

	name := filepath.Base(filename)
	pages, err := parser.Parse(name, data)
	if err != nil {
		return err
	}
	chunks := s.splitter.Split(name, pages)
	if len(chunks) == 0 {
		return faults.Newf(faults.KindIngest, "process", "document %q contains no extractable text", name)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}

	next := "doc-" + uuid.NewString()
	if err := s.store.Upsert(ctx, next, chunks, embeddings); err != nil {
		if dropErr := s.store.Drop(ctx, next); dropErr != nil {
			log.Warn().Err(dropErr).Str("collection", next).Msg("could not drop partial collection")
		}
		return err
	}

	if old != "" {
		if err := s.store.Drop(ctx, old); err != nil {
			// The new collection already replaced it; the stale one only
			// wastes disk until the next reset.
			log.Warn().Err(err).Str("collection", old).Msg("could not drop replaced collection")
		}
	}

	s.mu.Lock()
	s.collection = next
	s.source = name
	s.chunkCount = len(chunks)
	s.history = nil
	s.state = StateReady
	s.mu.Unlock()
	log.Info().Str("source", name).Int("chunks", len(chunks)).Int("pages", len(pages)).Msg("document indexed")
	return nil
}

// Ask answers a question from the indexed document and appends the turn to
// the history.
func (s *Session) Ask(ctx context.Context, question string) (models.Turn, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return models.Turn{}, ErrNoDocument
	}
	s.state = StateAnswering
	collection := s.collection
	history := append([]models.Turn(nil), s.history...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateReady
		s.mu.Unlock()
	}()

	hits, err := s.retrieve(ctx, collection, question)
	if err != nil {
		return models.Turn{}, err
	}
	turn, err := s.generator.Answer(ctx, question, hits, history)
	if err != nil {
		return models.Turn{}, err
	}
	s.mu.Lock()
	s.history = append(s.history, turn)
	s.mu.Unlock()
	return turn, nil
}

// retrieve embeds the question and asks the store for the top-k chunks. No
// ranking of its own beyond the store's similarity order.
func (s *Session) retrieve(ctx context.Context, collection, question string) ([]models.Hit, error) {
	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	return s.store.Query(ctx, collection, vector, s.topK)
}

// ClearHistory drops the conversation but keeps the indexed document.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Reset drops the collection and returns the session to Idle.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	collection := s.collection
	s.mu.Unlock()

	if collection != "" {
		if err := s.store.Drop(ctx, collection); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.collection = ""
	s.source = ""
	s.chunkCount = 0
	s.history = nil
	s.state = StateIdle
	s.mu.Unlock()
	return nil
}
