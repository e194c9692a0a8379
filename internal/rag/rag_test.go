package rag

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/chunker"
	"pdfrag/internal/faults"
	"pdfrag/internal/models"
	"pdfrag/internal/vectordb"
)

// wordVector is a deterministic bag-of-words embedding: texts sharing words
// land close under cosine similarity, which is all retrieval needs here.
func wordVector(text string) []float32 {
	vec := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%64]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

type fakeEmbedder struct {
	textsErr error
	queryErr error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.textsErr != nil {
		return nil, f.textsErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = wordVector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return wordVector(text), nil
}

// fakeGenerator answers with the best-matching chunk verbatim and cites
// exactly what it was given, like the real generator does.
type fakeGenerator struct {
	err error
}

func (g *fakeGenerator) Answer(_ context.Context, question string, hits []models.Hit, _ []models.Turn) (models.Turn, error) {
	if g.err != nil {
		return models.Turn{}, g.err
	}
	answer := "The document does not cover it."
	if len(hits) > 0 {
		answer = hits[0].Chunk.Content
	}
	return models.Turn{Question: question, Answer: answer, Sources: hits}, nil
}

func newTestSession(t *testing.T) (*Session, *fakeEmbedder, *fakeGenerator) {
	t.Helper()
	splitter, err := chunker.New(1000, 200)
	require.NoError(t, err)
	embedder := &fakeEmbedder{}
	generator := &fakeGenerator{}
	session := NewSession(vectordb.NewMemoryStore(), embedder, generator, splitter, 4)
	return session, embedder, generator
}

func makePDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Arial", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.MultiCell(190, 10, text, "", "L", false)
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestSessionProcessAndAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldAnswerFromAnIndexedPDFAndCiteThePage", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		data := makePDF(t,
			"Alpine meadows bloom during late spring in the high valleys.",
			"The capital of France is Paris.",
			"Deep ocean currents circulate slowly around the globe.",
		)
		require.NoError(t, session.Process(ctx, "travel.pdf", data))
		assert.Equal(t, StateReady, session.State())
		assert.Equal(t, "travel.pdf", session.Source())
		assert.GreaterOrEqual(t, session.ChunkCount(), 3)

		turn, err := session.Ask(ctx, "What is the capital of France?")
		require.NoError(t, err)
		assert.Contains(t, turn.Answer, "Paris")

		citedPages := make(map[int]bool)
		for _, h := range turn.Sources {
			citedPages[h.Chunk.Page] = true
		}
		assert.True(t, citedPages[2], "expected a page-2 chunk among the citations")

		require.Len(t, session.History(), 1)
		assert.Equal(t, StateReady, session.State())
	})

	t.Run("ShouldRejectQuestionsBeforeAnyDocumentIsProcessed", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		_, err := session.Ask(ctx, "What is the capital of France?")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoDocument))
		assert.Contains(t, faults.UserMessage(err), "no document indexed")
	})

	t.Run("ShouldReplaceThePreviousCollectionOnNewUpload", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		require.NoError(t, session.Process(ctx, "first.txt", []byte("Penguins huddle together through the antarctic winter storms.")))
		require.NoError(t, session.Process(ctx, "second.txt", []byte("Volcanic soil grows exceptional coffee on steep terraced slopes.")))

		assert.Equal(t, "second.txt", session.Source())
		assert.Empty(t, session.History(), "replacing the document clears the conversation")

		// A question about the discarded document must only surface
		// chunks from the current one.
		turn, err := session.Ask(ctx, "Where do penguins huddle in winter?")
		require.NoError(t, err)
		for _, h := range turn.Sources {
			assert.Equal(t, "second.txt", h.Chunk.Source)
		}
	})

	t.Run("ShouldKeepThePriorCollectionWhenProcessingFails", func(t *testing.T) {
		session, embedder, _ := newTestSession(t)
		require.NoError(t, session.Process(ctx, "good.txt", []byte("Lighthouses guided sailors along the rocky northern coast.")))

		embedder.textsErr = faults.Newf(faults.KindTransient, "embed texts", "connection refused")
		err := session.Process(ctx, "bad.txt", []byte("This one never makes it in."))
		require.Error(t, err)

		assert.Equal(t, StateReady, session.State())
		assert.Equal(t, "good.txt", session.Source())

		turn, err := session.Ask(ctx, "Who guided sailors along the coast?")
		require.NoError(t, err)
		require.NotEmpty(t, turn.Sources)
		assert.Equal(t, "good.txt", turn.Sources[0].Chunk.Source)
	})

	t.Run("ShouldStayIdleWhenTheFirstProcessingFails", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		err := session.Process(ctx, "junk.pdf", []byte("not a pdf"))
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindIngest))
		assert.Equal(t, StateIdle, session.State())

		_, err = session.Ask(ctx, "anything?")
		assert.True(t, errors.Is(err, ErrNoDocument))
	})

	t.Run("ShouldSurfaceFatalEmbeddingFailuresOnAsk", func(t *testing.T) {
		session, embedder, _ := newTestSession(t)
		require.NoError(t, session.Process(ctx, "doc.txt", []byte("Some indexed content about gardens.")))

		embedder.queryErr = faults.Newf(faults.KindFatal, "embed query", "401 unauthorized")
		_, err := session.Ask(ctx, "What about gardens?")
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindFatal))
		assert.Equal(t, StateReady, session.State(), "a failed question returns to Ready")
		assert.Empty(t, session.History())
	})

	t.Run("ShouldAppendTurnsInOrder", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		require.NoError(t, session.Process(ctx, "doc.txt", []byte("Honeybees dance to share the location of nectar.")))

		_, err := session.Ask(ctx, "What do honeybees do?")
		require.NoError(t, err)
		_, err = session.Ask(ctx, "Why do they dance?")
		require.NoError(t, err)

		history := session.History()
		require.Len(t, history, 2)
		assert.Equal(t, "What do honeybees do?", history[0].Question)
		assert.Equal(t, "Why do they dance?", history[1].Question)
	})

	t.Run("ShouldClearHistoryAndReset", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		require.NoError(t, session.Process(ctx, "doc.txt", []byte("Tidal pools host anemones and hermit crabs.")))
		_, err := session.Ask(ctx, "What lives in tidal pools?")
		require.NoError(t, err)

		session.ClearHistory()
		assert.Empty(t, session.History())
		assert.Equal(t, StateReady, session.State())

		require.NoError(t, session.Reset(ctx))
		assert.Equal(t, StateIdle, session.State())
		assert.Empty(t, session.Source())
		_, err = session.Ask(ctx, "anything?")
		assert.True(t, errors.Is(err, ErrNoDocument))
	})

	t.Run("ShouldServeStateReadsWhileAnswering", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		require.NoError(t, session.Process(ctx, "doc.txt", []byte("Glaciers carve valleys over thousands of years.")))

		// The UI reads history and state from its event loop while an
		// answer is produced on a background goroutine; both sides must be
		// able to run concurrently.
		const questions = 25
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < questions; i++ {
				_, err := session.Ask(ctx, "How do glaciers carve valleys?")
				assert.NoError(t, err)
			}
		}()
		for i := 0; i < 200; i++ {
			_ = session.History()
			_ = session.State()
			_ = session.Source()
			_ = session.ChunkCount()
		}
		wg.Wait()

		assert.Len(t, session.History(), questions)
		assert.Equal(t, StateReady, session.State())
	})

	t.Run("ShouldReturnAtMostTopKSources", func(t *testing.T) {
		splitter, err := chunker.New(60, 10)
		require.NoError(t, err)
		session := NewSession(vectordb.NewMemoryStore(), &fakeEmbedder{}, &fakeGenerator{}, splitter, 4)

		var sb strings.Builder
		for i := 0; i < 40; i++ {
			sb.WriteString("Migratory birds navigate by starlight and magnetic fields. ")
		}
		require.NoError(t, session.Process(ctx, "birds.txt", []byte(sb.String())))
		require.Greater(t, session.ChunkCount(), 4)

		turn, err := session.Ask(ctx, "How do migratory birds navigate?")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(turn.Sources), 4)
		assert.NotEmpty(t, turn.Sources)
	})
}
