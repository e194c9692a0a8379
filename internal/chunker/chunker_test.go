package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/models"
)

func longText(sentences int) string {
	var sb strings.Builder
	for i := 0; i < sentences; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog near the riverbank. ")
	}
	return sb.String()
}

func TestNew(t *testing.T) {
	t.Run("ShouldRejectNonPositiveSize", func(t *testing.T) {
		_, err := New(0, 0)
		require.Error(t, err)
	})
	t.Run("ShouldRejectNegativeOverlap", func(t *testing.T) {
		_, err := New(100, -1)
		require.Error(t, err)
	})
	t.Run("ShouldRejectOverlapNotSmallerThanSize", func(t *testing.T) {
		_, err := New(100, 100)
		require.Error(t, err)
	})
}

func TestSplit(t *testing.T) {
	t.Run("ShouldReturnSingleChunkForShortPage", func(t *testing.T) {
		s, err := New(1000, 200)
		require.NoError(t, err)
		chunks := s.Split("doc.pdf", []models.Page{{Number: 1, Text: "short page"}})
		require.Len(t, chunks, 1)
		assert.Equal(t, "short page", chunks[0].Content)
		assert.Equal(t, 1, chunks[0].Page)
	})

	t.Run("ShouldBoundEveryChunkBySize", func(t *testing.T) {
		s, err := New(200, 40)
		require.NoError(t, err)
		chunks := s.Split("doc.pdf", []models.Page{{Number: 1, Text: longText(50)}})
		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c.Content), 200)
		}
	})

	t.Run("ShouldReconstructPageTextAfterOverlapRemoval", func(t *testing.T) {
		const overlap = 40
		s, err := New(200, overlap)
		require.NoError(t, err)
		pages := []models.Page{
			{Number: 1, Text: longText(30)},
			{Number: 2, Text: "tiny"},
			{Number: 3, Text: strings.Repeat("abcdefghij", 100)}, // no natural boundaries
		}
		chunks := s.Split("doc.pdf", pages)

		for _, page := range pages {
			var rebuilt strings.Builder
			first := true
			for _, c := range chunks {
				if c.Page != page.Number {
					continue
				}
				if first {
					rebuilt.WriteString(c.Content)
					first = false
					continue
				}
				rebuilt.WriteString(c.Content[overlap:])
			}
			assert.Equal(t, page.Text, rebuilt.String(), "page %d", page.Number)
		}
	})

	t.Run("ShouldOverlapConsecutiveChunks", func(t *testing.T) {
		const overlap = 40
		s, err := New(200, overlap)
		require.NoError(t, err)
		chunks := s.Split("doc.pdf", []models.Page{{Number: 1, Text: longText(30)}})
		require.Greater(t, len(chunks), 1)
		for i := 1; i < len(chunks); i++ {
			prev := chunks[i-1].Content
			tail := prev[len(prev)-overlap:]
			assert.Equal(t, tail, chunks[i].Content[:overlap])
		}
	})

	t.Run("ShouldNotEndAChunkMidRune", func(t *testing.T) {
		const overlap = 24
		// Size is not a multiple of the rune width, so every hard cut
		// would land mid-rune without the boundary retreat. No spaces or
		// periods, so every cut is a hard cut.
		s, err := New(100, overlap)
		require.NoError(t, err)
		text := strings.Repeat("日本語の長い文章", 40)
		chunks := s.Split("doc.pdf", []models.Page{{Number: 1, Text: text}})
		require.Greater(t, len(chunks), 1)

		for i, c := range chunks {
			r, _ := utf8.DecodeLastRuneInString(c.Content)
			assert.NotEqual(t, utf8.RuneError, r, "chunk %d ends mid-rune", i)
		}

		var rebuilt strings.Builder
		rebuilt.WriteString(chunks[0].Content)
		for _, c := range chunks[1:] {
			rebuilt.WriteString(c.Content[overlap:])
		}
		assert.Equal(t, text, rebuilt.String())
	})

	t.Run("ShouldKeepPageOrderAndDeterministicIDs", func(t *testing.T) {
		s, err := New(100, 20)
		require.NoError(t, err)
		pages := []models.Page{
			{Number: 1, Text: longText(5)},
			{Number: 3, Text: longText(5)},
		}
		first := s.Split("doc.pdf", pages)
		second := s.Split("doc.pdf", pages)
		require.Equal(t, first, second)

		lastPage := 0
		for _, c := range first {
			assert.GreaterOrEqual(t, c.Page, lastPage)
			lastPage = c.Page
			assert.Equal(t, "doc.pdf", c.Source)
			assert.NotEmpty(t, c.ID)
		}
	})

	t.Run("ShouldSkipEmptyPages", func(t *testing.T) {
		s, err := New(100, 20)
		require.NoError(t, err)
		chunks := s.Split("doc.pdf", []models.Page{{Number: 1, Text: ""}})
		assert.Empty(t, chunks)
	})
}
