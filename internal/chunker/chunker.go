// Package chunker splits page text into overlapping fixed-size windows.
package chunker

import (
	"fmt"
	"unicode/utf8"

	"pdfrag/internal/models"
)

// Splitter cuts text into windows of at most size bytes, each repeating the
// previous window's last overlap bytes. Windows are never trimmed, so a
// page's text is reconstructible by concatenating its windows with the
// first overlap bytes of every non-initial window removed.
type Splitter struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: size must be greater than zero")
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap cannot be negative")
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

// Split chunks the pages of one document in page order. Chunk IDs are
// deterministic so reprocessing the same document upserts in place.
func (s *Splitter) Split(source string, pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	seq := 0
	for _, p := range pages {
		for _, w := range s.windows(p.Text) {
			seq++
			chunks = append(chunks, models.Chunk{
				ID:      fmt.Sprintf("%s-p%d-c%d", source, p.Number, seq),
				Content: w,
				Source:  source,
				Page:    p.Number,
				Seq:     seq,
			})
		}
	}
	return chunks
}

func (s *Splitter) windows(content string) []string {
	if content == "" {
		return nil
	}
	// A page shorter than one window is a single chunk.
	if len(content) <= s.size {
		return []string{content}
	}

	var out []string
	start := 0
	for {
		end := start + s.size
		if end >= len(content) {
			out = append(out, content[start:])
			return out
		}
		end = s.breakPoint(content, start, end)
		out = append(out, content[start:end])
		start = end - s.overlap
	}
}

// breakPoint walks back over the tail of a window looking for a space,
// newline or sentence end, so cuts land on natural boundaries when one is
// near. Without one it still retreats to the nearest rune start, so a hard
// cut never splits a multi-byte rune. Never retreats into the overlap
// region, which guarantees forward progress.
func (s *Splitter) breakPoint(content string, start, end int) int {
	lookBack := s.size / 10
	for i := end; i > end-lookBack && i-1 > start+s.overlap; i-- {
		switch content[i-1] {
		case ' ', '\n', '.':
			return i
		}
	}
	for !utf8.RuneStart(content[end]) && end-1 > start+s.overlap {
		end--
	}
	return end
}
