// Package parser turns uploaded document bytes into ordered per-page text.
package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"

	"pdfrag/internal/faults"
	"pdfrag/internal/models"
)

// Parse extracts per-page text from an uploaded file. Pages come back in
// source order with their original page numbers; pages without extractable
// text are skipped. A document that yields no text at all (scanned-image
// PDFs, empty files) is an ingest fault.
func Parse(filename string, data []byte) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return parsePDF(filename, data)
	case ".docx":
		return parseDOCX(filename, data)
	case ".txt", ".md":
		return parseText(filename, data)
	default:
		return nil, faults.Newf(faults.KindIngest, "parse", "unsupported file format %q", ext)
	}
}

func parsePDF(filename string, data []byte) (pages []models.Page, err error) {
	// The pdf library panics on some malformed inputs; a bad upload must
	// surface as an ingest fault, not kill the session.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = faults.Newf(faults.KindIngest, "parse pdf", "malformed pdf %q: %v", filename, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, faults.New(faults.KindIngest, "parse pdf", fmt.Errorf("%q is not a parseable PDF: %w", filename, err))
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Str("file", filename).Msg("skipping unreadable page")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, models.Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, faults.Newf(faults.KindIngest, "parse pdf", "no extractable text in %q", filename)
	}
	return pages, nil
}

func parseDOCX(filename string, data []byte) ([]models.Page, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, faults.New(faults.KindIngest, "parse docx", fmt.Errorf("%q is not a parseable DOCX: %w", filename, err))
	}
	defer r.Close()

	content := r.Editable().GetContent()
	if strings.TrimSpace(content) == "" {
		return nil, faults.Newf(faults.KindIngest, "parse docx", "no extractable text in %q", filename)
	}
	// DOCX has no page numbers; the whole document is page 1.
	return []models.Page{{Number: 1, Text: content}}, nil
}

func parseText(filename string, data []byte) ([]models.Page, error) {
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, faults.Newf(faults.KindIngest, "parse text", "no extractable text in %q", filename)
	}
	return []models.Page{{Number: 1, Text: text}}, nil
}
