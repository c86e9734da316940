// Package extract turns uploaded documents into plain text for
// summarization.
package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Extractor reads uploaded documents from disk and produces their text.
// Extraction is capped at maxPages so a thousand-page upload cannot turn
// into a single giant prompt.
type Extractor struct {
	maxPages int
}

func New(maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = 50
	}
	return &Extractor{maxPages: maxPages}
}

// Document is the extraction outcome.
type Document struct {
	Text      string
	Pages     int
	PagesRead int
	Truncated bool
	MIMEType  string
}

// FromUpload writes the uploaded bytes to a temp file, sniffs the real
// type from magic bytes and extracts text. Only PDFs and plain text are
// accepted; the client-supplied filename is never trusted.
func (e *Extractor) FromUpload(data []byte) (*Document, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("application/pdf"):
		return e.fromPDF(data)
	case strings.HasPrefix(mtype.String(), "text/"):
		return &Document{Text: string(data), Pages: 1, PagesRead: 1, MIMEType: mtype.String()}, nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", mtype.String())
	}
}

func (e *Extractor) fromPDF(data []byte) (*Document, error) {
	tmp, err := os.CreateTemp("", "prism-upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	// pdfcpu validates the document while counting; a corrupt upload fails
	// here rather than deep inside extraction.
	total, err := api.PageCountFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	doc, err := fitz.New(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	limit := total
	if limit > e.maxPages {
		limit = e.maxPages
	}

	var sb strings.Builder
	for i := 0; i < limit; i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	return &Document{
		Text:      sb.String(),
		Pages:     total,
		PagesRead: limit,
		Truncated: limit < total,
		MIMEType:  "application/pdf",
	}, nil
}
