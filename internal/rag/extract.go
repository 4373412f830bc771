// Package rag – text extraction
//
// Uploaded knowledge-base files arrive as raw bytes; this file turns them
// into plain text. Plain text passes through (with a UTF-8 sanity pass),
// PDFs go through page-by-page extraction. Anything else is rejected with
// ErrUnsupportedType.
package rag

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for file types the pipeline cannot read.
var ErrUnsupportedType = errors.New("unsupported file type: only .txt and .pdf are accepted")

// ErrEmptyDocument is returned when extraction produced no usable text.
var ErrEmptyDocument = errors.New("document contains no extractable text")

const maxPDFPages = 500

// SupportedType reports whether the declared content type or filename
// extension maps to a reader. Ingestion checks this before creating the
// document row, so a rejected upload leaves nothing behind.
func SupportedType(filename, contentType string) bool {
	name := strings.ToLower(filename)
	switch {
	case contentType == "text/plain" || strings.HasSuffix(name, ".txt"):
		return true
	case contentType == "application/pdf" || strings.HasSuffix(name, ".pdf"):
		return true
	}
	return false
}

// ExtractText returns the plain text of an uploaded file. The decision is
// made on the declared content type first, falling back to the filename
// extension since browsers are unreliable about MIME types.
func ExtractText(filename, contentType string, data []byte) (string, error) {
	name := strings.ToLower(filename)
	switch {
	case contentType == "text/plain" || strings.HasSuffix(name, ".txt"):
		return extractPlainText(data)
	case contentType == "application/pdf" || strings.HasSuffix(name, ".pdf"):
		return extractPDFText(data)
	default:
		return "", ErrUnsupportedType
	}
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text file is not valid UTF-8")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// extractPDFText pulls plain text from every page, joining pages with a
// blank line. Pages that fail extraction are skipped rather than failing
// the whole document; scanned PDFs without a text layer end up empty and
// surface as ErrEmptyDocument.
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	if total == 0 {
		return "", ErrEmptyDocument
	}
	if total > maxPDFPages {
		return "", fmt.Errorf("pdf has %d pages, limit is %d", total, maxPDFPages)
	}

	var pages []string
	for n := 1; n <= total; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			pages = append(pages, t)
		}
	}

	text := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}
