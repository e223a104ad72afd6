// Package pdf opens catalogue PDFs, reads their text layer, and renders
// pages for region detection.
package pdf

import (
	"context"
	"errors"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
)

// ErrPageOutOfRange is returned for page numbers outside 1..NumPages.
var ErrPageOutOfRange = errors.New("page out of range")

// TextRun is one positioned string of the text layer, in PDF points with a
// bottom-left origin. Rect.Y is the baseline and Rect.Height the font size.
type TextRun struct {
	Text string
	Rect geometry.PdfRect
}

// Page is a single page of an open document.
type Page interface {
	Number() int
	Size() (width, height float64)
	TextRuns() ([]TextRun, error)
}

// Document is an open PDF. Pages are 1-based.
type Document interface {
	NumPages() int
	Page(n int) (Page, error)
	Close() error
}

// Opener opens the document stored under an asset id.
type Opener func(ctx context.Context, assetID string) (Document, error)
