package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
)

type pageKey struct {
	asset string
	page  int
}

// DocumentCache holds open documents, their pages and text indexes for the
// lifetime of one batch run or one interactive selection.
type DocumentCache struct {
	mu      sync.Mutex
	open    Opener
	docs    map[string]Document
	pages   map[pageKey]Page
	indexes map[pageKey]*RunIndex
}

// NewDocumentCache creates an empty cache that opens documents with open.
func NewDocumentCache(open Opener) *DocumentCache {
	return &DocumentCache{
		open:    open,
		docs:    make(map[string]Document),
		pages:   make(map[pageKey]Page),
		indexes: make(map[pageKey]*RunIndex),
	}
}

// Open returns the cached document for assetID, opening it on first use.
// Failed opens are not cached.
func (c *DocumentCache) Open(ctx context.Context, assetID string) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked(ctx, assetID)
}

func (c *DocumentCache) openLocked(ctx context.Context, assetID string) (Document, error) {
	if doc, ok := c.docs[assetID]; ok {
		return doc, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := c.open(ctx, assetID)
	if err != nil {
		return nil, err
	}
	c.docs[assetID] = doc
	slog.Debug("pdf opened", "asset", assetID, "pages", doc.NumPages())
	return doc, nil
}

// Page returns page n of assetID.
func (c *DocumentCache) Page(ctx context.Context, assetID string, n int) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageLocked(ctx, assetID, n)
}

func (c *DocumentCache) pageLocked(ctx context.Context, assetID string, n int) (Page, error) {
	key := pageKey{assetID, n}
	if p, ok := c.pages[key]; ok {
		return p, nil
	}
	doc, err := c.openLocked(ctx, assetID)
	if err != nil {
		return nil, err
	}
	p, err := doc.Page(n)
	if err != nil {
		return nil, err
	}
	c.pages[key] = p
	return p, nil
}

// Index returns the text-run index of page n of assetID.
func (c *DocumentCache) Index(ctx context.Context, assetID string, n int) (*RunIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pageKey{assetID, n}
	if ix, ok := c.indexes[key]; ok {
		return ix, nil
	}
	p, err := c.pageLocked(ctx, assetID, n)
	if err != nil {
		return nil, err
	}
	runs, err := p.TextRuns()
	if err != nil {
		return nil, err
	}
	ix := NewRunIndex(runs)
	c.indexes[key] = ix
	return ix, nil
}

// Invalidate drops and closes everything cached for assetID.
func (c *DocumentCache) Invalidate(assetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.pages {
		if k.asset == assetID {
			delete(c.pages, k)
			delete(c.indexes, k)
		}
	}
	doc, ok := c.docs[assetID]
	if !ok {
		return nil
	}
	delete(c.docs, assetID)
	if err := doc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", assetID, err)
	}
	return nil
}

// CloseAll closes every cached document and empties the cache.
func (c *DocumentCache) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for id, doc := range c.docs {
		if err := doc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	clear(c.docs)
	clear(c.pages)
	clear(c.indexes)
	return errors.Join(errs...)
}

// Len returns the number of open documents.
func (c *DocumentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// TextExtractor reads region text through a DocumentCache so each page is
// decoded and indexed once.
type TextExtractor struct {
	cache *DocumentCache
}

// NewTextExtractor creates an extractor over cache.
func NewTextExtractor(cache *DocumentCache) *TextExtractor {
	return &TextExtractor{cache: cache}
}

// ExtractRegion returns the text inside rect on page n of assetID.
func (e *TextExtractor) ExtractRegion(ctx context.Context, assetID string, n int, rect geometry.PdfRect) (string, error) {
	ix, err := e.cache.Index(ctx, assetID, n)
	if err != nil {
		return "", err
	}
	return ix.Text(rect), nil
}

// ExtractRegionLines returns the layout lines inside rect on page n of
// assetID.
func (e *TextExtractor) ExtractRegionLines(ctx context.Context, assetID string, n int, rect geometry.PdfRect) ([]string, error) {
	ix, err := e.cache.Index(ctx, assetID, n)
	if err != nil {
		return nil, err
	}
	return ix.Lines(rect), nil
}
