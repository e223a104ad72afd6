package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/MeKo-Tech/spreadmap/internal/assets"
	"github.com/MeKo-Tech/spreadmap/internal/config"
	"github.com/MeKo-Tech/spreadmap/internal/offer"
	"github.com/MeKo-Tech/spreadmap/internal/session"
)

// workspace bundles the stores every command works against.
type workspace struct {
	cfg     *config.Config
	fs      afero.Fs
	assets  *assets.FSStore
	store   *session.SQLiteStore
	session *session.Session
}

func openWorkspace(ctx context.Context, cfg *config.Config) (*workspace, error) {
	if dir := filepath.Dir(cfg.Storage.StateDB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	store, err := session.OpenSQLite(ctx, cfg.Storage.StateDB)
	if err != nil {
		return nil, err
	}
	sess, err := session.Open(ctx, store, session.WithDefaultPadding(cfg.Detector.DefaultPaddingPx))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &workspace{
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		assets:  assets.NewDirStore(cfg.Storage.AssetsDir),
		store:   store,
		session: sess,
	}, nil
}

func (w *workspace) Close() error {
	if err := w.session.Flush(context.Background()); err != nil {
		slog.Warn("flushing detection state", "error", err)
	}
	return w.store.Close()
}

// selectPage activates page of pdfID; page 0 keeps the entry's selected page.
func (w *workspace) selectPage(ctx context.Context, pdfID string, page int) error {
	entry, ok := w.session.Entry(pdfID)
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrUnknownPDF, pdfID)
	}
	if page <= 0 {
		page = max(entry.SelectedPage, 1)
	}
	return w.session.Select(ctx, pdfID, page)
}

// loadParser builds the offer parser from the configured brand dictionary.
func loadParser(fs afero.Fs, cfg *config.Config) (*offer.Parser, error) {
	if cfg.Extraction.BrandsFile == "" {
		return offer.NewParser(offer.Dictionary{}), nil
	}
	dict, err := offer.LoadDictionaryFile(fs, cfg.Extraction.BrandsFile)
	if err != nil {
		return nil, err
	}
	slog.Debug("brand dictionary loaded", "path", cfg.Extraction.BrandsFile, "brands", len(dict.Brands))
	return offer.NewParser(dict), nil
}
