// Package assets stores the binary blobs (PDFs, page images) the pipeline
// reads by opaque id.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp" // register BMP decoder
)

// ErrAssetMissing is returned when no blob exists for an id.
var ErrAssetMissing = errors.New("asset missing")

// Store reads and writes blobs by id.
type Store interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte) error
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// FSStore keeps one file per asset under a root directory.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore creates a store rooted at root on fs.
func NewFSStore(fs afero.Fs, root string) *FSStore {
	return &FSStore{fs: fs, root: root}
}

// NewDirStore creates a store backed by an OS directory.
func NewDirStore(dir string) *FSStore {
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), dir), "/")
}

func (s *FSStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid asset id %q", id)
	}
	return path.Join(s.root, id), nil
}

// Get returns the blob for id, or ErrAssetMissing.
func (s *FSStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAssetMissing, id)
		}
		return nil, fmt.Errorf("read asset %s: %w", id, err)
	}
	return data, nil
}

// Put stores data under id, replacing any previous blob.
func (s *FSStore) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("write asset %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a blob is stored under id.
func (s *FSStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.path(id)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

// Delete removes the blob for id. Deleting a missing asset is not an error.
func (s *FSStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return nil
}

// DecodeImage decodes a PNG, JPEG or BMP blob.
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}
