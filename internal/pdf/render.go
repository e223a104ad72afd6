package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
)

// Renderer backend names.
const (
	RendererFitz     = "fitz"
	RendererEmbedded = "embedded"
	RendererAuto     = "auto"
)

// RenderOptions control the output raster.
type RenderOptions struct {
	Scale            float64
	DevicePixelRatio float64
}

func (o RenderOptions) normalized() RenderOptions {
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.DevicePixelRatio <= 0 {
		o.DevicePixelRatio = 1
	}
	return o
}

// Rendered is a page raster plus the viewport that maps it back to points.
type Rendered struct {
	Image    image.Image
	Viewport geometry.Viewport
}

// Renderer rasterises one page of a PDF held in memory.
type Renderer interface {
	Name() string
	Render(ctx context.Context, data []byte, page int, opts RenderOptions) (Rendered, error)
}

// NewRenderer returns the named backend. "auto" tries MuPDF first and falls
// back to the page's largest embedded image.
func NewRenderer(name string) (Renderer, error) {
	switch name {
	case RendererFitz:
		return FitzRenderer{}, nil
	case RendererEmbedded:
		return EmbeddedImageRenderer{}, nil
	case "", RendererAuto:
		return ChainRenderer{FitzRenderer{}, EmbeddedImageRenderer{}}, nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", name)
	}
}

// pageSize reads the MediaBox of page n through the text reader.
func pageSize(data []byte, n int) (float64, float64, error) {
	doc, err := OpenText(data)
	if err != nil {
		return 0, 0, err
	}
	defer doc.Close()
	p, err := doc.Page(n)
	if err != nil {
		return 0, 0, err
	}
	w, h := p.Size()
	return w, h, nil
}

// FitzRenderer renders with MuPDF.
type FitzRenderer struct{}

func (FitzRenderer) Name() string { return RendererFitz }

func (FitzRenderer) Render(ctx context.Context, data []byte, page int, opts RenderOptions) (Rendered, error) {
	if err := ctx.Err(); err != nil {
		return Rendered{}, err
	}
	opts = opts.normalized()

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return Rendered{}, fmt.Errorf("fitz open: %w", err)
	}
	defer func() { _ = doc.Close() }()

	if page < 1 || page > doc.NumPage() {
		return Rendered{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, doc.NumPage())
	}
	w, h, err := pageSize(data, page)
	if err != nil {
		bound, berr := doc.Bound(page - 1)
		if berr != nil {
			return Rendered{}, fmt.Errorf("fitz bound page %d: %w", page, berr)
		}
		w, h = float64(bound.Dx()), float64(bound.Dy())
	}

	img, err := doc.ImageDPI(page-1, 72*opts.Scale*opts.DevicePixelRatio)
	if err != nil {
		return Rendered{}, fmt.Errorf("fitz render page %d: %w", page, err)
	}
	return Rendered{
		Image: img,
		Viewport: geometry.Viewport{
			Scale:            opts.Scale,
			PageWidth:        w,
			PageHeight:       h,
			DevicePixelRatio: opts.DevicePixelRatio,
		},
	}, nil
}

// EmbeddedImageRenderer uses the largest image embedded on the page, which
// for scanned spreads is the page itself. The image is resized to the
// requested scale.
type EmbeddedImageRenderer struct{}

func (EmbeddedImageRenderer) Name() string { return RendererEmbedded }

func (EmbeddedImageRenderer) Render(ctx context.Context, data []byte, page int, opts RenderOptions) (Rendered, error) {
	if err := ctx.Err(); err != nil {
		return Rendered{}, err
	}
	opts = opts.normalized()

	w, h, err := pageSize(data, page)
	if err != nil {
		return Rendered{}, err
	}

	dir, err := os.MkdirTemp("", "spreadmap-extract-*")
	if err != nil {
		return Rendered{}, fmt.Errorf("create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	src := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return Rendered{}, fmt.Errorf("write temp pdf: %w", err)
	}
	out := filepath.Join(dir, "images")
	if err := os.Mkdir(out, 0o700); err != nil {
		return Rendered{}, fmt.Errorf("create image directory: %w", err)
	}
	if err := api.ExtractImagesFile(src, out, []string{strconv.Itoa(page)}, nil); err != nil {
		return Rendered{}, fmt.Errorf("extract images from page %d: %w", page, err)
	}

	img, err := largestImage(out)
	if err != nil {
		return Rendered{}, err
	}
	tw := int(math.Round(w * opts.Scale * opts.DevicePixelRatio))
	th := int(math.Round(h * opts.Scale * opts.DevicePixelRatio))
	return Rendered{
		Image: imaging.Resize(img, tw, th, imaging.Lanczos),
		Viewport: geometry.Viewport{
			Scale:            opts.Scale,
			PageWidth:        w,
			PageHeight:       h,
			DevicePixelRatio: opts.DevicePixelRatio,
		},
	}, nil
}

// largestImage decodes every image in dir and returns the one with the
// most pixels. Unreadable files are skipped.
func largestImage(dir string) (image.Image, error) {
	var best image.Image
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		img, err := imaging.Open(path)
		if err != nil {
			return nil
		}
		if best == nil || area(img) > area(best) {
			best = img
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, errors.New("page has no embedded images")
	}
	return best, nil
}

func area(img image.Image) int { return img.Bounds().Dx() * img.Bounds().Dy() }

// ChainRenderer tries each renderer in turn.
type ChainRenderer []Renderer

func (c ChainRenderer) Name() string { return RendererAuto }

func (c ChainRenderer) Render(ctx context.Context, data []byte, page int, opts RenderOptions) (Rendered, error) {
	var errs []error
	for _, r := range c {
		out, err := r.Render(ctx, data, page, opts)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return Rendered{}, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
	}
	if len(errs) == 0 {
		return Rendered{}, errors.New("no renderers configured")
	}
	return Rendered{}, errors.Join(errs...)
}
