package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/dunamismax/ppmkit/internal/grid"
	"github.com/dunamismax/ppmkit/internal/ppm"
	"github.com/dunamismax/ppmkit/internal/transform"
)

const defaultJPEGQuality = 90

type ExportConfig struct {
	// Quality applies to lossy formats; values outside 1..100 use the default.
	Quality int
	// Scale is an integer nearest-neighbour upscale factor. 0 means 1.
	Scale int
}

func (c ExportConfig) quality() int {
	if c.Quality <= 0 || c.Quality > 100 {
		return defaultJPEGQuality
	}
	return c.Quality
}

func (c ExportConfig) scale() int {
	if c.Scale == 0 {
		return 1
	}
	return c.Scale
}

// exportFormat maps the output extension to a format name.
func exportFormat(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		return "webp", nil
	}
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return strings.ToLower(f.String()), nil
}

// scaledSize validates the grid for export and returns the output size.
func scaledSize(g *grid.Grid, scale int) (int, int, error) {
	if g.Len() == 0 {
		return 0, 0, fmt.Errorf("%w: cannot export an empty %dx%d image", transform.ErrInvalidParameter, g.Width(), g.Height())
	}
	if scale < 1 {
		return 0, 0, fmt.Errorf("%w: scale %d must be at least 1", transform.ErrInvalidParameter, scale)
	}
	if scale > 1 && g.Len() > grid.MaxPixels/(scale*scale) {
		return 0, 0, fmt.Errorf("%w: scale %d too large for %dx%d", transform.ErrInvalidParameter, scale, g.Width(), g.Height())
	}
	return g.Width() * scale, g.Height() * scale, nil
}

// imagingExporter encodes with the formats supported by disintegration/imaging.
type imagingExporter struct {
	cfg ExportConfig
}

func (e imagingExporter) Emit(ctx context.Context, req Request, g *grid.Grid) (Output, error) {
	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	default:
	}

	format, err := exportFormat(req.Output)
	if err != nil {
		return Output{}, err
	}
	if format == "webp" {
		return Output{}, fmt.Errorf("%w: webp export requires the govips build", ErrUnsupportedFormat)
	}

	width, height, err := scaledSize(g, e.cfg.scale())
	if err != nil {
		return Output{}, err
	}

	var img image.Image = g.ToImage()
	if width != g.Width() || height != g.Height() {
		img = imaging.Resize(img, width, height, imaging.NearestNeighbor)
	}

	if err := imaging.Save(img, req.Output, imaging.JPEGQuality(e.cfg.quality())); err != nil {
		return Output{}, fmt.Errorf("%w: save %s: %v", ppm.ErrIO, req.Output, err)
	}
	info, err := os.Stat(req.Output)
	if err != nil {
		return Output{}, fmt.Errorf("%w: stat %s: %v", ppm.ErrIO, req.Output, err)
	}

	return Output{
		Format: format,
		Path:   req.Output,
		Bytes:  info.Size(),
		Width:  width,
		Height: height,
	}, nil
}
