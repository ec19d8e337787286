//go:build govips && cgo

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/dunamismax/ppmkit/internal/grid"
	"github.com/dunamismax/ppmkit/internal/ppm"
)

// govipsExporter encodes PNG, JPEG and WebP through libvips and hands every
// other format to the imaging exporter.
type govipsExporter struct {
	cfg      ExportConfig
	fallback imagingExporter
}

func (e govipsExporter) Emit(ctx context.Context, req Request, g *grid.Grid) (Output, error) {
	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	default:
	}

	format, err := exportFormat(req.Output)
	if err != nil {
		return Output{}, err
	}
	switch format {
	case "png", "jpeg", "webp":
	default:
		return e.fallback.Emit(ctx, req, g)
	}

	if _, _, err := scaledSize(g, e.cfg.scale()); err != nil {
		return Output{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, g.ToImage()); err != nil {
		return Output{}, fmt.Errorf("stage grid for libvips: %w", err)
	}
	img, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return Output{}, fmt.Errorf("load grid into libvips: %w", err)
	}
	defer img.Close()

	if s := e.cfg.scale(); s > 1 {
		if err := img.Resize(float64(s), vips.KernelNearest); err != nil {
			return Output{}, fmt.Errorf("scale image: %w", err)
		}
	}

	data, err := exportGovipsImage(img, format, e.cfg.quality())
	if err != nil {
		return Output{}, err
	}
	if err := os.WriteFile(req.Output, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("%w: write %s: %v", ppm.ErrIO, req.Output, err)
	}

	return Output{
		Format: format,
		Path:   req.Output,
		Bytes:  int64(len(data)),
		Width:  img.Width(),
		Height: img.Height(),
	}, nil
}

func exportGovipsImage(img *vips.ImageRef, format string, quality int) ([]byte, error) {
	switch format {
	case "jpeg":
		params := vips.NewJpegExportParams()
		params.Quality = quality
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case "png":
		data, _, err := img.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case "webp":
		params := vips.NewWebpExportParams()
		params.Quality = quality
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
