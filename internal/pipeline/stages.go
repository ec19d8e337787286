package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dunamismax/ppmkit/internal/grid"
	"github.com/dunamismax/ppmkit/internal/ppm"
)

// PPMFetcher decodes the request input as a P3 file.
type PPMFetcher struct{}

func (PPMFetcher) Fetch(ctx context.Context, req Request) (*grid.Grid, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return ppm.DecodeFile(req.Input)
}

// ImageFetcher decodes the request input with any registered image decoder
// and flattens it to 8-bit RGB.
type ImageFetcher struct{}

func (ImageFetcher) Fetch(ctx context.Context, req Request) (*grid.Grid, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img, err := imaging.Open(req.Input)
	if err != nil {
		var pathErr *fs.PathError
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ppm.ErrFileNotFound, req.Input)
		case errors.As(err, &pathErr):
			return nil, fmt.Errorf("%w: open %s: %v", ppm.ErrIO, req.Input, err)
		default:
			return nil, fmt.Errorf("%w: decode %s: %v", ppm.ErrMalformedInput, req.Input, err)
		}
	}

	g, err := grid.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ppm.ErrMalformedInput, req.Input, err)
	}
	return g, nil
}

// PPMEmitter writes the grid as a P3 file.
type PPMEmitter struct{}

func (PPMEmitter) Emit(ctx context.Context, req Request, g *grid.Grid) (Output, error) {
	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	default:
	}

	n, err := ppm.EncodeFile(req.Output, g)
	if err != nil {
		return Output{}, err
	}
	return Output{
		Format: "ppm",
		Path:   req.Output,
		Bytes:  n,
		Width:  g.Width(),
		Height: g.Height(),
	}, nil
}
