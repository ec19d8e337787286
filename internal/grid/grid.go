// Package grid holds the decoded in-memory image: a rectangular, row-major
// array of 8-bit RGB pixels.
//
// A Grid is fully validated when constructed and has no exported mutators.
// Operations that change pixels build and return a new Grid, so two grids
// never share storage.
package grid

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// MaxPixels bounds the number of pixels a single grid may hold.
const MaxPixels = 1 << 28

var ErrInvalidDimensions = errors.New("invalid grid dimensions")

// RGB is one pixel. Each channel is an 8-bit intensity.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Grid is an immutable width x height image stored in a flat row-major buffer.
type Grid struct {
	width  int
	height int
	pix    []RGB
}

// New returns a black grid of the given size.
func New(width, height int) (*Grid, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	return &Grid{
		width:  width,
		height: height,
		pix:    make([]RGB, width*height),
	}, nil
}

// FromPixels builds a grid from a row-major pixel slice. The slice is copied.
func FromPixels(width, height int, pix []RGB) (*Grid, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: %d pixels supplied for %dx%d", ErrInvalidDimensions, len(pix), width, height)
	}
	owned := make([]RGB, len(pix))
	copy(owned, pix)
	return &Grid{width: width, height: height, pix: owned}, nil
}

// Adopt builds a grid that takes ownership of pix without copying it. The
// caller must not use pix afterwards.
func Adopt(width, height int, pix []RGB) (*Grid, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: %d pixels supplied for %dx%d", ErrInvalidDimensions, len(pix), width, height)
	}
	return &Grid{width: width, height: height, pix: pix}, nil
}

// FromRows builds a grid from rows of pixels. Every row must have the same
// length; an empty slice yields a 0x0 grid.
func FromRows(rows [][]RGB) (*Grid, error) {
	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}

	pix := make([]RGB, 0, width*height)
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d pixels, want %d", ErrInvalidDimensions, y, len(row), width)
		}
		pix = append(pix, row...)
	}
	return &Grid{width: width, height: height, pix: pix}, nil
}

// Build returns a width x height grid whose pixel at (x, y) is fn(x, y).
// fn is called in row-major order.
func Build(width, height int, fn func(x, y int) RGB) (*Grid, error) {
	g, err := New(width, height)
	if err != nil {
		return nil, err
	}
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.pix[i] = fn(x, y)
			i++
		}
	}
	return g, nil
}

// FromImage converts any image.Image to a grid. Colors are converted to
// non-premultiplied 8-bit RGB and alpha is discarded.
func FromImage(img image.Image) (*Grid, error) {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(bounds)
		draw.Draw(nrgba, bounds, img, bounds.Min, draw.Src)
	}

	return Build(bounds.Dx(), bounds.Dy(), func(x, y int) RGB {
		c := nrgba.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
		return RGB{R: c.R, G: c.G, B: c.B}
	})
}

// CheckDimensions reports whether a width x height grid may be built. Each
// side is capped on its own, so a zero-width grid cannot claim billions of
// rows.
func CheckDimensions(width, height int) error {
	return checkDimensions(width, height)
}

func checkDimensions(width, height int) error {
	switch {
	case width < 0 || height < 0:
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	case width > MaxPixels || height > MaxPixels:
		return fmt.Errorf("%w: %dx%d has a side longer than %d", ErrInvalidDimensions, width, height, MaxPixels)
	case width > 0 && height > MaxPixels/width:
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidDimensions, width, height, MaxPixels)
	}
	return nil
}

// Width returns the number of columns.
func (g *Grid) Width() int {
	return g.width
}

// Height returns the number of rows.
func (g *Grid) Height() int {
	return g.height
}

// Len returns width*height.
func (g *Grid) Len() int {
	return len(g.pix)
}

// At returns the pixel in column x of row y. It panics when (x, y) is
// outside the grid, like slice indexing.
func (g *Grid) At(x, y int) RGB {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		panic(fmt.Sprintf("grid: (%d,%d) outside %dx%d", x, y, g.width, g.height))
	}
	return g.pix[y*g.width+x]
}

// Row returns a copy of row y.
func (g *Grid) Row(y int) []RGB {
	if y < 0 || y >= g.height {
		panic(fmt.Sprintf("grid: row %d outside height %d", y, g.height))
	}
	row := make([]RGB, g.width)
	copy(row, g.pix[y*g.width:(y+1)*g.width])
	return row
}

// Rows returns a copy of the pixels as a slice of rows.
func (g *Grid) Rows() [][]RGB {
	rows := make([][]RGB, g.height)
	for y := range rows {
		rows[y] = g.Row(y)
	}
	return rows
}

// Each calls fn for every pixel in row-major order.
func (g *Grid) Each(fn func(x, y int, c RGB)) {
	i := 0
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			fn(x, y, g.pix[i])
			i++
		}
	}
}

// Map returns a same-size grid with fn applied to every pixel.
func (g *Grid) Map(fn func(RGB) RGB) *Grid {
	out := &Grid{width: g.width, height: g.height, pix: make([]RGB, len(g.pix))}
	for i, c := range g.pix {
		out.pix[i] = fn(c)
	}
	return out
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	return g.Map(func(c RGB) RGB { return c })
}

// Equal reports whether both grids have the same size and pixels.
func (g *Grid) Equal(other *Grid) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.width != other.width || g.height != other.height {
		return false
	}
	for i := range g.pix {
		if g.pix[i] != other.pix[i] {
			return false
		}
	}
	return true
}

// ToImage returns an opaque *image.NRGBA copy of the grid with bounds at the
// origin.
func (g *Grid) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.width, g.height))
	g.Each(func(x, y int, c RGB) {
		img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
	})
	return img
}

func (g *Grid) String() string {
	return fmt.Sprintf("grid %dx%d", g.width, g.height)
}
