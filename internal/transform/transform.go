// Package transform implements the pixel-level operations applied by ppmkit.
//
// Every function takes a source grid and returns a new grid; the source is
// never modified. Geometric parameters that fall outside the source fail with
// ErrOutOfBounds or ErrInvalidParameter instead of being clamped or wrapped.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/ppmkit/internal/grid"
)

var (
	ErrOutOfBounds      = errors.New("region out of bounds")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Channel selects one color component.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// ParseChannel accepts "red", "green", "blue" or their first letter.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "red":
		return Red, nil
	case "g", "green":
		return Green, nil
	case "b", "blue":
		return Blue, nil
	default:
		return 0, fmt.Errorf("%w: channel %q", ErrInvalidParameter, s)
	}
}

// Axis selects the direction of mirror and repeat.
type Axis int

const (
	// Horizontal works on rows: mirror reflects about the horizontal midline
	// and repeat stacks copies side by side.
	Horizontal Axis = iota
	// Vertical works on columns.
	Vertical
)

func (a Axis) String() string {
	switch a {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// ParseAxis accepts "H", "V", "horizontal" or "vertical" in any case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h", "horizontal":
		return Horizontal, nil
	case "v", "vertical":
		return Vertical, nil
	default:
		return 0, fmt.Errorf("%w: axis %q, want H or V", ErrInvalidParameter, s)
	}
}

// ZeroChannel sets channel ch of every pixel to 0.
func ZeroChannel(src *grid.Grid, ch Channel) (*grid.Grid, error) {
	var zero func(grid.RGB) grid.RGB
	switch ch {
	case Red:
		zero = func(c grid.RGB) grid.RGB { c.R = 0; return c }
	case Green:
		zero = func(c grid.RGB) grid.RGB { c.G = 0; return c }
	case Blue:
		zero = func(c grid.RGB) grid.RGB { c.B = 0; return c }
	default:
		return nil, fmt.Errorf("%w: channel %v", ErrInvalidParameter, ch)
	}
	return src.Map(zero), nil
}

// Grayscale replaces every channel with the truncated mean (r+g+b)/3.
func Grayscale(src *grid.Grid) *grid.Grid {
	return src.Map(func(c grid.RGB) grid.RGB {
		v := uint8((int(c.R) + int(c.G) + int(c.B)) / 3)
		return grid.RGB{R: v, G: v, B: v}
	})
}

// Invert replaces every channel value v with 255-v.
func Invert(src *grid.Grid) *grid.Grid {
	return src.Map(func(c grid.RGB) grid.RGB {
		return grid.RGB{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B}
	})
}

// Crop returns the width x height region whose top-left pixel is (x, y).
func Crop(src *grid.Grid, x, y, width, height int) (*grid.Grid, error) {
	switch {
	case x < 0 || y < 0:
		return nil, fmt.Errorf("%w: crop origin (%d,%d) is negative", ErrOutOfBounds, x, y)
	case width <= 0 || height <= 0:
		return nil, fmt.Errorf("%w: crop size %dx%d must be positive", ErrInvalidParameter, width, height)
	case width > src.Width() || x > src.Width()-width:
		return nil, fmt.Errorf("%w: crop x=%d width=%d exceeds source width %d", ErrOutOfBounds, x, width, src.Width())
	case height > src.Height() || y > src.Height()-height:
		return nil, fmt.Errorf("%w: crop y=%d height=%d exceeds source height %d", ErrOutOfBounds, y, height, src.Height())
	}

	return grid.Build(width, height, func(j, i int) grid.RGB {
		return src.At(x+j, y+i)
	})
}
