package transform

import (
	"fmt"

	"github.com/dunamismax/ppmkit/internal/grid"
)

// MirrorMode picks where the reflection starts.
type MirrorMode int

const (
	// MirrorSymmetric copies the first half onto the second half so the
	// result is symmetric about the midline.
	MirrorSymmetric MirrorMode = iota
	// MirrorLegacy starts one row (or column) past the midline, leaving the
	// element at index len/2 unchanged. Files produced by earlier releases of
	// the tool depend on it.
	MirrorLegacy
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorSymmetric:
		return "symmetric"
	case MirrorLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("MirrorMode(%d)", int(m))
	}
}

// Mirror reflects the first half of the grid onto the second half along axis.
//
// With Horizontal, row i for i >= start becomes row height-1-i; with
// Vertical the same applies to columns. start is len/2 for MirrorSymmetric
// and len/2+1 for MirrorLegacy.
func Mirror(src *grid.Grid, axis Axis, mode MirrorMode) (*grid.Grid, error) {
	if mode != MirrorSymmetric && mode != MirrorLegacy {
		return nil, fmt.Errorf("%w: mirror mode %v", ErrInvalidParameter, mode)
	}

	w, h := src.Width(), src.Height()
	switch axis {
	case Horizontal:
		start := mirrorStart(h, mode)
		return grid.Build(w, h, func(x, y int) grid.RGB {
			if y >= start {
				return src.At(x, h-1-y)
			}
			return src.At(x, y)
		})
	case Vertical:
		start := mirrorStart(w, mode)
		return grid.Build(w, h, func(x, y int) grid.RGB {
			if x >= start {
				return src.At(w-1-x, y)
			}
			return src.At(x, y)
		})
	default:
		return nil, fmt.Errorf("%w: axis %v", ErrInvalidParameter, axis)
	}
}

func mirrorStart(n int, mode MirrorMode) int {
	if mode == MirrorLegacy {
		return n/2 + 1
	}
	return n / 2
}

// Repeat tiles src n times along axis. Horizontal multiplies the width by n,
// Vertical multiplies the height.
func Repeat(src *grid.Grid, axis Axis, n int) (*grid.Grid, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: repeat count %d must be at least 1", ErrInvalidParameter, n)
	}

	w, h := src.Width(), src.Height()
	outW, outH := w, h
	switch axis {
	case Horizontal:
		if w > 0 && n > grid.MaxPixels/w {
			return nil, fmt.Errorf("%w: repeat count %d too large for width %d", ErrInvalidParameter, n, w)
		}
		outW = w * n
	case Vertical:
		if h > 0 && n > grid.MaxPixels/h {
			return nil, fmt.Errorf("%w: repeat count %d too large for height %d", ErrInvalidParameter, n, h)
		}
		outH = h * n
	default:
		return nil, fmt.Errorf("%w: axis %v", ErrInvalidParameter, axis)
	}

	out, err := grid.Build(outW, outH, func(x, y int) grid.RGB {
		return src.At(x%w, y%h)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return out, nil
}
