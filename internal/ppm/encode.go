package ppm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dunamismax/ppmkit/internal/grid"
)

// EncodeFile writes g to path, creating or truncating it. It returns the
// number of bytes written.
func EncodeFile(path string, g *grid.Grid) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", ErrIO, path, err)
	}

	n, err := Encode(f, g)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: close %s: %v", ErrIO, path, closeErr)
	}
	if err != nil {
		return n, fmt.Errorf("encode %s: %w", path, err)
	}
	return n, nil
}

// Encode writes g to w as P3 with maxval 255 and one "r g b" line per pixel.
func Encode(w io.Writer, g *grid.Grid) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	fmt.Fprintf(bw, "%s\n%d %d\n%d\n", Magic, g.Width(), g.Height(), MaxValue)

	line := make([]byte, 0, len("255 255 255\n"))
	g.Each(func(_, _ int, c grid.RGB) {
		line = line[:0]
		line = strconv.AppendUint(line, uint64(c.R), 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(c.G), 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(c.B), 10)
		line = append(line, '\n')
		bw.Write(line)
	})

	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
