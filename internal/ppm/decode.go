package ppm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/dunamismax/ppmkit/internal/grid"
)

// DecodeFile opens path and decodes it as a P3 image.
func DecodeFile(path string) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	g, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return g, nil
}

// Decode reads one P3 image from r. Tokens after the last pixel other than
// comments are rejected.
func Decode(r io.Reader) (*grid.Grid, error) {
	s := newScanner(r)

	magic, err := s.token("magic number")
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: magic number %q, want %q", ErrMalformedInput, magic, Magic)
	}

	width, err := s.int("width")
	if err != nil {
		return nil, err
	}
	height, err := s.int("height")
	if err != nil {
		return nil, err
	}
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrMalformedInput, width, height)
	}
	if _, err := s.int("max value"); err != nil {
		return nil, err
	}
	if err := grid.CheckDimensions(width, height); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	// Grow with the input instead of trusting the header's pixel count.
	want := width * height
	pix := make([]grid.RGB, 0, min(want, initialPixelCap))
	for i := 0; i < want; i++ {
		var c [3]uint8
		for ch := range c {
			v, err := s.channel(i)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, fmt.Errorf("%w: header declares %dx%d (%d pixels) but only %d complete pixels present",
						ErrMalformedInput, width, height, want, i)
				}
				return nil, err
			}
			c[ch] = v
		}
		pix = append(pix, grid.RGB{R: c[0], G: c[1], B: c[2]})
	}

	if extra, err := s.next(); err == nil {
		return nil, fmt.Errorf("%w: unexpected token %q after %d pixels", ErrMalformedInput, extra, want)
	} else if !errors.Is(err, io.EOF) {
		return nil, err
	}

	g, err := grid.Adopt(width, height, pix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return g, nil
}

const initialPixelCap = 1 << 16

// scanner splits a P3 stream into tokens, dropping '#' comments.
type scanner struct {
	r *bufio.Reader
}

func newScanner(r io.Reader) *scanner {
	return &scanner{r: bufio.NewReader(r)}
}

// next returns the next token or io.EOF when the stream is exhausted.
func (s *scanner) next() (string, error) {
	var tok []byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(tok) > 0 {
					return string(tok), nil
				}
				return "", io.EOF
			}
			return "", fmt.Errorf("%w: read: %v", ErrIO, err)
		}

		switch {
		case b == '#':
			if err := s.skipLine(); err != nil {
				return "", err
			}
			if len(tok) > 0 {
				return string(tok), nil
			}
		case isSpace(b):
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

func (s *scanner) skipLine() error {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: read: %v", ErrIO, err)
		}
		if b == '\n' || b == '\r' {
			return nil
		}
	}
}

func (s *scanner) token(field string) (string, error) {
	tok, err := s.next()
	if errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedInput, field)
	}
	return tok, err
}

func (s *scanner) int(field string) (int, error) {
	tok, err := s.token(field)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrMalformedInput, field, tok)
	}
	return v, nil
}

// channel reads one channel value of pixel i. io.EOF is returned unwrapped
// so the caller can report the pixel count.
func (s *scanner) channel(i int) (uint8, error) {
	tok, err := s.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: pixel %d value %q is not an integer", ErrMalformedInput, i, tok)
	}
	if v < 0 || v > MaxValue {
		return 0, fmt.Errorf("%w: pixel %d value %d outside [0,%d]", ErrMalformedInput, i, v, MaxValue)
	}
	return uint8(v), nil
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
