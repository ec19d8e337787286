package ppm

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/dunamismax/ppmkit/internal/grid"
)

func sampleGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.FromRows([][]grid.RGB{
		{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}},
		{{12, 34, 56}, {0, 0, 0}, {255, 255, 255}},
	})
	if err != nil {
		t.Fatalf("build sample grid: %v", err)
	}
	return g
}

func TestEncodeFormat(t *testing.T) {
	var buf bytes.Buffer
	n, err := Encode(&buf, sampleGrid(t))
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	want := "P3\n3 2\n255\n" +
		"255 0 0\n0 255 0\n0 0 255\n" +
		"12 34 56\n0 0 0\n255 255 255\n"
	if buf.String() != want {
		t.Fatalf("unexpected encoding:\n%s\nwant:\n%s", buf.String(), want)
	}
	if n != int64(len(want)) {
		t.Fatalf("expected %d bytes written, got %d", len(want), n)
	}
}

func TestDecode(t *testing.T) {
	input := "P3\n3 2\n255\n255 0 0  0 255 0\n0 0 255 12 34 56\n0 0 0\n255\n255 255\n"
	g, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !g.Equal(sampleGrid(t)) {
		t.Fatalf("decoded grid differs: %v", g.Rows())
	}
}

func TestRoundTrip(t *testing.T) {
	src, err := grid.Build(17, 9, func(x, y int) grid.RGB {
		return grid.RGB{R: uint8(x * 15), G: uint8(y * 28), B: uint8((x * y) % 256)}
	})
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}

	var buf bytes.Buffer
	if _, err := Encode(&buf, src); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !src.Equal(decoded) {
		t.Fatal("round trip changed pixel values")
	}
}

func TestDecode_Comments(t *testing.T) {
	input := "P3 # plain ppm\n# created by hand\n2 1 # size\n255\n1 2 3 # first\n4 5 6#second\n"
	g, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if g.At(0, 0) != (grid.RGB{1, 2, 3}) || g.At(1, 0) != (grid.RGB{4, 5, 6}) {
		t.Fatalf("unexpected pixels: %v", g.Rows())
	}
}

func TestDecode_EmptyImage(t *testing.T) {
	g, err := Decode(strings.NewReader("P3\n0 4\n255\n"))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if g.Width() != 0 || g.Height() != 4 {
		t.Fatalf("dimensions: got %dx%d, want 0x4", g.Width(), g.Height())
	}
}

func TestDecode_MaxValueNotRescaled(t *testing.T) {
	g, err := Decode(strings.NewReader("P3\n1 1\n15\n200 100 50\n"))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if g.At(0, 0) != (grid.RGB{200, 100, 50}) {
		t.Fatalf("pixel rescaled: got %+v", g.At(0, 0))
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong magic", "P6\n1 1\n255\n0 0 0\n"},
		{"missing height", "P3\n3"},
		{"missing max value", "P3\n1 1\n"},
		{"non-numeric width", "P3\nx 1\n255\n0 0 0\n"},
		{"non-numeric max value", "P3\n1 1\nmax\n0 0 0\n"},
		{"negative width", "P3\n-1 1\n255\n"},
		{"too few pixels", "P3\n3 2\n255\n" + strings.Repeat("1 2 3\n", 5)},
		{"partial pixel", "P3\n1 1\n255\n1 2\n"},
		{"too many pixels", "P3\n1 1\n255\n1 2 3\n4 5 6\n"},
		{"non-numeric pixel", "P3\n1 1\n255\n1 two 3\n"},
		{"channel above 255", "P3\n1 1\n255\n256 0 0\n"},
		{"negative channel", "P3\n1 1\n255\n0 -1 0\n"},
		{"oversized header", "P3\n100000 100000\n255\n"},
		{"zero width huge height", "P3\n0 9000000000000000000\n255\n"},
		{"huge width zero height", "P3\n9000000000000000000 0\n255\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("expected ErrMalformedInput, got %v", err)
			}
		})
	}
}

func TestDecode_PixelCountMismatchMessage(t *testing.T) {
	input := "P3\n3 2\n255\n" + strings.Repeat("9 9 9\n", 5)
	_, err := Decode(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error for short pixel data")
	}
	if !strings.Contains(err.Error(), "3x2") || !strings.Contains(err.Error(), "only 5") {
		t.Fatalf("expected message naming declared size and pixel count, got %q", err.Error())
	}
}

func TestDecode_LargeHeaderShortBody(t *testing.T) {
	// 16384x16384 is exactly grid.MaxPixels; the body holds a single pixel.
	input := "P3\n16384 16384\n255\n1 2 3\n"

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := Decode(strings.NewReader(input))
	runtime.ReadMemStats(&after)

	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if grew := after.TotalAlloc - before.TotalAlloc; grew > 16<<20 {
		t.Fatalf("expected decode of a one-pixel body to allocate little, got %d bytes", grew)
	}
}

func TestDecodeFile_NotFound(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "missing.ppm"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestDecodeFile_MalformedNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ppm")
	if err := os.WriteFile(path, []byte("P3\n2 2\n255\n0 0 0\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	_, err := DecodeFile(path)
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to name %s, got %q", path, err.Error())
	}
}

func TestEncodeFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ppm")
	src := sampleGrid(t)

	n, err := EncodeFile(path, src)
	if err != nil {
		t.Fatalf("EncodeFile returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() != n {
		t.Fatalf("expected %d bytes on disk, got %d", n, info.Size())
	}

	decoded, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile returned error: %v", err)
	}
	if !src.Equal(decoded) {
		t.Fatal("file round trip changed pixel values")
	}
}

func TestEncodeFile_Unwritable(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"directory", dir},
		{"missing parent", filepath.Join(dir, "no", "such", "dir", "out.ppm")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeFile(tt.path, sampleGrid(t))
			if !errors.Is(err, ErrIO) {
				t.Fatalf("expected ErrIO, got %v", err)
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestEncode_WriterFailure(t *testing.T) {
	_, err := Encode(failingWriter{}, sampleGrid(t))
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}
