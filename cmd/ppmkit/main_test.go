package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/dunamismax/ppmkit/internal/analysis"
	"github.com/dunamismax/ppmkit/internal/domain"
	"github.com/dunamismax/ppmkit/internal/grid"
	"github.com/dunamismax/ppmkit/internal/pipeline"
	"github.com/dunamismax/ppmkit/internal/ppm"
	"github.com/dunamismax/ppmkit/internal/transform"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) result {
	t.Helper()
	t.Setenv("PPMKIT_LOG_LEVEL", "error")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// writeFixture writes a 3x2 image whose pixels are all distinct.
func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	g, err := grid.FromRows([][]grid.RGB{
		{{R: 10, G: 20, B: 30}, {R: 40, G: 50, B: 60}, {R: 70, G: 80, B: 90}},
		{{R: 255, G: 0, B: 0}, {R: 0, G: 255, B: 0}, {R: 0, G: 0, B: 255}},
	})
	if err != nil {
		t.Fatalf("build fixture: %v", err)
	}
	path := filepath.Join(dir, "in.ppm")
	if _, err := ppm.EncodeFile(path, g); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func readGrid(t *testing.T, path string) *grid.Grid {
	t.Helper()
	g, err := ppm.DecodeFile(path)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return g
}

func TestRun_TransformCommands(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)
	src := readGrid(t, in)

	tests := []struct {
		name string
		args func(out string) []string
		want func() (*grid.Grid, error)
	}{
		{
			name: "zerored",
			args: func(out string) []string { return []string{"zerored", in, out} },
			want: func() (*grid.Grid, error) { return transform.ZeroChannel(src, transform.Red) },
		},
		{
			name: "grayscale",
			args: func(out string) []string { return []string{"grayscale", in, out} },
			want: func() (*grid.Grid, error) { return transform.Grayscale(src), nil },
		},
		{
			name: "invert",
			args: func(out string) []string { return []string{"invert", in, out} },
			want: func() (*grid.Grid, error) { return transform.Invert(src), nil },
		},
		{
			name: "crop",
			args: func(out string) []string { return []string{"crop", "1", "0", "2", "2", in, out} },
			want: func() (*grid.Grid, error) { return transform.Crop(src, 1, 0, 2, 2) },
		},
		{
			name: "mirror",
			args: func(out string) []string { return []string{"mirror", "V", in, out} },
			want: func() (*grid.Grid, error) {
				return transform.Mirror(src, transform.Vertical, transform.MirrorSymmetric)
			},
		},
		{
			name: "mirror legacy",
			args: func(out string) []string { return []string{"mirror", "--legacy", "h", in, out} },
			want: func() (*grid.Grid, error) {
				return transform.Mirror(src, transform.Horizontal, transform.MirrorLegacy)
			},
		},
		{
			name: "repeat",
			args: func(out string) []string { return []string{"repeat", "H", "3", in, out} },
			want: func() (*grid.Grid, error) { return transform.Repeat(src, transform.Horizontal, 3) },
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, fmt.Sprintf("out-%d.ppm", i))
			res := runCLI(t, tt.args(out)...)
			if res.code != exitOK {
				t.Fatalf("expected exit 0, got %d: %s", res.code, res.stderr)
			}
			want, err := tt.want()
			if err != nil {
				t.Fatalf("build expected grid: %v", err)
			}
			got := readGrid(t, out)
			if !got.Equal(want) {
				t.Fatalf("output mismatch (-want +got):\n%s", cmp.Diff(want.Rows(), got.Rows()))
			}
		})
	}
}

func TestRun_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)
	out := filepath.Join(dir, "out.ppm")

	malformed := filepath.Join(dir, "bad.ppm")
	if err := os.WriteFile(malformed, []byte("P3\n3 2\n255\n1 2 3\n"), 0o644); err != nil {
		t.Fatalf("write malformed input: %v", err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, exitUsage},
		{"unknown command", []string{"sharpen", in, out}, exitUsage},
		{"missing arguments", []string{"invert", in}, exitUsage},
		{"unknown flag", []string{"invert", "--fast", in, out}, exitUsage},
		{"non-integer crop", []string{"crop", "a", "0", "1", "1", in, out}, exitUsage},
		{"non-integer repeat", []string{"repeat", "H", "twice", in, out}, exitUsage},
		{"missing input", []string{"invert", filepath.Join(dir, "nope.ppm"), out}, exitNotFound},
		{"malformed input", []string{"invert", malformed, out}, exitMalformed},
		{"crop out of bounds", []string{"crop", "2", "0", "2", "1", in, out}, exitBadArgument},
		{"crop zero width", []string{"crop", "0", "0", "0", "1", in, out}, exitBadArgument},
		{"crop negative origin", []string{"crop", "-1", "0", "1", "1", in, out}, exitBadArgument},
		{"crop negative origin verbose", []string{"crop", "0", "-3", "1", "1", "-v", in, out}, exitBadArgument},
		{"crop huge origin", []string{"crop", "9223372036854775807", "0", "1", "1", in, out}, exitBadArgument},
		{"crop huge width", []string{"crop", "1", "0", "9223372036854775807", "1", in, out}, exitBadArgument},
		{"repeat negative", []string{"repeat", "H", "-2", in, out}, exitBadArgument},
		{"bad axis", []string{"mirror", "X", in, out}, exitBadArgument},
		{"repeat zero", []string{"repeat", "V", "0", in, out}, exitBadArgument},
		{"unwritable output", []string{"invert", in, filepath.Join(dir, "missing", "out.ppm")}, exitIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.args...)
			if res.code != tt.want {
				t.Fatalf("expected exit %d, got %d (stderr %q)", tt.want, res.code, res.stderr)
			}
			if !strings.HasPrefix(res.stderr, "ppmkit: ") && !strings.Contains(res.stderr, "\nppmkit: ") {
				t.Fatalf("expected one-line error on stderr, got %q", res.stderr)
			}
			if res.stdout != "" {
				t.Fatalf("expected nothing on stdout, got %q", res.stdout)
			}
		})
	}
}

func TestRun_ErrorNamesParameter(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)

	res := runCLI(t, "crop", "2", "0", "5", "1", in, filepath.Join(dir, "out.ppm"))
	if !strings.Contains(res.stderr, "out of bounds") {
		t.Fatalf("expected out of bounds message, got %q", res.stderr)
	}
}

func TestProtectNegativeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"no negatives", []string{"crop", "1", "0", "1", "1", "a", "b"}, []string{"crop", "1", "0", "1", "1", "a", "b"}},
		{"negative origin", []string{"crop", "-1", "0", "1", "1", "a", "b"}, []string{"crop", "--", "-1", "0", "1", "1", "a", "b"}},
		{"flags kept", []string{"-v", "crop", "0", "-2", "--verbose", "1", "1", "a", "b"}, []string{"-v", "crop", "--verbose", "--", "0", "-2", "1", "1", "a", "b"}},
		{"repeat", []string{"repeat", "H", "-3", "a", "b"}, []string{"repeat", "--", "H", "-3", "a", "b"}},
		{"other command", []string{"invert", "-1", "b"}, []string{"invert", "-1", "b"}},
		{"explicit terminator", []string{"crop", "--", "-1", "0", "1", "1", "a", "b"}, []string{"crop", "--", "-1", "0", "1", "1", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, protectNegativeArgs(tt.in)); diff != "" {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{usageErrorf("bad"), exitUsage},
		{fmt.Errorf("fetch stage: %w", ppm.ErrFileNotFound), exitNotFound},
		{fmt.Errorf("fetch stage: %w", ppm.ErrMalformedInput), exitMalformed},
		{transform.ErrOutOfBounds, exitBadArgument},
		{transform.ErrInvalidParameter, exitBadArgument},
		{domain.ErrInvalidStep, exitBadArgument},
		{pipeline.ErrUnsupportedFormat, exitBadArgument},
		{fmt.Errorf("emit stage: %w", ppm.ErrIO), exitIO},
		{errors.New("boom"), exitFailure},
		{context.Canceled, exitFailure},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestRun_ExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)
	png := filepath.Join(dir, "out.png")
	back := filepath.Join(dir, "back.ppm")

	if res := runCLI(t, "export", in, png); res.code != exitOK {
		t.Fatalf("export: exit %d: %s", res.code, res.stderr)
	}
	if res := runCLI(t, "import", png, back); res.code != exitOK {
		t.Fatalf("import: exit %d: %s", res.code, res.stderr)
	}
	if !readGrid(t, back).Equal(readGrid(t, in)) {
		t.Fatal("expected PNG round trip to be lossless")
	}
}

func TestRun_ExportScaleAndQuality(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)
	png := filepath.Join(dir, "big.png")
	back := filepath.Join(dir, "big.ppm")

	if res := runCLI(t, "export", "--scale", "2", in, png); res.code != exitOK {
		t.Fatalf("export: exit %d: %s", res.code, res.stderr)
	}
	if res := runCLI(t, "import", png, back); res.code != exitOK {
		t.Fatalf("import: exit %d: %s", res.code, res.stderr)
	}
	g := readGrid(t, back)
	if g.Width() != 6 || g.Height() != 4 {
		t.Fatalf("expected 6x4 after scale 2, got %dx%d", g.Width(), g.Height())
	}

	res := runCLI(t, "export", "--quality", "0", in, filepath.Join(dir, "out.jpg"))
	if res.code != exitUsage {
		t.Fatalf("expected usage exit for quality 0, got %d", res.code)
	}
	res = runCLI(t, "export", in, filepath.Join(dir, "out.xyz"))
	if res.code != exitBadArgument {
		t.Fatalf("expected exit %d for unknown extension, got %d", exitBadArgument, res.code)
	}
}

func TestRun_Info(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)

	res := runCLI(t, "info", "--top", "2", in)
	if res.code != exitOK {
		t.Fatalf("info: exit %d: %s", res.code, res.stderr)
	}
	for _, want := range []string{"Dimensions: 3 x 2", "Pixels:     6", "Dominant colors:", "16.7%"} {
		if !strings.Contains(res.stdout, want) {
			t.Fatalf("expected %q in output:\n%s", want, res.stdout)
		}
	}
	if got := strings.Count(res.stdout, " px)"); got != 2 {
		t.Fatalf("expected 2 dominant colors, got %d", got)
	}
}

func TestRun_InfoJSON(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)

	res := runCLI(t, "info", "--json", in)
	if res.code != exitOK {
		t.Fatalf("info: exit %d: %s", res.code, res.stderr)
	}
	var summary analysis.Summary
	if err := json.Unmarshal([]byte(res.stdout), &summary); err != nil {
		t.Fatalf("decode json: %v\n%s", err, res.stdout)
	}
	if summary.Width != 3 || summary.Height != 2 || summary.Distinct != 6 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Dominant) != 5 {
		t.Fatalf("expected default of 5 dominant colors, got %d", len(summary.Dominant))
	}
}

func TestRun_WritesMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)
	metricsPath := filepath.Join(dir, "ppmkit.prom")
	t.Setenv("PPMKIT_METRICS_TEXTFILE", metricsPath)

	runCLI(t, "invert", in, filepath.Join(dir, "out.ppm"))
	runCLI(t, "invert", filepath.Join(dir, "missing.ppm"), filepath.Join(dir, "out2.ppm"))

	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics textfile: %v", err)
	}
	if !strings.Contains(string(data), `ppmkit_runs_total{action="invert",status="failed"} 1`) {
		t.Fatalf("expected failed run in textfile, got:\n%s", data)
	}
}

func TestRun_StdoutTracing(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir)
	t.Setenv("PPMKIT_TRACE_EXPORTER", "stdout")

	res := runCLI(t, "grayscale", in, filepath.Join(dir, "out.ppm"))
	if res.code != exitOK {
		t.Fatalf("grayscale: exit %d: %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stderr, "pipeline.process") {
		t.Fatalf("expected span on stderr, got %q", res.stderr)
	}
	if res.stdout != "" {
		t.Fatalf("expected spans to stay off stdout, got %q", res.stdout)
	}
}
