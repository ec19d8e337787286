// Package ppm reads and writes the plain-text "P3" Portable Pixel Map format.
//
// A P3 file is a sequence of whitespace-separated ASCII tokens:
//
//	P3
//	<width> <height>
//	<maxval>
//	<r> <g> <b> ... (width*height triples, row-major)
//
// A '#' starts a comment that runs to the end of the line. The maxval token
// must be an integer but pixel values are not rescaled against it; every
// channel must lie in [0,255]. Encode always writes 255 as maxval and one
// pixel per line.
package ppm

import (
	"errors"
)

// Magic is the format token for the plain-text PPM variant.
const Magic = "P3"

// MaxValue is the maximum channel value written by Encode.
const MaxValue = 255

var (
	ErrFileNotFound   = errors.New("file not found")
	ErrMalformedInput = errors.New("malformed ppm input")
	ErrIO             = errors.New("i/o error")
)
