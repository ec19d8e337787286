// Package analysis summarizes the colors of a grid for the info command.
//
// Dominant colors are found by quantizing each channel to 16 levels
// (value / 16 * 16) and counting how many pixels fall into each bucket, so
// #F0F0F0 and #FAFAFA land in the same bucket.
package analysis

import (
	"cmp"
	"slices"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/dunamismax/ppmkit/internal/grid"
)

const quantStep = 16

// HSL holds hue in degrees [0,360) and saturation and lightness in percent.
type HSL struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	L float64 `json:"l"`
}

type Color struct {
	Hex string   `json:"hex"`
	RGB grid.RGB `json:"rgb"`
	HSL HSL      `json:"hsl"`
}

type ColorFrequency struct {
	Color
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary describes a grid. Luminance is the CIE Y of the mean color, from 0
// to 1; Distinct counts the quantized buckets.
type Summary struct {
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Pixels    int              `json:"pixels"`
	Mean      Color            `json:"mean"`
	Luminance float64          `json:"luminance"`
	Distinct  int              `json:"distinct_buckets"`
	Dominant  []ColorFrequency `json:"dominant"`
}

// Describe computes the summary of g, keeping at most top dominant buckets.
// Ties are broken by hex value so output is stable.
func Describe(g *grid.Grid, top int) Summary {
	s := Summary{
		Width:  g.Width(),
		Height: g.Height(),
		Pixels: g.Len(),
	}
	if s.Pixels == 0 {
		s.Mean = NewColor(grid.RGB{})
		return s
	}

	var sumR, sumG, sumB int
	buckets := make(map[grid.RGB]int)
	g.Each(func(_, _ int, c grid.RGB) {
		sumR += int(c.R)
		sumG += int(c.G)
		sumB += int(c.B)
		buckets[quantize(c)]++
	})

	n := s.Pixels
	s.Mean = NewColor(grid.RGB{
		R: uint8((sumR + n/2) / n),
		G: uint8((sumG + n/2) / n),
		B: uint8((sumB + n/2) / n),
	})
	_, s.Luminance, _ = toColorful(s.Mean.RGB).Xyz()
	s.Distinct = len(buckets)

	freqs := make([]ColorFrequency, 0, len(buckets))
	for c, count := range buckets {
		freqs = append(freqs, ColorFrequency{
			Color:      NewColor(c),
			Count:      count,
			Percentage: float64(count) / float64(n) * 100,
		})
	}
	slices.SortFunc(freqs, func(a, b ColorFrequency) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Hex, b.Hex)
	})
	if top >= 0 && len(freqs) > top {
		freqs = freqs[:top]
	}
	s.Dominant = freqs
	return s
}

// NewColor converts an RGB pixel to its hex and HSL forms.
func NewColor(c grid.RGB) Color {
	h, sat, l := toColorful(c).Hsl()
	return Color{
		Hex: toColorful(c).Hex(),
		RGB: c,
		HSL: HSL{H: h, S: sat * 100, L: l * 100},
	}
}

func toColorful(c grid.RGB) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
}

func quantize(c grid.RGB) grid.RGB {
	return grid.RGB{
		R: c.R / quantStep * quantStep,
		G: c.G / quantStep * quantStep,
		B: c.B / quantStep * quantStep,
	}
}
