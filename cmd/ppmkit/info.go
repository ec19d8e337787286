package main

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dunamismax/ppmkit/internal/analysis"
	"github.com/dunamismax/ppmkit/internal/ppm"
)

func newInfoCmd(a *app) *cobra.Command {
	var (
		top    int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "info <in.ppm>",
		Short: "Print dimensions, mean color and dominant colors",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return usageErrorf("top must not be negative, got %d", top)
			}
			g, err := ppm.DecodeFile(args[0])
			if err != nil {
				return err
			}
			summary := analysis.Describe(g, top)
			a.log().WithFields(logrus.Fields{
				"path":     args[0],
				"pixels":   summary.Pixels,
				"distinct": summary.Distinct,
			}).Debug("described")

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return writeSummary(a.stdout, args[0], summary)
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "number of dominant colors to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func writeSummary(w io.Writer, path string, s analysis.Summary) error {
	if _, err := fmt.Fprintf(w, "File:       %s\nDimensions: %d x %d\nPixels:     %d\n", path, s.Width, s.Height, s.Pixels); err != nil {
		return err
	}
	if s.Pixels == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Mean color: %s\nLuminance:  %.3f\nDistinct:   %d buckets\n",
		formatColor(s.Mean), s.Luminance, s.Distinct); err != nil {
		return err
	}
	if len(s.Dominant) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Dominant colors:"); err != nil {
		return err
	}
	for _, c := range s.Dominant {
		if _, err := fmt.Fprintf(w, "  %s %5.1f%% (%d px)\n", formatColor(c.Color), c.Percentage, c.Count); err != nil {
			return err
		}
	}
	return nil
}

func formatColor(c analysis.Color) string {
	return fmt.Sprintf("%s rgb(%d,%d,%d) hsl(%.0f, %.1f%%, %.1f%%)",
		c.Hex, c.RGB.R, c.RGB.G, c.RGB.B, c.HSL.H, c.HSL.S, c.HSL.L)
}
