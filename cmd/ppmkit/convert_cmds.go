package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dunamismax/ppmkit/internal/domain"
	"github.com/dunamismax/ppmkit/internal/pipeline"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		scale   int
		quality int
	)
	cmd := &cobra.Command{
		Use:   "export <in.ppm> <out.{png,jpg,gif,tif,bmp,webp}>",
		Short: "Convert a P3 file to a raster format chosen by extension",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("quality") {
				quality = a.cfg.Export.JPEGQuality
			}
			if quality < 1 || quality > 100 {
				return usageErrorf("quality must be between 1 and 100, got %d", quality)
			}
			p, err := pipeline.NewExportProcessor(pipeline.ExportConfig{Quality: quality, Scale: scale}, a.log(), a.metrics)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			return a.process(cmd, p, pipeline.Request{
				Input:  args[0],
				Output: args[1],
				Step:   domain.Step{Action: domain.ActionConvert},
			})
		},
	}
	cmd.Flags().IntVar(&scale, "scale", 1, "integer upscale factor (nearest neighbour)")
	cmd.Flags().IntVar(&quality, "quality", 90, "JPEG/WebP quality, defaults to PPMKIT_JPEG_QUALITY")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <in.{png,jpg,gif,bmp,tif,webp}> <out.ppm>",
		Short: "Convert a raster image to P3, discarding alpha",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pipeline.NewImportProcessor(a.log(), a.metrics)
			return a.process(cmd, p, pipeline.Request{
				Input:  args[0],
				Output: args[1],
				Step:   domain.Step{Action: domain.ActionConvert},
			})
		},
	}
}
