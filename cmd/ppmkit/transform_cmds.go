package main

import (
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dunamismax/ppmkit/internal/domain"
	"github.com/dunamismax/ppmkit/internal/pipeline"
	"github.com/dunamismax/ppmkit/internal/transform"
)

// runStep decodes in, applies step and writes the P3 result to out.
func (a *app) runStep(cmd *cobra.Command, step domain.Step, in, out string) error {
	p := pipeline.NewPPMProcessor(a.log(), a.metrics)
	return a.process(cmd, p, pipeline.Request{Input: in, Output: out, Step: step})
}

func newZeroRedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "zerored <in.ppm> <out.ppm>",
		Short: "Set the red channel of every pixel to zero",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			step := domain.Step{Action: domain.ActionZeroChannel, Channel: transform.Red.String()}
			return a.runStep(cmd, step, args[0], args[1])
		},
	}
}

func newGrayscaleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grayscale <in.ppm> <out.ppm>",
		Short: "Replace each pixel with the floor mean of its channels",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStep(cmd, domain.Step{Action: domain.ActionGrayscale}, args[0], args[1])
		},
	}
}

func newInvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invert <in.ppm> <out.ppm>",
		Short: "Replace each channel value v with 255-v",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStep(cmd, domain.Step{Action: domain.ActionInvert}, args[0], args[1])
		},
	}
}

func newCropCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "crop <x> <y> <width> <height> <in.ppm> <out.ppm>",
		Short: "Extract the rectangle at (x,y) of the given size",
		Args:  exactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nums [4]int
			for i, name := range []string{"x", "y", "width", "height"} {
				n, err := parseIntArg(name, args[i])
				if err != nil {
					return err
				}
				nums[i] = n
			}
			step := domain.Step{
				Action: domain.ActionCrop,
				X:      nums[0],
				Y:      nums[1],
				Width:  nums[2],
				Height: nums[3],
			}
			return a.runStep(cmd, step, args[4], args[5])
		},
	}
}

func newMirrorCmd(a *app) *cobra.Command {
	var legacy bool
	cmd := &cobra.Command{
		Use:   "mirror <H|V> <in.ppm> <out.ppm>",
		Short: "Reflect the first half of the image onto the second half",
		Long: `mirror copies the top half onto the bottom half (H) or the left half onto
the right half (V). With --legacy the copy starts one row or column later,
leaving the middle line of the source in place.`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			step := domain.Step{Action: domain.ActionMirror, Axis: args[0], Legacy: legacy}
			return a.runStep(cmd, step, args[1], args[2])
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy", false, "start the reflection one line past the midpoint")
	return cmd
}

func newRepeatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repeat <H|V> <n> <in.ppm> <out.ppm>",
		Short: "Tile the image n times along an axis",
		Args:  exactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseIntArg("n", args[1])
			if err != nil {
				return err
			}
			step := domain.Step{Action: domain.ActionRepeat, Axis: args[0], Count: n}
			return a.runStep(cmd, step, args[2], args[3])
		},
	}
}

// negativeArgCommands take integer positionals that may be negative.
var negativeArgCommands = []string{"crop", "repeat"}

// protectNegativeArgs rewrites "crop -1 0 1 1 in out" so pflag does not read
// -1 as a shorthand flag: flags move in front of an inserted "--" and the
// positionals keep their order. Other commands pass through unchanged.
func protectNegativeArgs(args []string) []string {
	at := slices.IndexFunc(args, func(a string) bool { return !strings.HasPrefix(a, "-") })
	if at < 0 || !slices.Contains(negativeArgCommands, args[at]) || slices.Contains(args, "--") {
		return args
	}
	rest := args[at+1:]
	if !slices.ContainsFunc(rest, isNegativeInt) {
		return args
	}

	var flags, positional []string
	for _, a := range rest {
		if strings.HasPrefix(a, "-") && !isNegativeInt(a) {
			flags = append(flags, a)
		} else {
			positional = append(positional, a)
		}
	}
	out := slices.Clone(args[:at+1])
	out = append(out, flags...)
	out = append(out, "--")
	return append(out, positional...)
}

func isNegativeInt(a string) bool {
	if len(a) < 2 || a[0] != '-' {
		return false
	}
	_, err := strconv.Atoi(a)
	return err == nil
}

func parseIntArg(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, usageErrorf("%s must be an integer, got %q", name, value)
	}
	return n, nil
}
