package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dunamismax/ppmkit/internal/domain"
	"github.com/dunamismax/ppmkit/internal/pipeline"
	"github.com/dunamismax/ppmkit/internal/ppm"
	"github.com/dunamismax/ppmkit/internal/transform"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitNotFound    = 3
	exitMalformed   = 4
	exitBadArgument = 5
	exitIO          = 6
)

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := newRootCmd(a)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(protectNegativeArgs(args))
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.finish()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "ppmkit: %s\n", err)
	if isUsageError(err) {
		fmt.Fprintln(stderr, "Run 'ppmkit --help' for usage.")
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case isUsageError(err):
		return exitUsage
	case errors.Is(err, ppm.ErrFileNotFound):
		return exitNotFound
	case errors.Is(err, ppm.ErrMalformedInput):
		return exitMalformed
	case errors.Is(err, transform.ErrOutOfBounds),
		errors.Is(err, transform.ErrInvalidParameter),
		errors.Is(err, domain.ErrInvalidStep),
		errors.Is(err, pipeline.ErrInvalidStepAction),
		errors.Is(err, pipeline.ErrUnsupportedFormat):
		return exitBadArgument
	case errors.Is(err, ppm.ErrIO):
		return exitIO
	default:
		return exitFailure
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ppmkit",
		Short: "Transform plain-text PPM (P3) images",
		Long: `ppmkit reads a P3 portable pixmap, applies one transform and writes the
result as a new P3 file. It can also convert to and from common raster
formats and summarize an image's colors.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unknown command %q", args[0])
			}
			cmd.SetOut(a.stderr)
			_ = cmd.Help()
			return usageErrorf("a command is required")
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	root.AddCommand(
		newZeroRedCmd(a),
		newGrayscaleCmd(a),
		newInvertCmd(a),
		newCropCmd(a),
		newMirrorCmd(a),
		newRepeatCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newInfoCmd(a),
	)
	return root
}
