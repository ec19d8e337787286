package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dunamismax/ppmkit/internal/config"
	"github.com/dunamismax/ppmkit/internal/pipeline"
	"github.com/dunamismax/ppmkit/internal/telemetry"
)

var version = "dev"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	verbose bool

	cfg             config.Config
	logger          *logrus.Logger
	runID           string
	metrics         *pipeline.Metrics
	shutdownTracing func(context.Context) error
	vipsStarted     bool
}

func newApp(stdout, stderr io.Writer) *app {
	logger := logrus.New()
	logger.SetOutput(stderr)
	return &app{
		stdout: stdout,
		stderr: stderr,
		logger: logger,
	}
}

// setup runs before any subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	a.cfg = config.Load()
	a.runID = uuid.NewString()

	a.logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	level, err := logrus.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
		a.logger.WithField("value", a.cfg.Log.Level).Warn("invalid PPMKIT_LOG_LEVEL, using info")
	}
	if a.verbose {
		level = logrus.DebugLevel
	}
	a.logger.SetLevel(level)

	shutdown, err := telemetry.SetupTracing(cmd.Context(), telemetry.TraceConfig{
		ServiceName:    "ppmkit",
		ServiceVersion: version,
		Exporter:       a.cfg.Telemetry.TraceExporter,
		OTLPEndpoint:   a.cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   a.cfg.Telemetry.OTLPInsecure,
		Writer:         a.stderr,
	}, a.log())
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	a.shutdownTracing = shutdown

	if err := pipeline.Startup(); err != nil {
		return fmt.Errorf("start image runtime: %w", err)
	}
	a.vipsStarted = true

	a.metrics = pipeline.NewMetrics()
	a.log().WithField("command", cmd.Name()).Debug("starting")
	return nil
}

// finish flushes traces and metrics. It runs even when the command failed.
func (a *app) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.log().WithError(err).Warn("tracing shutdown failed")
		}
	}
	if path := strings.TrimSpace(a.cfg.Telemetry.MetricsTextfile); path != "" && a.metrics != nil {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.log().WithError(err).WithField("path", path).Warn("write metrics textfile failed")
		}
	}
	if a.vipsStarted {
		pipeline.Shutdown()
	}
}

func (a *app) log() logrus.FieldLogger {
	if a.runID == "" {
		return a.logger
	}
	return a.logger.WithField("run_id", a.runID)
}

func (a *app) process(cmd *cobra.Command, p *pipeline.Processor, req pipeline.Request) error {
	req.RunID = a.runID
	_, err := p.Process(cmd.Context(), req)
	return err
}

// usageError marks invocations rejected before any file is touched.
type usageError struct {
	err error
}

func (e usageError) Error() string {
	return e.err.Error()
}

func (e usageError) Unwrap() error {
	return e.err
}

func usageErrorf(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func isUsageError(err error) bool {
	var ue usageError
	return errors.As(err, &ue)
}

// exactArgs is cobra.ExactArgs returning a usageError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("%s expects %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}
