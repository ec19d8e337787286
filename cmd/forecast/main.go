package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dunamismax/ppmkit/internal/config"
	"github.com/dunamismax/ppmkit/internal/forecast"
	"github.com/dunamismax/ppmkit/internal/ratelimit"
	"github.com/dunamismax/ppmkit/internal/telemetry"
)

var version = "dev"

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitBadArgument = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	latitude  float64
	longitude float64
	unit      string
	location  string
	days      int
	every     int
	verbose   bool
}

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "forecast: %s\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var ue usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue):
		return exitUsage
	case errors.Is(err, forecast.ErrInvalidQuery), errors.Is(err, forecast.ErrInvalidUnit):
		return exitBadArgument
	default:
		return exitFailure
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Print an hourly temperature forecast from Open-Meteo",
		Example: `  forecast
  forecast --lat 59.91 --lon 10.75 --location Oslo --unit C --days 3 --every 6`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{err: fmt.Errorf("unexpected argument %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runForecast(cmd.Context(), opts, stdout, stderr)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	flags := cmd.Flags()
	flags.Float64Var(&opts.latitude, "lat", 39.1653, "latitude in degrees")
	flags.Float64Var(&opts.longitude, "lon", -86.5264, "longitude in degrees")
	flags.StringVar(&opts.unit, "unit", "F", "temperature unit: F or C")
	flags.StringVar(&opts.location, "location", "Bloomington", "name printed in the header")
	flags.IntVar(&opts.days, "days", 7, "forecast days (1-16)")
	flags.IntVar(&opts.every, "every", 3, "print every nth hourly sample")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runForecast(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	if opts.every < 1 {
		return usageError{err: fmt.Errorf("--every must be at least 1, got %d", opts.every)}
	}
	unit, err := forecast.ParseUnit(opts.unit)
	if err != nil {
		return err
	}

	cfg := config.Load()
	logger := newLogger(cfg.Log.Level, opts.verbose, stderr)
	log := logger.WithField("run_id", uuid.NewString())

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:    "ppmkit-forecast",
		ServiceVersion: version,
		Exporter:       cfg.Telemetry.TraceExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		Writer:         stderr,
	}, log)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	var limiter forecast.Limiter
	if cfg.RateLimit.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer redisClient.Close()

		bucket, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window, ratelimit.DefaultKeyPrefix)
		if err != nil {
			return fmt.Errorf("configure rate limiter: %w", err)
		}
		limiter = bucket
		log.WithFields(logrus.Fields{
			"redis_addr": cfg.RateLimit.RedisAddr,
			"limit":      cfg.RateLimit.Limit,
			"window":     cfg.RateLimit.Window,
		}).Debug("rate limiter enabled")
	}

	client := forecast.NewClient(forecast.Config{
		BaseURL:        cfg.Forecast.BaseURL,
		Timeout:        cfg.Forecast.Timeout,
		MaxAttempts:    cfg.Forecast.MaxAttempts,
		InitialBackoff: cfg.Forecast.InitialBackoff,
		MaxBackoff:     cfg.Forecast.MaxBackoff,
	}, limiter, log)

	resp, err := client.Fetch(ctx, forecast.Query{
		Latitude:  opts.latitude,
		Longitude: opts.longitude,
		Unit:      unit,
		Days:      opts.days,
	})
	if err != nil {
		return err
	}

	report, err := forecast.BuildReport(resp, opts.location, opts.days, unit, opts.every)
	if err != nil {
		return err
	}
	return forecast.Render(stdout, report)
}

func newLogger(level string, verbose bool, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	if verbose {
		parsed = logrus.DebugLevel
	}
	logger.SetLevel(parsed)
	return logger
}
