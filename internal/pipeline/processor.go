package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/ppmkit/internal/domain"
	"github.com/dunamismax/ppmkit/internal/grid"
)

const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

var (
	ErrInvalidStepAction = errors.New("invalid step action")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

type Request struct {
	RunID  string
	Input  string
	Output string
	Step   domain.Step
}

type Output struct {
	Action       string `json:"action"`
	Format       string `json:"format"`
	Path         string `json:"path"`
	Bytes        int64  `json:"bytes"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SourceWidth  int    `json:"source_width"`
	SourceHeight int    `json:"source_height"`
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*grid.Grid, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, g *grid.Grid) (Output, error)
}

type Processor struct {
	fetcher     Fetcher
	transformer Transformer
	emitter     Emitter
	logger      logrus.FieldLogger
	metrics     *Metrics
	tracer      trace.Tracer
}

// NewPPMProcessor reads and writes P3 files.
func NewPPMProcessor(logger logrus.FieldLogger, metrics *Metrics) *Processor {
	return newProcessor(PPMFetcher{}, PPMEmitter{}, logger, metrics)
}

// NewExportProcessor reads a P3 file and writes a raster format chosen by the
// output file extension.
func NewExportProcessor(cfg ExportConfig, logger logrus.FieldLogger, metrics *Metrics) (*Processor, error) {
	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("build exporter: %w", err)
	}
	return newProcessor(PPMFetcher{}, exporter, logger, metrics), nil
}

// NewImportProcessor reads any registered raster format and writes P3.
func NewImportProcessor(logger logrus.FieldLogger, metrics *Metrics) *Processor {
	return newProcessor(ImageFetcher{}, PPMEmitter{}, logger, metrics)
}

func newProcessor(fetcher Fetcher, emitter Emitter, logger logrus.FieldLogger, metrics *Metrics) *Processor {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Processor{
		fetcher:     fetcher,
		transformer: gridTransformer{},
		emitter:     emitter,
		logger:      logger,
		metrics:     metrics,
		tracer:      otel.Tracer("ppmkit/pipeline"),
	}
}

func (p *Processor) Process(ctx context.Context, req Request) (Output, error) {
	if strings.TrimSpace(req.Input) == "" {
		return Output{}, fmt.Errorf("%w: input path is required", domain.ErrInvalidStep)
	}
	if strings.TrimSpace(req.Output) == "" {
		return Output{}, fmt.Errorf("%w: output path is required", domain.ErrInvalidStep)
	}
	if err := req.Step.Validate(); err != nil {
		return Output{}, err
	}

	action := req.Step.NormalizedAction()
	startedAt := time.Now()
	status := statusFailed

	ctx, span := p.tracer.Start(ctx, "pipeline.process")
	span.SetAttributes(
		attribute.String("run.id", req.RunID),
		attribute.String("step.action", action),
		attribute.String("input.path", req.Input),
		attribute.String("output.path", req.Output),
	)
	defer span.End()
	defer func() {
		p.metrics.observeRun(action, status, time.Since(startedAt))
	}()

	log := p.logger.WithFields(logrus.Fields{
		"run_id": req.RunID,
		"action": action,
	})

	fail := func(err error) (Output, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		return Output{}, err
	}

	log.WithField("input", req.Input).Debug("fetch stage")
	src, err := p.fetch(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("fetch stage: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	log.WithFields(logrus.Fields{
		"width":  src.Width(),
		"height": src.Height(),
	}).Debug("transform stage")
	transformed, err := p.transform(ctx, src, req.Step)
	if err != nil {
		return fail(fmt.Errorf("transform stage action=%s: %w", action, err))
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	log.WithField("output", req.Output).Debug("emit stage")
	written, err := p.emit(ctx, req, transformed)
	if err != nil {
		return fail(fmt.Errorf("emit stage action=%s: %w", action, err))
	}
	written.Action = action
	written.SourceWidth = src.Width()
	written.SourceHeight = src.Height()

	status = statusSucceeded
	p.metrics.observeOutput(src.Len(), written.Bytes)
	span.SetAttributes(
		attribute.Int("output.width", written.Width),
		attribute.Int("output.height", written.Height),
		attribute.Int64("output.bytes", written.Bytes),
	)

	log.WithFields(logrus.Fields{
		"output":   written.Path,
		"format":   written.Format,
		"width":    written.Width,
		"height":   written.Height,
		"bytes":    written.Bytes,
		"duration": time.Since(startedAt).Round(time.Microsecond),
	}).Info("processed")

	return written, nil
}

func (p *Processor) fetch(ctx context.Context, req Request) (*grid.Grid, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.fetch")
	defer span.End()
	return p.fetcher.Fetch(ctx, req)
}

func (p *Processor) transform(ctx context.Context, src *grid.Grid, step domain.Step) (*grid.Grid, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.transform")
	defer span.End()
	return p.transformer.Transform(ctx, src, step)
}

func (p *Processor) emit(ctx context.Context, req Request, g *grid.Grid) (Output, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.emit")
	defer span.End()
	return p.emitter.Emit(ctx, req, g)
}
