package pipeline

import (
	"context"
	"fmt"

	"github.com/dunamismax/ppmkit/internal/domain"
	"github.com/dunamismax/ppmkit/internal/grid"
	"github.com/dunamismax/ppmkit/internal/transform"
)

type Transformer interface {
	Transform(ctx context.Context, src *grid.Grid, step domain.Step) (*grid.Grid, error)
}

type gridTransformer struct{}

func (gridTransformer) Transform(ctx context.Context, src *grid.Grid, step domain.Step) (*grid.Grid, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch step.NormalizedAction() {
	case domain.ActionZeroChannel:
		ch, err := transform.ParseChannel(step.Channel)
		if err != nil {
			return nil, err
		}
		return transform.ZeroChannel(src, ch)
	case domain.ActionGrayscale:
		return transform.Grayscale(src), nil
	case domain.ActionInvert:
		return transform.Invert(src), nil
	case domain.ActionCrop:
		return transform.Crop(src, step.X, step.Y, step.Width, step.Height)
	case domain.ActionMirror:
		axis, err := transform.ParseAxis(step.Axis)
		if err != nil {
			return nil, err
		}
		mode := transform.MirrorSymmetric
		if step.Legacy {
			mode = transform.MirrorLegacy
		}
		return transform.Mirror(src, axis, mode)
	case domain.ActionRepeat:
		axis, err := transform.ParseAxis(step.Axis)
		if err != nil {
			return nil, err
		}
		return transform.Repeat(src, axis, step.Count)
	case domain.ActionConvert:
		return src, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStepAction, step.Action)
	}
}
