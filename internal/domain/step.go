package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ActionZeroChannel = "zerochannel"
	ActionGrayscale   = "grayscale"
	ActionInvert      = "invert"
	ActionCrop        = "crop"
	ActionMirror      = "mirror"
	ActionRepeat      = "repeat"
	// ActionConvert leaves pixels unchanged; export and import use it.
	ActionConvert = "convert"
)

var ErrInvalidStep = errors.New("invalid step")

// Step describes the one transform applied during a run. Only the fields
// relevant to Action are read.
type Step struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	Axis    string `json:"axis,omitempty"`
	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Count   int    `json:"count,omitempty"`
	Legacy  bool   `json:"legacy,omitempty"`
}

// NormalizedAction returns Action lowercased and trimmed.
func (s Step) NormalizedAction() string {
	return strings.ToLower(strings.TrimSpace(s.Action))
}

func (s Step) Validate() error {
	switch s.NormalizedAction() {
	case "":
		return fmt.Errorf("%w: action is required", ErrInvalidStep)
	case ActionZeroChannel:
		if strings.TrimSpace(s.Channel) == "" {
			return fmt.Errorf("%w: %s requires a channel", ErrInvalidStep, ActionZeroChannel)
		}
	case ActionMirror:
		if strings.TrimSpace(s.Axis) == "" {
			return fmt.Errorf("%w: %s requires an axis", ErrInvalidStep, ActionMirror)
		}
	case ActionRepeat:
		if strings.TrimSpace(s.Axis) == "" {
			return fmt.Errorf("%w: %s requires an axis", ErrInvalidStep, ActionRepeat)
		}
		if s.Count < 1 {
			return fmt.Errorf("%w: %s count %d must be at least 1", ErrInvalidStep, ActionRepeat, s.Count)
		}
	case ActionGrayscale, ActionInvert, ActionCrop, ActionConvert:
		// Crop geometry is checked against the source dimensions later.
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidStep, s.Action)
	}
	return nil
}
