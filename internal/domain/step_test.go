package domain

import (
	"errors"
	"testing"
)

func TestStepValidate(t *testing.T) {
	valid := []Step{
		{Action: ActionZeroChannel, Channel: "red"},
		{Action: " Grayscale "},
		{Action: ActionInvert},
		{Action: ActionCrop, X: 1, Y: 1, Width: 2, Height: 2},
		{Action: ActionMirror, Axis: "H"},
		{Action: ActionMirror, Axis: "V", Legacy: true},
		{Action: ActionRepeat, Axis: "H", Count: 3},
		{Action: ActionConvert},
	}
	for _, step := range valid {
		if err := step.Validate(); err != nil {
			t.Fatalf("expected %+v to be valid, got error: %v", step, err)
		}
	}

	invalid := map[string]Step{
		"empty":               {},
		"unknown action":      {Action: "sharpen"},
		"zero without chan":   {Action: ActionZeroChannel},
		"mirror without axis": {Action: ActionMirror},
		"repeat without axis": {Action: ActionRepeat, Count: 2},
		"repeat zero count":   {Action: ActionRepeat, Axis: "V"},
	}
	for name, step := range invalid {
		t.Run(name, func(t *testing.T) {
			err := step.Validate()
			if !errors.Is(err, ErrInvalidStep) {
				t.Fatalf("expected ErrInvalidStep, got %v", err)
			}
		})
	}
}
