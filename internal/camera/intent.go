// Package camera derives structured, bounded camera-movement parameters from
// free-form prompt text. Inference is an ordered rule table, not a
// classifier: determinism and auditability matter more than recall.
package camera

import (
	"fmt"
	"math"
)

// AxisBound is the provider's accepted range for each movement axis.
const AxisBound = 10.0

// singleAxisTolerance allows for float noise when counting active axes.
const singleAxisTolerance = 0.01

// MoveType tags the kind of camera movement.
type MoveType string

const (
	// MoveSimple is the single-axis kind: at most one axis may be non-zero.
	MoveSimple           MoveType = "simple"
	MoveDownBack         MoveType = "down_back"
	MoveForwardUp        MoveType = "forward_up"
	MoveRightTurnForward MoveType = "right_turn_forward"
	MoveLeftTurnForward  MoveType = "left_turn_forward"
)

// Intent is a bounded camera-movement descriptor. Axis values are clamped to
// [-AxisBound, AxisBound] before submission; zero axes are omitted on the
// wire rather than sent as zero.
type Intent struct {
	Type       MoveType `json:"type" yaml:"type"`
	Horizontal float64  `json:"horizontal,omitempty" yaml:"horizontal,omitempty"`
	Vertical   float64  `json:"vertical,omitempty" yaml:"vertical,omitempty"`
	Pan        float64  `json:"pan,omitempty" yaml:"pan,omitempty"`
	Tilt       float64  `json:"tilt,omitempty" yaml:"tilt,omitempty"`
	Roll       float64  `json:"roll,omitempty" yaml:"roll,omitempty"`
	Zoom       float64  `json:"zoom,omitempty" yaml:"zoom,omitempty"`
}

// Clamp bounds every axis to [-AxisBound, AxisBound] and returns the result.
func (i Intent) Clamp() Intent {
	i.Horizontal = clampAxis(i.Horizontal)
	i.Vertical = clampAxis(i.Vertical)
	i.Pan = clampAxis(i.Pan)
	i.Tilt = clampAxis(i.Tilt)
	i.Roll = clampAxis(i.Roll)
	i.Zoom = clampAxis(i.Zoom)
	return i
}

// Validate checks the structural invariant: a simple intent drives at most
// one axis. A violating intent is unusable for submission and must be
// dropped by the caller, never corrected beyond clamping.
func (i Intent) Validate() error {
	switch i.Type {
	case MoveSimple:
		if n := i.activeAxes(); n > 1 {
			return fmt.Errorf("camera: simple intent drives %d axes, want at most 1", n)
		}
		return nil
	case MoveDownBack, MoveForwardUp, MoveRightTurnForward, MoveLeftTurnForward:
		return nil
	default:
		return fmt.Errorf("camera: unknown movement type %q", i.Type)
	}
}

// activeAxes counts axes whose magnitude exceeds the tolerance.
func (i Intent) activeAxes() int {
	n := 0
	for _, v := range []float64{i.Horizontal, i.Vertical, i.Pan, i.Tilt, i.Roll, i.Zoom} {
		if math.Abs(v) > singleAxisTolerance {
			n++
		}
	}
	return n
}

func clampAxis(v float64) float64 {
	if v > AxisBound {
		return AxisBound
	}
	if v < -AxisBound {
		return -AxisBound
	}
	return v
}
