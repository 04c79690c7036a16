package camera

import "testing"

func TestClampBoundsAxes(t *testing.T) {
	i := Intent{Type: MoveSimple, Zoom: 42}.Clamp()
	if i.Zoom != AxisBound {
		t.Fatalf("zoom = %.1f, want %.1f", i.Zoom, AxisBound)
	}
	i = Intent{Type: MoveSimple, Pan: -99.5}.Clamp()
	if i.Pan != -AxisBound {
		t.Fatalf("pan = %.1f, want %.1f", i.Pan, -AxisBound)
	}
	i = Intent{Type: MoveSimple, Tilt: 3.5}.Clamp()
	if i.Tilt != 3.5 {
		t.Fatalf("in-range tilt changed: %.1f", i.Tilt)
	}
}

func TestValidateSingleAxisInvariant(t *testing.T) {
	ok := Intent{Type: MoveSimple, Zoom: -5}
	if err := ok.Validate(); err != nil {
		t.Fatalf("single axis intent rejected: %v", err)
	}

	// Two driven axes make a simple intent unusable; it must be dropped,
	// not corrected.
	bad := Intent{Type: MoveSimple, Zoom: -5, Pan: 3}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for two active axes")
	}

	// Sub-tolerance noise on a second axis is still a single-axis intent.
	noisy := Intent{Type: MoveSimple, Zoom: -5, Pan: 0.005}
	if err := noisy.Validate(); err != nil {
		t.Fatalf("tolerance not applied: %v", err)
	}
}

func TestValidatePresetAndUnknownTypes(t *testing.T) {
	preset := Intent{Type: MoveForwardUp}
	if err := preset.Validate(); err != nil {
		t.Fatalf("preset intent rejected: %v", err)
	}
	unknown := Intent{Type: MoveType("orbit")}
	if err := unknown.Validate(); err == nil {
		t.Fatalf("expected error for unknown movement type")
	}
}
