package camera

import (
	"testing"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor()
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return e
}

func TestInferZoomDirections(t *testing.T) {
	e := newTestExtractor(t)

	in := e.Infer("slowly zoom in on the lighthouse")
	if in == nil {
		t.Fatalf("expected intent for zoom in")
	}
	if in.Type != MoveSimple {
		t.Fatalf("type = %q, want simple", in.Type)
	}
	if in.Zoom >= 0 {
		t.Fatalf("zoom in must be negative, got %.1f", in.Zoom)
	}

	out := e.Infer("the camera zooms out to reveal the city")
	if out == nil {
		t.Fatalf("expected intent for zoom out")
	}
	if out.Zoom <= 0 {
		t.Fatalf("zoom out must be positive, got %.1f", out.Zoom)
	}
}

func TestInferNoMatchReturnsNil(t *testing.T) {
	e := newTestExtractor(t)
	if got := e.Infer("a cat sleeping on a windowsill"); got != nil {
		t.Fatalf("expected nil intent, got %+v", got)
	}
	if got := e.Infer(""); got != nil {
		t.Fatalf("expected nil intent for empty prompt, got %+v", got)
	}
}

func TestInferFirstMatchWins(t *testing.T) {
	e := newTestExtractor(t)
	// Zoom verbs outrank aerial cues regardless of word order in the prompt.
	got := e.Infer("aerial drone shot while we zoom in on the castle")
	if got == nil {
		t.Fatalf("expected intent")
	}
	if got.Type != MoveSimple || got.Zoom >= 0 {
		t.Fatalf("zoom rule should win over aerial: %+v", got)
	}
	// Shot-type nouns outrank pans.
	got = e.Infer("wide shot, pan left across the valley")
	if got == nil || got.Zoom <= 0 || got.Pan != 0 {
		t.Fatalf("wide-shot rule should win over pan: %+v", got)
	}
}

func TestInferTable(t *testing.T) {
	e := newTestExtractor(t)
	cases := []struct {
		prompt   string
		wantType MoveType
	}{
		{"extreme close-up of a dew drop", MoveSimple},
		{"bird's eye view of the harbor", MoveForwardUp},
		{"pan right along the coastline", MoveSimple},
		{"tilt down from the sky to the street", MoveSimple},
		{"crane down through the forest canopy", MoveDownBack},
		{"handheld documentary style", MoveSimple},
	}
	for _, tc := range cases {
		t.Run(tc.prompt, func(t *testing.T) {
			got := e.Infer(tc.prompt)
			if got == nil {
				t.Fatalf("expected intent")
			}
			if got.Type != tc.wantType {
				t.Fatalf("type = %q, want %q", got.Type, tc.wantType)
			}
		})
	}
}

func TestInferMatchingIsCaseInsensitive(t *testing.T) {
	e := newTestExtractor(t)
	if got := e.Infer("ZOOM IN on the stage"); got == nil || got.Zoom >= 0 {
		t.Fatalf("uppercase prompt should match: %+v", got)
	}
}

func TestRuleTableIntentsAreValid(t *testing.T) {
	e := newTestExtractor(t)
	for idx, rule := range e.Rules() {
		if err := rule.Intent.Validate(); err != nil {
			t.Fatalf("rule %d: %v", idx, err)
		}
	}
}
