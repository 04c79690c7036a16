package pricing

import (
	"testing"

	"clipforge/internal/domain"
	"clipforge/internal/tier"
)

func TestEstimateCeilsBaseCost(t *testing.T) {
	m := Meter{}
	cases := []struct {
		name     string
		duration float64
		tier     tier.Tier
		want     int64
	}{
		// basic is 3.6 tokens/sec.
		{"5s basic", 5, tier.Basic, 18},
		{"10s basic", 10, tier.Basic, 36},
		{"fractional rounds up", 5.1, tier.Basic, 19},
		{"zero duration", 0, tier.Basic, 0},
		{"economy", 5, tier.Economy, 10},
		{"pro", 10, tier.Pro, 72},
		{"premium", 10, tier.Premium, 200},
		{"never floors", 1, tier.Basic, 4}, // 3.6 -> 4, not 3
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.Estimate(tc.duration, nil, tc.tier)
			if err != nil {
				t.Fatalf("estimate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Estimate(%.1f, %s) = %d, want %d", tc.duration, tc.tier, got, tc.want)
			}
		})
	}
}

func TestEstimateStageSurcharges(t *testing.T) {
	m := Meter{}
	base, err := m.Estimate(5, nil, tier.Basic)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	for _, s := range []domain.Stage{domain.StageEnhance, domain.StageCamera, domain.StageUpscale} {
		withStage, err := m.Estimate(5, []domain.Stage{s}, tier.Basic)
		if err != nil {
			t.Fatalf("estimate with %s: %v", s, err)
		}
		if withStage < base {
			t.Fatalf("stage %s decreased cost: %d < %d", s, withStage, base)
		}
		surcharge, ok := StageSurcharge(s)
		if !ok {
			t.Fatalf("no surcharge for %s", s)
		}
		if withStage != base+surcharge {
			t.Fatalf("stage %s cost = %d, want %d", s, withStage, base+surcharge)
		}
	}

	// Enhancement is priced above camera direction.
	enhance, _ := StageSurcharge(domain.StageEnhance)
	cam, _ := StageSurcharge(domain.StageCamera)
	if enhance <= cam {
		t.Fatalf("enhance surcharge %d not greater than camera %d", enhance, cam)
	}

	// Duplicate stages are charged once.
	dup, err := m.Estimate(5, []domain.Stage{domain.StageEnhance, domain.StageEnhance}, tier.Basic)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if dup != base+enhance {
		t.Fatalf("duplicate stage cost = %d, want %d", dup, base+enhance)
	}
}

func TestEstimateRejectsBadInput(t *testing.T) {
	m := Meter{}
	if _, err := m.Estimate(-1, nil, tier.Basic); err == nil {
		t.Fatalf("expected error for negative duration")
	}
	if _, err := m.Estimate(5, nil, tier.Tier("ultra")); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
	if _, err := m.Estimate(5, []domain.Stage{domain.Stage("sharpen")}, tier.Basic); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}

func TestCanAfford(t *testing.T) {
	m := Meter{}
	cases := []struct {
		balance, cost int64
		want          bool
	}{
		{0, 0, true},
		{10, 10, true},
		{9, 10, false},
		{100, 18, true},
		{0, 1, false},
	}
	for _, tc := range cases {
		if got := m.CanAfford(tc.balance, tc.cost); got != tc.want {
			t.Fatalf("CanAfford(%d, %d) = %v, want %v", tc.balance, tc.cost, got, tc.want)
		}
	}
}

func TestUnlimitedOverrideStillReportsCost(t *testing.T) {
	m := Meter{Unlimited: true}
	if !m.CanAfford(0, 1000) {
		t.Fatalf("unlimited meter must always afford")
	}
	got, err := m.Estimate(5, nil, tier.Basic)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if got != 18 {
		t.Fatalf("unlimited estimate = %d, want nominal 18", got)
	}
}
