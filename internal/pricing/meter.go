// Package pricing converts requested video parameters into an integer token
// cost and decides affordability against a balance. All functions are pure.
package pricing

import (
	"fmt"
	"math"

	"clipforge/internal/domain"
	"clipforge/internal/tier"
)

// Stage surcharges are fixed per-stage constants, independent of duration.
var stageSurcharge = map[domain.Stage]int64{
	domain.StageEnhance: 5,
	domain.StageCamera:  2,
	domain.StageUpscale: 8,
}

// Meter prices generation requests. Unlimited bypasses affordability checks
// (development and test contexts) while still reporting the nominal cost.
type Meter struct {
	Unlimited bool
}

// Estimate returns the token cost of a clip: ceil(duration * tokens/sec) for
// the tier, plus a fixed surcharge per enabled stage. Rounding is always up
// so the provider is never under-charged.
func (m Meter) Estimate(durationSec float64, stages []domain.Stage, t tier.Tier) (int64, error) {
	if durationSec < 0 {
		return 0, fmt.Errorf("pricing: negative duration %.2f", durationSec)
	}
	def, ok := tier.Lookup(t)
	if !ok {
		return 0, fmt.Errorf("pricing: unknown tier %q", t)
	}
	cost := int64(math.Ceil(durationSec * def.TokensPerSecond))
	seen := map[domain.Stage]bool{}
	for _, s := range stages {
		if seen[s] {
			continue
		}
		seen[s] = true
		surcharge, ok := stageSurcharge[s]
		if !ok {
			return 0, fmt.Errorf("pricing: unknown stage %q", s)
		}
		cost += surcharge
	}
	return cost, nil
}

// CanAfford reports whether balance covers cost. The unlimited override is
// always affordable regardless of balance.
func (m Meter) CanAfford(balance, cost int64) bool {
	if m.Unlimited {
		return true
	}
	return balance >= cost
}

// StageSurcharge exposes the fixed surcharge for one stage, for display.
func StageSurcharge(s domain.Stage) (int64, bool) {
	v, ok := stageSurcharge[s]
	return v, ok
}
