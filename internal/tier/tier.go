// Package tier maps user-facing quality tiers to concrete provider model
// versions. The mapping is static and defined at compile time; resolution is
// a pure lookup plus one precondition (credential gating for premium).
package tier

import (
	"fmt"

	"clipforge/internal/domain"
)

// Tier is a quality/price level selected by the caller.
type Tier string

const (
	Economy Tier = "economy"
	Basic   Tier = "basic"
	Pro     Tier = "pro"
	Premium Tier = "premium"
)

// Definition carries the pricing and gating attributes of a tier.
type Definition struct {
	Label           string
	TokensPerSecond float64
	MaxDurationSec  int
	// Gated tiers require the caller to supply their own provider
	// credential; the shared service key is never used for them.
	Gated bool
}

// ModelVersion is the concrete provider request shape a tier resolves to.
type ModelVersion struct {
	Model          string
	Endpoint       string
	MaxResolution  string
	MaxDurationSec int
	NegativePrompt bool
	Mode           string
}

var definitions = map[Tier]Definition{
	Economy: {Label: "Economy", TokensPerSecond: 2.0, MaxDurationSec: 5},
	Basic:   {Label: "Basic", TokensPerSecond: 3.6, MaxDurationSec: 10},
	Pro:     {Label: "Pro", TokensPerSecond: 7.2, MaxDurationSec: 10},
	Premium: {Label: "Premium", TokensPerSecond: 20.0, MaxDurationSec: 10, Gated: true},
}

var versions = map[Tier]ModelVersion{
	Economy: {Model: "kling-v1", Endpoint: "/v1/videos/text2video", MaxResolution: "720p", MaxDurationSec: 5, NegativePrompt: true, Mode: "std"},
	Basic:   {Model: "kling-v1-5", Endpoint: "/v1/videos/text2video", MaxResolution: "720p", MaxDurationSec: 10, NegativePrompt: true, Mode: "std"},
	Pro:     {Model: "kling-v1-6", Endpoint: "/v1/videos/text2video", MaxResolution: "1080p", MaxDurationSec: 10, NegativePrompt: true, Mode: "pro"},
	Premium: {Model: "kling-v2-master", Endpoint: "/v1/videos/text2video", MaxResolution: "1080p", MaxDurationSec: 10, NegativePrompt: false, Mode: "pro"},
}

// Lookup returns the tier definition.
func Lookup(t Tier) (Definition, bool) {
	def, ok := definitions[t]
	return def, ok
}

// Resolve maps a tier to its provider model version. A gated tier without a
// caller-supplied credential returns domain.ErrTierIneligible, which is
// distinct from an unknown tier: the caller must fall back or abort, never
// silently downgrade.
func Resolve(t Tier, hasCredential bool) (ModelVersion, error) {
	def, ok := definitions[t]
	if !ok {
		return ModelVersion{}, fmt.Errorf("tier: unknown tier %q", t)
	}
	if def.Gated && !hasCredential {
		return ModelVersion{}, fmt.Errorf("tier %q: %w", t, domain.ErrTierIneligible)
	}
	return versions[t], nil
}

// ModeLabel returns the provider submission mode for a tier ("std" or
// "pro"). Unknown tiers fall back to "std".
func ModeLabel(t Tier) string {
	if v, ok := versions[t]; ok {
		return v.Mode
	}
	return "std"
}
