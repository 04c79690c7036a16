package domain

import "errors"

// Sentinel errors for the generation core. The five failure classes a caller
// must be able to tell apart (remediation differs for each) are
// ErrInsufficientCredits, ErrAuthInvalid, ErrQuotaExhausted,
// ErrProviderFailure and ErrPollTimeout.
var (
	// ErrInsufficientCredits is a pre-flight rejection: the user's balance
	// cannot cover the estimated token cost. The provider is never called.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAuthInvalid means the provider rejected our credentials. Not
	// retryable until the key is reconfigured.
	ErrAuthInvalid = errors.New("provider authentication invalid")

	// ErrQuotaExhausted means the provider account's prepaid resource pack
	// is depleted. Retrying cannot help; more capacity must be purchased.
	ErrQuotaExhausted = errors.New("provider resource pack exhausted")

	// ErrProviderFailure covers transient provider or network faults.
	// A manual resubmission is safe.
	ErrProviderFailure = errors.New("provider failure")

	// ErrPollTimeout means polling exceeded its ceiling without the
	// provider reporting a terminal status. The task is abandoned.
	ErrPollTimeout = errors.New("generation poll timed out")

	// ErrTierIneligible is returned when a gated tier is requested without
	// the caller-supplied provider credential it requires.
	ErrTierIneligible = errors.New("tier requires a provider credential")

	// ErrIllegalTransition guards the prompt state machine.
	ErrIllegalTransition = errors.New("illegal prompt transition")

	ErrNotFound      = errors.New("not found")
	ErrInvalidPrompt = errors.New("invalid prompt")
)

// FailureKind labels a terminal failure for persistence and API responses.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureCredits      FailureKind = "insufficient_credits"
	FailureAuth         FailureKind = "auth_invalid"
	FailureQuota        FailureKind = "quota_exhausted"
	FailureProvider     FailureKind = "provider_failure"
	FailureTimeout      FailureKind = "poll_timeout"
	FailureIneligible   FailureKind = "tier_ineligible"
	FailureCameraIntent FailureKind = "invalid_camera_intent"
	// FailureAbandoned marks an attempt whose worker stopped mid-flight and
	// whose claim lease expired before a terminal outcome was recorded.
	FailureAbandoned FailureKind = "abandoned"
)

// ClassifyFailure maps an error to its persistable failure kind.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInsufficientCredits):
		return FailureCredits
	case errors.Is(err, ErrAuthInvalid):
		return FailureAuth
	case errors.Is(err, ErrQuotaExhausted):
		return FailureQuota
	case errors.Is(err, ErrPollTimeout):
		return FailureTimeout
	case errors.Is(err, ErrTierIneligible):
		return FailureIneligible
	default:
		return FailureProvider
	}
}
