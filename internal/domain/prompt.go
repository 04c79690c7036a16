package domain

import (
	"time"
)

// PromptStatus enumerates prompt lifecycle states.
type PromptStatus string

const (
	PromptStatusPending    PromptStatus = "pending"
	PromptStatusGenerating PromptStatus = "generating"
	PromptStatusCompleted  PromptStatus = "completed"
	PromptStatusFailed     PromptStatus = "failed"
)

// Stage enumerates optional processing stages a caller can enable on a
// generation request. Each enabled stage adds a fixed token surcharge.
type Stage string

const (
	StageEnhance Stage = "enhance"
	StageCamera  Stage = "camera"
	StageUpscale Stage = "upscale"
)

// PromptRecord is the durable unit of work for one requested clip. The
// original prompt text and creation timestamp never change; status, retry
// count and results advance only through the transition methods below, which
// return a new record instead of mutating in place.
type PromptRecord struct {
	ID      string
	UserID  string
	Ordinal int
	Prompt  string
	Status  PromptStatus
	Retries int
	Tier    string
	Model   string
	Failure FailureKind
	// RequestJSON preserves the full caller request so the worker can
	// rebuild an attempt without the submitting process.
	RequestJSON []byte
	ClipID      string
	Metrics     *GenerationMetrics
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPromptRecord creates a record in the pending state with a zero retry
// count. The first Begin bumps retries to 1.
func NewPromptRecord(id, userID string, ordinal int, prompt, tier string, now time.Time) PromptRecord {
	return PromptRecord{
		ID:        id,
		UserID:    userID,
		Ordinal:   ordinal,
		Prompt:    prompt,
		Status:    PromptStatusPending,
		Tier:      tier,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Begin starts a generation attempt. Allowed from pending (first attempt) and
// from failed (manual resubmission, which re-enters generating directly).
// Every entry into generating increments the retry counter.
func (p PromptRecord) Begin(now time.Time) (PromptRecord, error) {
	switch p.Status {
	case PromptStatusPending, PromptStatusFailed:
	default:
		return p, ErrIllegalTransition
	}
	p.Status = PromptStatusGenerating
	p.Retries++
	p.Failure = FailureNone
	p.UpdatedAt = now
	return p, nil
}

// Complete finishes a generating record with the produced clip reference and
// its telemetry. Completed records are terminal.
func (p PromptRecord) Complete(clipID string, metrics GenerationMetrics, now time.Time) (PromptRecord, error) {
	if p.Status != PromptStatusGenerating {
		return p, ErrIllegalTransition
	}
	if clipID == "" {
		return p, ErrIllegalTransition
	}
	p.Status = PromptStatusCompleted
	p.ClipID = clipID
	p.Metrics = &metrics
	p.UpdatedAt = now
	return p, nil
}

// Fail marks a generating record as failed with a typed cause. A failed
// record can only advance by a fresh Begin.
func (p PromptRecord) Fail(cause error, now time.Time) (PromptRecord, error) {
	if p.Status != PromptStatusGenerating {
		return p, ErrIllegalTransition
	}
	p.Status = PromptStatusFailed
	p.Failure = ClassifyFailure(cause)
	p.UpdatedAt = now
	return p, nil
}

// Abandon settles a generating record whose attempt stopped without a
// terminal outcome, typically a crashed or cancelled worker whose claim lease
// expired. The record lands in failed with the abandoned cause, so a manual
// resubmission stays possible.
func (p PromptRecord) Abandon(now time.Time) (PromptRecord, error) {
	if p.Status != PromptStatusGenerating {
		return p, ErrIllegalTransition
	}
	p.Status = PromptStatusFailed
	p.Failure = FailureAbandoned
	p.UpdatedAt = now
	return p, nil
}

// Terminal reports whether the record reached completed or failed.
func (p PromptRecord) Terminal() bool {
	return p.Status == PromptStatusCompleted || p.Status == PromptStatusFailed
}
