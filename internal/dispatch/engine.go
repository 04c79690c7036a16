// Package dispatch sequences one generation attempt end to end: pricing,
// credit reservation, camera inference, tier resolution, provider submission
// and polling, and the prompt record's state transitions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/camera"
	"clipforge/internal/domain"
	"clipforge/internal/infra"
	"clipforge/internal/pricing"
	"clipforge/internal/providers/kling"
	"clipforge/internal/tier"
)

// Renderer is the provider boundary the engine drives. Submit is one bounded
// network call; PollWithKey runs the single poll cycle for a task.
type Renderer interface {
	Submit(ctx context.Context, req kling.SubmitRequest) (kling.Task, error)
	PollWithKey(ctx context.Context, task kling.Task, apiKey string, onProgress func(status string)) (*kling.RenderResult, error)
}

// Mirror optionally copies a finished clip into local storage.
type Mirror interface {
	MirrorClip(ctx context.Context, promptID, clipURL string) (storageKey string, size int64, err error)
}

// KeyReader loads a user's stored provider credential. Stored requests never
// carry the key itself; the worker re-reads it at attempt time.
type KeyReader interface {
	KlingAPIKey(ctx context.Context, userID string) (string, error)
}

// Request is the caller input for one clip.
type Request struct {
	UserID         string         `json:"user_id"`
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	DurationSec    float64        `json:"duration_sec"`
	Stages         []domain.Stage `json:"stages,omitempty"`
	Tier           tier.Tier      `json:"tier"`
	AspectRatio    string         `json:"aspect_ratio,omitempty"`
	ReferenceImage string         `json:"reference_image,omitempty"`
	// Camera, when set, always wins over text-derived inference.
	Camera *camera.Intent `json:"camera,omitempty"`
}

func (r Request) hasStage(s domain.Stage) bool {
	for _, candidate := range r.Stages {
		if candidate == s {
			return true
		}
	}
	return false
}

// Progress is emitted to the optional progress callback for UI feedback.
type Progress struct {
	PromptID string
	Phase    string
	Message  string
}

// Engine owns the generation attempt flow. All collaborators are injected so
// tests can substitute fakes without process-wide state.
type Engine struct {
	Meter     pricing.Meter
	Extractor *camera.Extractor
	Renderer  Renderer
	Ledger    domain.Ledger
	Prompts   domain.PromptRepository
	Clips     domain.ClipStore
	Mirror    Mirror
	// Keys, when set, supplies per-user provider credentials for gated tiers.
	Keys   KeyReader
	Logger infra.Logger
	// ExperimentGroup tags captured metrics, when set.
	ExperimentGroup string
}

// Run executes one attempt for the record: pending (or failed, on manual
// retry) enters generating, then reaches completed or failed. The engine
// never retries on its own; resubmission is the caller's decision. A context
// cancellation abandons the attempt without forcing a terminal state.
func (e *Engine) Run(ctx context.Context, rec domain.PromptRecord, req Request, onProgress func(Progress)) (domain.PromptRecord, error) {
	localStart := time.Now()
	emit := func(phase, message string) {
		if onProgress != nil {
			onProgress(Progress{PromptID: rec.ID, Phase: phase, Message: message})
		}
	}

	rec, err := rec.Begin(time.Now())
	if err != nil {
		return rec, err
	}
	if err := e.Prompts.Update(ctx, &rec); err != nil {
		return rec, fmt.Errorf("dispatch: persist begin: %w", err)
	}
	emit("preparing", "attempt started")

	cost, err := e.Meter.Estimate(req.DurationSec, req.Stages, req.Tier)
	if err != nil {
		return e.fail(ctx, rec, err)
	}

	apiKey, err := e.providerKey(ctx, req.UserID)
	if err != nil {
		return e.fail(ctx, rec, err)
	}
	model, err := tier.Resolve(req.Tier, apiKey != "")
	if err != nil {
		return e.fail(ctx, rec, err)
	}
	// Duration rounds up: the meter charges whole seconds, so the cap check
	// must see the same value.
	durationSec := int(math.Ceil(req.DurationSec))
	if durationSec > model.MaxDurationSec {
		return e.fail(ctx, rec, fmt.Errorf("dispatch: duration %.1fs exceeds tier maximum %ds: %w",
			req.DurationSec, model.MaxDurationSec, domain.ErrInvalidPrompt))
	}
	rec.Model = model.Model

	// Check-then-reserve is one atomic ledger operation; two concurrent
	// attempts can never both pass against the same balance.
	reserved := false
	if !e.Meter.Unlimited {
		remaining, err := e.Ledger.Reserve(ctx, req.UserID, cost)
		if err != nil {
			return e.fail(ctx, rec, err)
		}
		reserved = true
		e.Logger.Debug().
			Str("prompt_id", rec.ID).
			Int64("cost", cost).
			Int64("remaining", remaining).
			Msg("dispatch: tokens reserved")
	}
	refund := func() {
		if !reserved {
			return
		}
		if err := e.Ledger.Refund(context.WithoutCancel(ctx), req.UserID, cost); err != nil {
			e.Logger.Error().Err(err).Str("prompt_id", rec.ID).Msg("dispatch: refund failed")
		}
	}

	prompt := req.Prompt
	if req.hasStage(domain.StageEnhance) {
		prompt = EnhancePrompt(prompt)
	}
	intent := e.resolveIntent(rec.ID, req)

	emit("submitting", "submitting generation task")
	submitStart := time.Now()
	task, err := e.Renderer.Submit(ctx, kling.SubmitRequest{
		Endpoint:       model.Endpoint,
		Model:          model.Model,
		Mode:           model.Mode,
		Prompt:         prompt,
		NegativePrompt: negativePromptFor(model, req),
		DurationSec:    durationSec,
		AspectRatio:    req.AspectRatio,
		ReferenceImage: req.ReferenceImage,
		Camera:         intent,
		APIKey:         apiKey,
	})
	submitLatency := time.Since(submitStart)
	if err != nil {
		// The provider charged nothing; the reservation goes back.
		refund()
		return e.fail(ctx, rec, err)
	}

	emit("generating", "task "+task.ID+" accepted")
	localProcessing := time.Since(localStart)
	res, err := e.Renderer.PollWithKey(ctx, task, apiKey, func(status string) {
		emit("generating", status)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Abandonment: polling stops, the record keeps its current
			// state and a terminal state is never resurrected.
			e.Logger.Warn().Str("prompt_id", rec.ID).Msg("dispatch: attempt abandoned")
			return rec, ctx.Err()
		}
		return e.fail(ctx, rec, err)
	}

	clip := domain.Clip{
		ID:          uuid.NewString(),
		PromptID:    rec.ID,
		URL:         res.ClipURL,
		DurationSec: res.DurationSec,
		CreatedAt:   time.Now(),
	}
	if e.Mirror != nil {
		key, size, err := e.Mirror.MirrorClip(ctx, rec.ID, res.ClipURL)
		if err != nil {
			e.Logger.Warn().Err(err).Str("prompt_id", rec.ID).Msg("dispatch: clip mirror failed")
		} else {
			clip.StorageKey = key
			clip.Bytes = size
		}
	}
	if err := e.Clips.Save(ctx, &clip); err != nil {
		return e.fail(ctx, rec, fmt.Errorf("dispatch: persist clip: %w", err))
	}

	metrics := Capture(res, Timings{
		NetworkLatency:  submitLatency,
		LocalProcessing: localProcessing,
		PeakMemoryBytes: peakMemory(),
	}, e.ExperimentGroup, time.Now())

	rec, err = rec.Complete(clip.ID, metrics, time.Now())
	if err != nil {
		return rec, err
	}
	if err := e.Prompts.Update(ctx, &rec); err != nil {
		return rec, fmt.Errorf("dispatch: persist completion: %w", err)
	}
	emit("completed", clip.URL)
	e.Logger.Info().
		Str("prompt_id", rec.ID).
		Str("clip_id", clip.ID).
		Dur("generation_time", metrics.GenerationTime).
		Msg("dispatch: prompt completed")
	return rec, nil
}

// Recover settles an attempt whose worker stopped mid-flight. The record
// moves to failed with the abandoned cause and the attempt's reservation is
// returned, so a manual resubmission starts from a clean ledger.
func (e *Engine) Recover(ctx context.Context, rec domain.PromptRecord, req Request) (domain.PromptRecord, error) {
	rec, err := rec.Abandon(time.Now())
	if err != nil {
		return rec, err
	}
	if err := e.Prompts.Update(ctx, &rec); err != nil {
		return rec, fmt.Errorf("dispatch: persist abandonment: %w", err)
	}
	// The refund follows the persisted transition: once the record is
	// failed it cannot be reclaimed, so the refund runs at most once.
	if !e.Meter.Unlimited {
		cost, err := e.Meter.Estimate(req.DurationSec, req.Stages, req.Tier)
		if err != nil {
			return rec, fmt.Errorf("dispatch: estimate abandoned attempt: %w", err)
		}
		if err := e.Ledger.Refund(context.WithoutCancel(ctx), req.UserID, cost); err != nil {
			return rec, fmt.Errorf("dispatch: refund abandoned attempt: %w", err)
		}
	}
	e.Logger.Warn().
		Str("prompt_id", rec.ID).
		Int("retries", rec.Retries).
		Msg("dispatch: abandoned attempt recovered")
	return rec, nil
}

// providerKey resolves the credential for an attempt from the stored
// per-user credentials, when a reader is configured.
func (e *Engine) providerKey(ctx context.Context, userID string) (string, error) {
	if e.Keys == nil {
		return "", nil
	}
	key, err := e.Keys.KlingAPIKey(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("dispatch: load credential: %w", err)
	}
	return key, nil
}

// resolveIntent applies the precedence rules: an explicit caller intent wins
// and suppresses inference entirely; an invalid explicit intent is dropped,
// never corrected beyond clamping. Inference runs only when the camera stage
// is enabled.
func (e *Engine) resolveIntent(promptID string, req Request) *camera.Intent {
	if req.Camera != nil {
		clamped := req.Camera.Clamp()
		if err := clamped.Validate(); err != nil {
			e.Logger.Warn().Err(err).Str("prompt_id", promptID).Msg("dispatch: explicit camera intent dropped")
			return nil
		}
		return &clamped
	}
	if !req.hasStage(domain.StageCamera) || e.Extractor == nil {
		return nil
	}
	return e.Extractor.Infer(req.Prompt)
}

func (e *Engine) fail(ctx context.Context, rec domain.PromptRecord, cause error) (domain.PromptRecord, error) {
	failed, err := rec.Fail(cause, time.Now())
	if err != nil {
		return rec, errors.Join(cause, err)
	}
	if err := e.Prompts.Update(context.WithoutCancel(ctx), &failed); err != nil {
		return failed, errors.Join(cause, fmt.Errorf("dispatch: persist failure: %w", err))
	}
	e.Logger.Error().Err(cause).
		Str("prompt_id", failed.ID).
		Str("failure", string(failed.Failure)).
		Int("retries", failed.Retries).
		Msg("dispatch: prompt failed")
	return failed, cause
}

// negativePromptFor drops the negative prompt for model versions that do not
// support it rather than sending a field the provider would reject.
func negativePromptFor(model tier.ModelVersion, req Request) string {
	if !model.NegativePrompt {
		return ""
	}
	return req.NegativePrompt
}

func peakMemory() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}
