package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clipforge/internal/dispatch"
	"clipforge/internal/domain"
	"clipforge/internal/tier"
)

type promptCreateRequest struct {
	Prompt         string           `json:"prompt"`
	NegativePrompt string           `json:"negative_prompt,omitempty"`
	DurationSec    float64          `json:"duration_sec"`
	Stages         []domain.Stage   `json:"stages,omitempty"`
	Tier           tier.Tier        `json:"tier"`
	AspectRatio    string           `json:"aspect_ratio,omitempty"`
	ReferenceImage string           `json:"reference_image,omitempty"`
	Camera         *json.RawMessage `json:"camera,omitempty"`
	ProviderKey    string           `json:"provider_key,omitempty"`
}

type promptResponse struct {
	ID        string                    `json:"id"`
	Ordinal   int                       `json:"ordinal"`
	Prompt    string                    `json:"prompt"`
	Status    domain.PromptStatus       `json:"status"`
	Retries   int                       `json:"retries"`
	Tier      string                    `json:"tier"`
	Model     string                    `json:"model,omitempty"`
	Failure   domain.FailureKind        `json:"failure,omitempty"`
	ClipID    string                    `json:"clip_id,omitempty"`
	Metrics   *domain.GenerationMetrics `json:"metrics,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

func toPromptResponse(rec *domain.PromptRecord) promptResponse {
	return promptResponse{
		ID:        rec.ID,
		Ordinal:   rec.Ordinal,
		Prompt:    rec.Prompt,
		Status:    rec.Status,
		Retries:   rec.Retries,
		Tier:      rec.Tier,
		Model:     rec.Model,
		Failure:   rec.Failure,
		ClipID:    rec.ClipID,
		Metrics:   rec.Metrics,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// PromptsCreate validates and enqueues one generation request. The handler is
// the pre-flight gate: unaffordable or ineligible requests never produce a
// record the worker could claim.
func (a *App) PromptsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req promptCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}
	if req.DurationSec <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "duration_sec must be positive")
		return
	}

	def, ok := tier.Lookup(req.Tier)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown tier")
		return
	}
	// The meter charges whole seconds, so the cap check rounds up too.
	if int(math.Ceil(req.DurationSec)) > def.MaxDurationSec {
		a.error(w, http.StatusBadRequest, "bad_request", "duration exceeds tier maximum")
		return
	}

	// An inline key is stored once and re-read by the worker at attempt
	// time; the enqueued request itself never carries the credential.
	providerKey := strings.TrimSpace(req.ProviderKey)
	if a.Credentials != nil {
		if providerKey != "" {
			if err := a.Credentials.SetKlingAPIKey(r.Context(), userID, providerKey); err != nil {
				a.error(w, http.StatusInternalServerError, "internal", "failed to store credentials")
				return
			}
		} else if def.Gated {
			stored, err := a.Credentials.KlingAPIKey(r.Context(), userID)
			if err != nil {
				a.error(w, http.StatusInternalServerError, "internal", "failed to load credentials")
				return
			}
			providerKey = stored
		}
	}
	if _, err := tier.Resolve(req.Tier, providerKey != ""); err != nil {
		if errors.Is(err, domain.ErrTierIneligible) {
			a.error(w, http.StatusForbidden, "tier_ineligible", "tier requires a provider api key")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	cost, err := a.Meter.Estimate(req.DurationSec, req.Stages, req.Tier)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if !a.Meter.Unlimited {
		balance, err := a.Ledger.Balance(r.Context(), userID)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
			return
		}
		if !a.Meter.CanAfford(balance, cost) {
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", "balance does not cover the estimated cost")
			return
		}
	}

	dispatchReq := dispatch.Request{
		UserID:         userID,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		DurationSec:    req.DurationSec,
		Stages:         req.Stages,
		Tier:           req.Tier,
		AspectRatio:    req.AspectRatio,
		ReferenceImage: req.ReferenceImage,
	}
	if req.Camera != nil {
		if err := json.Unmarshal(*req.Camera, &dispatchReq.Camera); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid camera intent")
			return
		}
	}
	payload, err := json.Marshal(dispatchReq)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to encode request")
		return
	}

	rec := domain.NewPromptRecord(uuid.NewString(), userID, 0, req.Prompt, string(req.Tier), time.Now())
	rec.RequestJSON = payload
	if err := a.Prompts.Create(r.Context(), &rec); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: create prompt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue prompt")
		return
	}

	a.json(w, http.StatusAccepted, map[string]any{
		"id":      rec.ID,
		"ordinal": rec.Ordinal,
		"status":  rec.Status,
		"cost":    cost,
	})
}

func (a *App) PromptStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadPromptForUser(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toPromptResponse(rec))
}

func (a *App) PromptsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := a.Prompts.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list prompts")
		return
	}
	items := make([]promptResponse, 0, len(records))
	for i := range records {
		items = append(items, toPromptResponse(&records[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// PromptRetry flags a failed prompt for another worker attempt. Terminal
// completed records and in-flight records are not retryable.
func (a *App) PromptRetry(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadPromptForUser(w, r)
	if !ok {
		return
	}
	if rec.Status != domain.PromptStatusFailed {
		a.error(w, http.StatusConflict, "conflict", "only failed prompts can be retried")
		return
	}
	if err := a.Prompts.RequestRetry(r.Context(), rec.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusConflict, "conflict", "prompt is no longer retryable")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to request retry")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"id": rec.ID, "status": "retry_requested"})
}

// PromptClips lists the stored clip references for a prompt.
func (a *App) PromptClips(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadPromptForUser(w, r)
	if !ok {
		return
	}
	clips, err := a.Clips.ListByPrompt(r.Context(), rec.ID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list clips")
		return
	}
	items := make([]map[string]any, 0, len(clips))
	for _, clip := range clips {
		items = append(items, map[string]any{
			"id":           clip.ID,
			"url":          clip.URL,
			"storage_key":  clip.StorageKey,
			"duration_sec": clip.DurationSec,
			"bytes":        clip.Bytes,
			"created_at":   clip.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// PromptDownload serves the mirrored clip bytes, falling back to a redirect
// to the provider URL when no local mirror exists.
func (a *App) PromptDownload(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadPromptForUser(w, r)
	if !ok {
		return
	}
	clips, err := a.Clips.ListByPrompt(r.Context(), rec.ID)
	if err != nil || len(clips) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no clip for prompt")
		return
	}
	clip := clips[0]
	if clip.StorageKey != "" && a.Store != nil {
		path, err := a.Store.Resolve(clip.StorageKey)
		if err == nil {
			http.ServeFile(w, r, path)
			return
		}
		a.Logger.Warn().Err(err).Str("clip_id", clip.ID).Msg("handlers: mirrored clip unreadable")
	}
	if clip.URL == "" {
		a.error(w, http.StatusNotFound, "not_found", "clip has no retrievable location")
		return
	}
	http.Redirect(w, r, clip.URL, http.StatusFound)
}

func (a *App) loadPromptForUser(w http.ResponseWriter, r *http.Request) (*domain.PromptRecord, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return nil, false
	}
	rec, err := a.Prompts.GetByID(r.Context(), id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "prompt not found")
		return nil, false
	}
	if rec.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "prompt not found")
		return nil, false
	}
	return rec, true
}
