package handlers

import (
	"encoding/json"
	"net/http"

	"clipforge/internal/camera"
	"clipforge/internal/domain"
	"clipforge/internal/tier"
)

type estimateRequest struct {
	Prompt      string         `json:"prompt"`
	DurationSec float64        `json:"duration_sec"`
	Stages      []domain.Stage `json:"stages,omitempty"`
	Tier        tier.Tier      `json:"tier"`
}

type estimateResponse struct {
	Cost       int64          `json:"cost"`
	Balance    int64          `json:"balance"`
	Affordable bool           `json:"affordable"`
	Model      string         `json:"model"`
	Mode       string         `json:"mode"`
	Camera     *camera.Intent `json:"camera,omitempty"`
}

// Estimate prices a request without enqueueing it. When the camera stage is
// enabled the response previews the intent that text inference would submit.
func (a *App) Estimate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	cost, err := a.Meter.Estimate(req.DurationSec, req.Stages, req.Tier)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}

	resp := estimateResponse{
		Cost:       cost,
		Balance:    balance,
		Affordable: a.Meter.Unlimited || a.Meter.CanAfford(balance, cost),
	}
	if model, err := tier.Resolve(req.Tier, true); err == nil {
		resp.Model = model.Model
		resp.Mode = tier.ModeLabel(req.Tier)
	}
	if hasStage(req.Stages, domain.StageCamera) && a.Extractor != nil {
		resp.Camera = a.Extractor.Infer(req.Prompt)
	}
	a.json(w, http.StatusOK, resp)
}

func hasStage(stages []domain.Stage, s domain.Stage) bool {
	for _, candidate := range stages {
		if candidate == s {
			return true
		}
	}
	return false
}
