// Package handlers holds the HTTP surface. Handlers validate and enqueue;
// the worker process runs the actual generation attempts.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"clipforge/internal/camera"
	"clipforge/internal/domain"
	"clipforge/internal/infra"
	"clipforge/internal/infra/credentials"
	"clipforge/internal/pricing"
	"clipforge/internal/storage"
)

type App struct {
	Prompts     domain.PromptRepository
	Ledger      domain.Ledger
	Clips       domain.ClipStore
	Meter       pricing.Meter
	Extractor   *camera.Extractor
	Credentials *credentials.Store
	Store       *storage.FileStore
	Logger      infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// currentUserID reads the caller identity established by the edge proxy.
func (a *App) currentUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}
