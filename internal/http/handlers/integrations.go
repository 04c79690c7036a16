package handlers

import (
	"encoding/json"
	"net/http"
)

type integrationKeyRequest struct {
	APIKey string `json:"api_key"`
}

// KlingStatus reports whether the caller has a provider key on file, which
// gates access to the premium tier.
func (a *App) KlingStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	key, err := a.Credentials.KlingAPIKey(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load credentials")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"configured": key != ""})
}

func (a *App) KlingSetKey(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req integrationKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Credentials.SetKlingAPIKey(r.Context(), userID, req.APIKey); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (a *App) KlingDeleteKey(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Credentials.DeleteKlingAPIKey(r.Context(), userID); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete credentials")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "deleted"})
}
