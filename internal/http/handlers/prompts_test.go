package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"clipforge/internal/camera"
	"clipforge/internal/domain"
	"clipforge/internal/pricing"
)

type fakePromptRepo struct {
	mu      sync.Mutex
	records map[string]domain.PromptRecord
	retried []string
}

func newFakePromptRepo() *fakePromptRepo {
	return &fakePromptRepo{records: make(map[string]domain.PromptRecord)}
}

func (f *fakePromptRepo) Create(ctx context.Context, rec *domain.PromptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.Ordinal = len(f.records) + 1
	f.records[rec.ID] = *rec
	return nil
}

func (f *fakePromptRepo) Update(ctx context.Context, rec *domain.PromptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.ID]; !ok {
		return domain.ErrNotFound
	}
	f.records[rec.ID] = *rec
	return nil
}

func (f *fakePromptRepo) GetByID(ctx context.Context, id string) (*domain.PromptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (f *fakePromptRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.PromptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PromptRecord
	for _, rec := range f.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakePromptRepo) ClaimRunnable(ctx context.Context) (*domain.PromptRecord, error) {
	return nil, domain.ErrNotFound
}

func (f *fakePromptRepo) RequestRetry(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.Status != domain.PromptStatusFailed {
		return domain.ErrNotFound
	}
	f.retried = append(f.retried, id)
	return nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]int64
}

func (f *fakeLedger) Balance(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeLedger) Reserve(ctx context.Context, userID string, tokens int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < tokens {
		return 0, domain.ErrInsufficientCredits
	}
	f.balances[userID] -= tokens
	return f.balances[userID], nil
}

func (f *fakeLedger) Refund(ctx context.Context, userID string, tokens int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += tokens
	return nil
}

type fakeClipStore struct {
	mu    sync.Mutex
	clips []domain.Clip
}

func (f *fakeClipStore) Save(ctx context.Context, clip *domain.Clip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = append(f.clips, *clip)
	return nil
}

func (f *fakeClipStore) ListByPrompt(ctx context.Context, promptID string) ([]domain.Clip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Clip
	for _, clip := range f.clips {
		if clip.PromptID == promptID {
			out = append(out, clip)
		}
	}
	return out, nil
}

func newTestApp(t *testing.T, balance int64) (*App, *fakePromptRepo, *fakeLedger) {
	t.Helper()
	extractor, err := camera.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	prompts := newFakePromptRepo()
	ledger := &fakeLedger{balances: map[string]int64{"user-1": balance}}
	app := &App{
		Prompts:   prompts,
		Ledger:    ledger,
		Clips:     &fakeClipStore{},
		Meter:     pricing.Meter{},
		Extractor: extractor,
		Logger:    zerolog.New(io.Discard),
	}
	return app, prompts, ledger
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestPromptsCreateAccepted(t *testing.T) {
	app, prompts, _ := newTestApp(t, 100)

	rr := postJSON(t, app.PromptsCreate, "/v1/prompts", "user-1", map[string]any{
		"prompt":       "a cat, zoom in slowly",
		"duration_sec": 5,
		"tier":         "basic",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["cost"].(float64) != 18 {
		t.Fatalf("expected cost 18, got %v", resp["cost"])
	}
	if resp["status"].(string) != string(domain.PromptStatusPending) {
		t.Fatalf("expected pending, got %v", resp["status"])
	}

	rec, err := prompts.GetByID(context.Background(), resp["id"].(string))
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if len(rec.RequestJSON) == 0 {
		t.Fatal("expected stored request payload")
	}
	if rec.Ordinal != 1 {
		t.Fatalf("expected ordinal 1, got %d", rec.Ordinal)
	}
}

func TestPromptsCreateInsufficientCredits(t *testing.T) {
	app, prompts, _ := newTestApp(t, 5)

	rr := postJSON(t, app.PromptsCreate, "/v1/prompts", "user-1", map[string]any{
		"prompt":       "a cat",
		"duration_sec": 5,
		"tier":         "basic",
	})
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rr.Code)
	}
	if len(prompts.records) != 0 {
		t.Fatal("unaffordable request must not create a record")
	}
}

func TestPromptsCreateGatedTierWithoutKey(t *testing.T) {
	app, _, _ := newTestApp(t, 1000)

	rr := postJSON(t, app.PromptsCreate, "/v1/prompts", "user-1", map[string]any{
		"prompt":       "a cat",
		"duration_sec": 5,
		"tier":         "premium",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPromptsCreateGatedTierWithKey(t *testing.T) {
	app, prompts, _ := newTestApp(t, 1000)

	rr := postJSON(t, app.PromptsCreate, "/v1/prompts", "user-1", map[string]any{
		"prompt":       "a cat",
		"duration_sec": 5,
		"tier":         "premium",
		"provider_key": "caller-key",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	rec, err := prompts.GetByID(context.Background(), resp["id"].(string))
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	// The credential is never written into the stored request payload.
	if bytes.Contains(rec.RequestJSON, []byte("caller-key")) {
		t.Fatalf("stored request leaks the provider key: %s", rec.RequestJSON)
	}
}

func TestPromptsCreateValidation(t *testing.T) {
	app, _, _ := newTestApp(t, 100)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing prompt", map[string]any{"duration_sec": 5, "tier": "basic"}},
		{"zero duration", map[string]any{"prompt": "x", "duration_sec": 0, "tier": "basic"}},
		{"unknown tier", map[string]any{"prompt": "x", "duration_sec": 5, "tier": "ultra"}},
		{"duration over tier max", map[string]any{"prompt": "x", "duration_sec": 20, "tier": "basic"}},
		{"fractional duration over tier max", map[string]any{"prompt": "x", "duration_sec": 10.5, "tier": "basic"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(t, app.PromptsCreate, "/v1/prompts", "user-1", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestPromptsCreateRequiresUser(t *testing.T) {
	app, _, _ := newTestApp(t, 100)

	rr := postJSON(t, app.PromptsCreate, "/v1/prompts", "", map[string]any{
		"prompt":       "a cat",
		"duration_sec": 5,
		"tier":         "basic",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func getWithParam(t *testing.T, handler http.HandlerFunc, userID, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/prompts/"+id, nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestPromptStatusHidesOtherUsers(t *testing.T) {
	app, prompts, _ := newTestApp(t, 100)
	rec := domain.NewPromptRecord("p-1", "user-1", 1, "a cat", "basic", time.Now())
	if err := prompts.Create(context.Background(), &rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if rr := getWithParam(t, app.PromptStatus, "user-1", "p-1"); rr.Code != http.StatusOK {
		t.Fatalf("owner expected 200, got %d", rr.Code)
	}
	if rr := getWithParam(t, app.PromptStatus, "user-2", "p-1"); rr.Code != http.StatusNotFound {
		t.Fatalf("other user expected 404, got %d", rr.Code)
	}
}

func TestPromptRetryOnlyFailed(t *testing.T) {
	app, prompts, _ := newTestApp(t, 100)
	rec := domain.NewPromptRecord("p-1", "user-1", 1, "a cat", "basic", time.Now())
	if err := prompts.Create(context.Background(), &rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	rr := getWithParam(t, app.PromptRetry, "user-1", "p-1")
	if rr.Code != http.StatusConflict {
		t.Fatalf("pending record expected 409, got %d", rr.Code)
	}

	began, err := rec.Begin(time.Now())
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	failed, err := began.Fail(domain.ErrProviderFailure, time.Now())
	if err != nil {
		t.Fatalf("Fail error: %v", err)
	}
	if err := prompts.Update(context.Background(), &failed); err != nil {
		t.Fatalf("persist failed record: %v", err)
	}

	rr = getWithParam(t, app.PromptRetry, "user-1", "p-1")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("failed record expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(prompts.retried) != 1 || prompts.retried[0] != "p-1" {
		t.Fatalf("expected retry flagged for p-1, got %v", prompts.retried)
	}
}

func TestEstimatePreviewsCameraIntent(t *testing.T) {
	app, _, _ := newTestApp(t, 100)

	rr := postJSON(t, app.Estimate, "/v1/estimates", "user-1", map[string]any{
		"prompt":       "slow zoom in on a lighthouse",
		"duration_sec": 5,
		"stages":       []string{"camera"},
		"tier":         "economy",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp estimateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Cost != 12 {
		t.Fatalf("expected cost 12 (10 base + 2 camera), got %d", resp.Cost)
	}
	if resp.Balance != 100 || !resp.Affordable {
		t.Fatalf("unexpected balance fields: %+v", resp)
	}
	if resp.Model != "kling-v1" {
		t.Fatalf("expected kling-v1, got %q", resp.Model)
	}
	if resp.Camera == nil || resp.Camera.Zoom >= 0 {
		t.Fatalf("expected negative zoom intent, got %+v", resp.Camera)
	}
}
