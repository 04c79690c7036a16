package kling

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"clipforge/internal/camera"
	"clipforge/internal/domain"
)

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	c, err := NewClient(Options{
		APIKey:          "test-key",
		BaseURL:         "https://provider.test",
		HTTPClient:      &http.Client{Transport: transport},
		PollInterval:    time.Millisecond,
		PollMaxInterval: 2 * time.Millisecond,
		PollTimeout:     250 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestSubmitEncodesRequest(t *testing.T) {
	transport := newFakeTransport()
	transport.queueJSON("POST /v1/videos/text2video", http.StatusOK, envelope(0, "SUCCEED", taskData{TaskID: "task-1", TaskStatus: statusSubmitted}))
	client := newTestClient(t, transport)

	zoom := &camera.Intent{Type: camera.MoveSimple, Zoom: -5}
	task, err := client.Submit(context.Background(), SubmitRequest{
		Model:          "kling-v1-5",
		Mode:           "std",
		Prompt:         "a red fox running through snow",
		NegativePrompt: "blurry",
		DurationSec:    5,
		AspectRatio:    "16:9",
		Camera:         zoom,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if task.ID != "task-1" {
		t.Fatalf("task id = %q", task.ID)
	}
	if !strings.HasSuffix(task.StatusURL, "/v1/videos/text2video/task-1") {
		t.Fatalf("status url = %q", task.StatusURL)
	}

	var sent map[string]any
	if err := json.Unmarshal(transport.lastBody, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent["model_name"] != "kling-v1-5" || sent["mode"] != "std" || sent["duration"] != "5" {
		t.Fatalf("unexpected payload: %v", sent)
	}
	cc, ok := sent["camera_control"].(map[string]any)
	if !ok {
		t.Fatalf("camera_control missing: %v", sent)
	}
	cfg, ok := cc["config"].(map[string]any)
	if !ok {
		t.Fatalf("camera config missing: %v", cc)
	}
	if cfg["zoom"] != float64(-5) {
		t.Fatalf("zoom = %v, want -5", cfg["zoom"])
	}
	// Undriven axes must be omitted, not sent as zero.
	for _, axis := range []string{"horizontal", "vertical", "pan", "tilt", "roll"} {
		if _, present := cfg[axis]; present {
			t.Fatalf("axis %q should be omitted: %v", axis, cfg)
		}
	}
}

func TestSubmitRejectsInvalidCameraIntent(t *testing.T) {
	transport := newFakeTransport()
	client := newTestClient(t, transport)
	bad := &camera.Intent{Type: camera.MoveSimple, Zoom: -5, Pan: 3}
	_, err := client.Submit(context.Background(), SubmitRequest{
		Model:  "kling-v1",
		Prompt: "city at night",
		Camera: bad,
	})
	if err == nil {
		t.Fatalf("expected error for invalid camera intent")
	}
	if transport.requests() != 0 {
		t.Fatalf("invalid intent must not reach the provider")
	}
}

func TestSubmitTranslatesAuthFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.queueJSON("POST /v1/videos/text2video", http.StatusUnauthorized, envelope(1002, "invalid api key", taskData{}))
	client := newTestClient(t, transport)

	_, err := client.Submit(context.Background(), SubmitRequest{Model: "kling-v1", Prompt: "test"})
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Fatalf("err = %v, want ErrAuthInvalid", err)
	}
	// Submit never retries: one request only.
	if transport.requests() != 1 {
		t.Fatalf("requests = %d, want 1", transport.requests())
	}
}

func TestPollReachesSuccess(t *testing.T) {
	transport := newFakeTransport()
	statusKey := "GET /v1/videos/text2video/task-7"
	transport.queueJSON(statusKey, http.StatusOK, envelope(0, "SUCCEED", taskData{TaskID: "task-7", TaskStatus: statusSubmitted}))
	transport.queueJSON(statusKey, http.StatusOK, envelope(0, "SUCCEED", taskData{TaskID: "task-7", TaskStatus: statusProcessing}))
	transport.queueJSON(statusKey, http.StatusOK, envelope(0, "SUCCEED", taskData{
		TaskID:     "task-7",
		TaskStatus: statusSucceed,
		TaskResult: &taskResult{Videos: []videoResult{{ID: "v-1", URL: "https://cdn.provider.test/v-1.mp4", Duration: "5.0"}}},
	}))
	client := newTestClient(t, transport)

	var seen []string
	task := Task{ID: "task-7", StatusURL: "https://provider.test/v1/videos/text2video/task-7", SubmittedAt: time.Now()}
	res, err := client.Poll(context.Background(), task, func(status string) { seen = append(seen, status) })
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.ClipURL != "https://cdn.provider.test/v-1.mp4" {
		t.Fatalf("clip url = %q", res.ClipURL)
	}
	if res.DurationSec != 5.0 {
		t.Fatalf("duration = %.1f", res.DurationSec)
	}
	if res.ResponseBytes == 0 {
		t.Fatalf("response bytes not recorded")
	}
	want := []string{statusSubmitted, statusProcessing, statusSucceed}
	if len(seen) != len(want) {
		t.Fatalf("progress = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("progress[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestPollWorksWithoutProgressCallback(t *testing.T) {
	transport := newFakeTransport()
	statusKey := "GET /v1/videos/text2video/task-8"
	transport.queueJSON(statusKey, http.StatusOK, envelope(0, "SUCCEED", taskData{
		TaskID:     "task-8",
		TaskStatus: statusSucceed,
		TaskResult: &taskResult{Videos: []videoResult{{URL: "https://cdn.provider.test/v-2.mp4", Duration: "4"}}},
	}))
	client := newTestClient(t, transport)

	task := Task{ID: "task-8", StatusURL: "https://provider.test/v1/videos/text2video/task-8", SubmittedAt: time.Now()}
	if _, err := client.Poll(context.Background(), task, nil); err != nil {
		t.Fatalf("poll without callback: %v", err)
	}
}

func TestPollTranslatesQuotaExhaustion(t *testing.T) {
	transport := newFakeTransport()
	statusKey := "GET /v1/videos/text2video/task-9"
	transport.queueJSON(statusKey, http.StatusOK, envelope(0, "SUCCEED", taskData{
		TaskID:        "task-9",
		TaskStatus:    statusFailed,
		TaskStatusMsg: "resource pack exhausted",
	}))
	client := newTestClient(t, transport)

	task := Task{ID: "task-9", StatusURL: "https://provider.test/v1/videos/text2video/task-9", SubmittedAt: time.Now()}
	_, err := client.Poll(context.Background(), task, nil)
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("err = %v, want ErrQuotaExhausted", err)
	}
}

func TestPollTimesOutInsteadOfHanging(t *testing.T) {
	transport := newFakeTransport()
	statusKey := "GET /v1/videos/text2video/task-10"
	// The provider never reaches a terminal status.
	transport.repeatJSON(statusKey, http.StatusOK, envelope(0, "SUCCEED", taskData{TaskID: "task-10", TaskStatus: statusProcessing}))

	client, err := NewClient(Options{
		APIKey:       "test-key",
		BaseURL:      "https://provider.test",
		HTTPClient:   &http.Client{Transport: transport},
		PollInterval: time.Millisecond,
		PollTimeout:  20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	task := Task{ID: "task-10", StatusURL: "https://provider.test/v1/videos/text2video/task-10", SubmittedAt: time.Now()}
	_, err = client.Poll(context.Background(), task, nil)
	if !errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
}

func TestPollStopsOnCancellation(t *testing.T) {
	transport := newFakeTransport()
	statusKey := "GET /v1/videos/text2video/task-11"
	transport.repeatJSON(statusKey, http.StatusOK, envelope(0, "SUCCEED", taskData{TaskID: "task-11", TaskStatus: statusProcessing}))
	client := newTestClient(t, transport)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	task := Task{ID: "task-11", StatusURL: "https://provider.test/v1/videos/text2video/task-11", SubmittedAt: time.Now()}
	_, err := client.Poll(ctx, task, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSubmitUsesCallerSuppliedKey(t *testing.T) {
	transport := newFakeTransport()
	transport.queueJSON("POST /v1/videos/text2video", http.StatusOK, envelope(0, "SUCCEED", taskData{TaskID: "task-12", TaskStatus: statusSubmitted}))
	client := newTestClient(t, transport)

	_, err := client.Submit(context.Background(), SubmitRequest{
		Model:  "kling-v2-master",
		Mode:   "pro",
		Prompt: "prompt",
		APIKey: "caller-key",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := transport.lastAuth; got != "Bearer caller-key" {
		t.Fatalf("authorization = %q, want caller key", got)
	}
}

func TestSubmitHonorsRequestEndpoint(t *testing.T) {
	transport := newFakeTransport()
	transport.queueJSON("POST /v1/videos/image2video", http.StatusOK, envelope(0, "SUCCEED", taskData{TaskID: "task-13", TaskStatus: statusSubmitted}))
	client := newTestClient(t, transport)

	task, err := client.Submit(context.Background(), SubmitRequest{
		Endpoint:       "/v1/videos/image2video",
		Model:          "kling-v1-6",
		Prompt:         "prompt",
		ReferenceImage: "https://cdn.example.test/ref.png",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.HasSuffix(task.StatusURL, "/v1/videos/image2video/task-13") {
		t.Fatalf("status url = %q, want the request endpoint", task.StatusURL)
	}
	if transport.requests() != 1 {
		t.Fatalf("requests = %d, want 1", transport.requests())
	}
}

func envelope(code int, message string, data taskData) taskEnvelope {
	return taskEnvelope{Code: code, Message: message, RequestID: "req-1", Data: data}
}

// fakeTransport serves queued responses keyed by "METHOD /path". A queue
// entry is consumed per request; repeat entries are served indefinitely.
type fakeTransport struct {
	mu       sync.Mutex
	queues   map[string][]stubResponse
	repeats  map[string]stubResponse
	count    int
	lastBody []byte
	lastAuth string
}

type stubResponse struct {
	status int
	body   []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		queues:  map[string][]stubResponse{},
		repeats: map[string]stubResponse{},
	}
}

func (f *fakeTransport) queueJSON(key string, status int, payload any) {
	body, _ := json.Marshal(payload)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[key] = append(f.queues[key], stubResponse{status: status, body: body})
}

func (f *fakeTransport) repeatJSON(key string, status int, payload any) {
	body, _ := json.Marshal(payload)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repeats[key] = stubResponse{status: status, body: body}
}

func (f *fakeTransport) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.lastAuth = req.Header.Get("Authorization")
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		f.lastBody = body
	}
	key := req.Method + " " + req.URL.Path
	if queue := f.queues[key]; len(queue) > 0 {
		stub := queue[0]
		f.queues[key] = queue[1:]
		return stub.toResponse(), nil
	}
	if stub, ok := f.repeats[key]; ok {
		return stub.toResponse(), nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
		Header:     http.Header{},
	}, nil
}

func (s stubResponse) toResponse() *http.Response {
	return &http.Response{
		StatusCode: s.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(string(s.body))),
	}
}
