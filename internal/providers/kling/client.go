// Package kling talks to the Kling asynchronous text-to-video API: a single
// submission call that returns a task handle, and a status poll that is
// repeated at a bounded, slowly backing-off interval until the task reaches
// a terminal outcome.
package kling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/domain"
	"clipforge/internal/infra"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("kling: api key is required")

// defaultCreatePath is used when a submission does not name its own endpoint.
const defaultCreatePath = "/v1/videos/text2video"

// Options configures the Kling client.
type Options struct {
	APIKey          string
	BaseURL         string
	HTTPClient      *http.Client
	Logger          *infra.Logger
	SubmitTimeout   time.Duration
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	// PollTimeout is the wall-clock ceiling for one poll cycle; exceeding
	// it abandons the task with domain.ErrPollTimeout.
	PollTimeout time.Duration
}

// Client performs HTTP calls against the provider's job API.
type Client struct {
	apiKey          string
	baseURL         string
	httpClient      *http.Client
	logger          *infra.Logger
	submitTimeout   time.Duration
	pollInterval    time.Duration
	pollMaxInterval time.Duration
	pollTimeout     time.Duration
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.klingai.com"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	c := &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		baseURL:         baseURL,
		httpClient:      httpClient,
		logger:          logger,
		submitTimeout:   opts.SubmitTimeout,
		pollInterval:    opts.PollInterval,
		pollMaxInterval: opts.PollMaxInterval,
		pollTimeout:     opts.PollTimeout,
	}
	if c.submitTimeout <= 0 {
		c.submitTimeout = 15 * time.Second
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 3 * time.Second
	}
	if c.pollMaxInterval < c.pollInterval {
		c.pollMaxInterval = 10 * time.Second
		if c.pollMaxInterval < c.pollInterval {
			c.pollMaxInterval = c.pollInterval
		}
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = 6 * time.Minute
	}
	return c, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit sends one generation job. It is a single network call bounded by the
// submit timeout; any failure here is fatal for the attempt, the client never
// retries on its own.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (Task, error) {
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return Task{}, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Task{}, fmt.Errorf("kling: %w: empty prompt", domain.ErrInvalidPrompt)
	}
	if req.Camera != nil {
		if err := req.Camera.Validate(); err != nil {
			return Task{}, err
		}
	}
	payload := createTaskRequest{
		ModelName:      req.Model,
		Mode:           req.Mode,
		Prompt:         prompt,
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		AspectRatio:    req.AspectRatio,
		Image:          strings.TrimSpace(req.ReferenceImage),
		CameraControl:  encodeCamera(req.Camera),
	}
	if req.DurationSec > 0 {
		payload.Duration = strconv.Itoa(req.DurationSec)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("kling: encode request: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	path := req.Endpoint
	if path == "" {
		path = defaultCreatePath
	}
	endpoint := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(submitCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Task{}, fmt.Errorf("kling: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Task{}, fmt.Errorf("kling: submit: %w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Task{}, fmt.Errorf("kling: read submit response: %w: %v", domain.ErrProviderFailure, err)
	}

	var envelope taskEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 300 {
			return Task{}, translateFailure(resp.StatusCode, 0, strings.TrimSpace(string(raw)))
		}
		return Task{}, fmt.Errorf("kling: decode submit response: %w: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode >= 300 || envelope.Code != 0 {
		return Task{}, translateFailure(resp.StatusCode, envelope.Code, envelope.Message)
	}
	if envelope.Data.TaskID == "" {
		return Task{}, fmt.Errorf("kling: submit accepted without task id: %w", domain.ErrProviderFailure)
	}

	task := Task{
		ID:          envelope.Data.TaskID,
		StatusURL:   endpoint + "/" + envelope.Data.TaskID,
		SubmittedAt: time.Now(),
	}
	c.logger.Debug().
		Str("task_id", task.ID).
		Str("model", req.Model).
		Str("mode", req.Mode).
		Msg("kling: task submitted")
	return task, nil
}

// Poll queries the task's status address until the provider reports a
// terminal outcome or the poll ceiling is exceeded. onProgress, when non-nil,
// receives intermediate status strings; it is never required for
// correctness. Exactly one poll cycle exists per task.
func (c *Client) Poll(ctx context.Context, task Task, onProgress func(status string)) (*RenderResult, error) {
	key := c.apiKey
	return c.pollWithKey(ctx, task, key, onProgress)
}

// PollWithKey is Poll with a caller-supplied credential, for tasks submitted
// under a gated tier's key.
func (c *Client) PollWithKey(ctx context.Context, task Task, apiKey string, onProgress func(status string)) (*RenderResult, error) {
	if strings.TrimSpace(apiKey) == "" {
		apiKey = c.apiKey
	}
	return c.pollWithKey(ctx, task, apiKey, onProgress)
}

func (c *Client) pollWithKey(ctx context.Context, task Task, apiKey string, onProgress func(status string)) (*RenderResult, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	deadline := time.Now().Add(c.pollTimeout)
	interval := c.pollInterval
	var (
		queueWait   time.Duration
		sawProgress bool
		lastStatus  string
	)

	for {
		data, size, err := c.fetchStatus(ctx, task, apiKey)
		if err != nil {
			return nil, err
		}

		if data.TaskStatus != lastStatus {
			lastStatus = data.TaskStatus
			c.logger.Debug().
				Str("task_id", task.ID).
				Str("status", data.TaskStatus).
				Msg("kling: task status")
		}
		if onProgress != nil {
			onProgress(data.TaskStatus)
		}
		if !sawProgress && data.TaskStatus != statusSubmitted {
			sawProgress = true
			queueWait = time.Since(task.SubmittedAt)
		}

		switch data.TaskStatus {
		case statusSucceed:
			clip, duration, err := firstVideo(data)
			if err != nil {
				return nil, err
			}
			return &RenderResult{
				ClipURL:        clip,
				DurationSec:    duration,
				ResponseBytes:  size,
				QueueWait:      queueWait,
				GenerationTime: time.Since(task.SubmittedAt),
			}, nil
		case statusFailed:
			return nil, translateFailure(http.StatusOK, taskFailureCode(data.TaskStatusMsg), data.TaskStatusMsg)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("kling: task %s: %w", task.ID, domain.ErrPollTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		// Slow backoff, never busy-polling.
		interval = time.Duration(float64(interval) * 1.5)
		if interval > c.pollMaxInterval {
			interval = c.pollMaxInterval
		}
	}
}

func (c *Client) fetchStatus(ctx context.Context, task Task, apiKey string) (taskData, int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, task.StatusURL, nil)
	if err != nil {
		return taskData{}, 0, fmt.Errorf("kling: build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return taskData{}, 0, ctx.Err()
		}
		return taskData{}, 0, fmt.Errorf("kling: poll: %w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return taskData{}, 0, fmt.Errorf("kling: read status response: %w: %v", domain.ErrProviderFailure, err)
	}

	var envelope taskEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 300 {
			return taskData{}, 0, translateFailure(resp.StatusCode, 0, strings.TrimSpace(string(raw)))
		}
		return taskData{}, 0, fmt.Errorf("kling: decode status response: %w: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode >= 300 || envelope.Code != 0 {
		return taskData{}, 0, translateFailure(resp.StatusCode, envelope.Code, envelope.Message)
	}
	return envelope.Data, int64(len(raw)), nil
}

// Download fetches clip bytes for the optional local mirror.
func (c *Client) Download(ctx context.Context, clipURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clipURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("kling: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("kling: download clip: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("kling: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("kling: read clip: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "video/mp4"
	}
	return data, format, nil
}

func firstVideo(data taskData) (string, float64, error) {
	if data.TaskResult == nil || len(data.TaskResult.Videos) == 0 {
		return "", 0, fmt.Errorf("kling: succeed status without videos: %w", domain.ErrProviderFailure)
	}
	v := data.TaskResult.Videos[0]
	if strings.TrimSpace(v.URL) == "" {
		return "", 0, fmt.Errorf("kling: empty video url: %w", domain.ErrProviderFailure)
	}
	duration, _ := strconv.ParseFloat(v.Duration, 64)
	return v.URL, duration, nil
}

// translateFailure maps provider error signals onto the closed failure set.
func translateFailure(httpStatus, code int, msg string) error {
	msg = strings.TrimSpace(msg)
	switch {
	case httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden:
		return fmt.Errorf("kling: %s: %w", msg, domain.ErrAuthInvalid)
	case code >= 1000 && code <= 1004:
		return fmt.Errorf("kling: %s (code %d): %w", msg, code, domain.ErrAuthInvalid)
	case code == 1102 || code == 1103 || code == 1113:
		return fmt.Errorf("kling: %s (code %d): %w", msg, code, domain.ErrQuotaExhausted)
	default:
		if code != 0 {
			return fmt.Errorf("kling: %s (code %d): %w", msg, code, domain.ErrProviderFailure)
		}
		return fmt.Errorf("kling: %s: %w", msg, domain.ErrProviderFailure)
	}
}

// taskFailureCode recognizes quota exhaustion reported through the task
// status message rather than the envelope code.
func taskFailureCode(msg string) int {
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "resource pack") || strings.Contains(lowered, "arrears") || strings.Contains(lowered, "balance") {
		return 1113
	}
	return 0
}
