package kling

import (
	"math"
	"time"

	"clipforge/internal/camera"
)

// SubmitRequest carries one generation job to the provider.
type SubmitRequest struct {
	// Endpoint is the creation path for the resolved model version. Empty
	// falls back to the text-to-video default.
	Endpoint       string
	Model          string
	Mode           string
	Prompt         string
	NegativePrompt string
	DurationSec    int
	AspectRatio    string
	ReferenceImage string
	Camera         *camera.Intent
	// APIKey overrides the client credential for gated tiers where the
	// caller supplies their own provider key.
	APIKey string
}

// Task is the provider-side handle for one submitted job. It exists only for
// the duration of one provider interaction.
type Task struct {
	ID          string
	StatusURL   string
	SubmittedAt time.Time
}

// RenderResult is the successful terminal outcome of polling a task.
type RenderResult struct {
	ClipURL        string
	DurationSec    float64
	ResponseBytes  int64
	QueueWait      time.Duration
	GenerationTime time.Duration
}

// Provider task statuses.
const (
	statusSubmitted  = "submitted"
	statusProcessing = "processing"
	statusSucceed    = "succeed"
	statusFailed     = "failed"
)

type createTaskRequest struct {
	ModelName      string         `json:"model_name"`
	Mode           string         `json:"mode,omitempty"`
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	Duration       string         `json:"duration,omitempty"`
	AspectRatio    string         `json:"aspect_ratio,omitempty"`
	Image          string         `json:"image,omitempty"`
	CameraControl  *cameraControl `json:"camera_control,omitempty"`
}

type cameraControl struct {
	Type   string        `json:"type"`
	Config *cameraConfig `json:"config,omitempty"`
}

// cameraConfig axes are pointers so absent movements are omitted from the
// wire payload rather than transmitted as zero.
type cameraConfig struct {
	Horizontal *float64 `json:"horizontal,omitempty"`
	Vertical   *float64 `json:"vertical,omitempty"`
	Pan        *float64 `json:"pan,omitempty"`
	Tilt       *float64 `json:"tilt,omitempty"`
	Roll       *float64 `json:"roll,omitempty"`
	Zoom       *float64 `json:"zoom,omitempty"`
}

type taskEnvelope struct {
	Code      int      `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id"`
	Data      taskData `json:"data"`
}

type taskData struct {
	TaskID        string      `json:"task_id"`
	TaskStatus    string      `json:"task_status"`
	TaskStatusMsg string      `json:"task_status_msg"`
	CreatedAt     int64       `json:"created_at"`
	UpdatedAt     int64       `json:"updated_at"`
	TaskResult    *taskResult `json:"task_result"`
}

type taskResult struct {
	Videos []videoResult `json:"videos"`
}

type videoResult struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Duration string `json:"duration"`
}

// encodeCamera converts a validated intent into the wire structure. Only
// driven axes are encoded; preset movement types carry no config block.
func encodeCamera(intent *camera.Intent) *cameraControl {
	if intent == nil {
		return nil
	}
	cc := &cameraControl{Type: string(intent.Type)}
	if intent.Type != camera.MoveSimple {
		return cc
	}
	cfg := &cameraConfig{}
	set := false
	assign := func(dst **float64, v float64) {
		if math.Abs(v) < 0.01 {
			return
		}
		value := v
		*dst = &value
		set = true
	}
	assign(&cfg.Horizontal, intent.Horizontal)
	assign(&cfg.Vertical, intent.Vertical)
	assign(&cfg.Pan, intent.Pan)
	assign(&cfg.Tilt, intent.Tilt)
	assign(&cfg.Roll, intent.Roll)
	assign(&cfg.Zoom, intent.Zoom)
	if set {
		cc.Config = cfg
	}
	return cc
}
