package domain

import "time"

// GenerationMetrics captures telemetry for one completed attempt. The record
// is immutable once attached to a PromptRecord; nothing in the core consults
// past metrics to make decisions.
type GenerationMetrics struct {
	QueueWait       time.Duration `json:"queue_wait"`
	GenerationTime  time.Duration `json:"generation_time"`
	NetworkLatency  time.Duration `json:"network_latency"`
	LocalProcessing time.Duration `json:"local_processing"`
	PeakMemoryBytes uint64        `json:"peak_memory_bytes"`
	ResponseBytes   int64         `json:"response_bytes"`
	CacheHitRatio   float64       `json:"cache_hit_ratio"`
	ExperimentGroup string        `json:"experiment_group,omitempty"`
	CapturedAt      time.Time     `json:"captured_at"`
}
