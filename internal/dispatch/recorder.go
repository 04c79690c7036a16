package dispatch

import (
	"time"

	"clipforge/internal/domain"
	"clipforge/internal/providers/kling"
)

// Timings carries the locally measured portions of an attempt's telemetry.
type Timings struct {
	NetworkLatency  time.Duration
	LocalProcessing time.Duration
	PeakMemoryBytes uint64
	CacheHitRatio   float64
}

// Capture assembles the metrics attached on the completed transition. It is
// pure data assembly: nothing in the core reads metrics back to make
// decisions.
func Capture(res *kling.RenderResult, t Timings, experimentGroup string, at time.Time) domain.GenerationMetrics {
	return domain.GenerationMetrics{
		QueueWait:       res.QueueWait,
		GenerationTime:  res.GenerationTime,
		NetworkLatency:  t.NetworkLatency,
		LocalProcessing: t.LocalProcessing,
		PeakMemoryBytes: t.PeakMemoryBytes,
		ResponseBytes:   res.ResponseBytes,
		CacheHitRatio:   t.CacheHitRatio,
		ExperimentGroup: experimentGroup,
		CapturedAt:      at,
	}
}
