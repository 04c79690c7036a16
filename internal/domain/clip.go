package domain

import "time"

// Clip is the persisted reference to a generated video asset. The provider
// returns a URL; the bytes themselves are a collaborator concern (an optional
// local mirror may also record a storage key).
type Clip struct {
	ID          string
	PromptID    string
	URL         string
	StorageKey  string
	DurationSec float64
	Bytes       int64
	CreatedAt   time.Time
}
