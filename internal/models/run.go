package models

import "fmt"

// MaxRunDepth bounds recursion so a run cannot expand without limit.
const MaxRunDepth = 10

// RunRequest describes one user-initiated expansion run.
type RunRequest struct {
	Seeds    []string `json:"seeds"`
	MaxDepth int      `json:"max_depth"`
	// TopN limits how many children (by descending count) each expanded
	// phrase may enqueue. Zero means no limit.
	TopN int `json:"top_n,omitempty"`
}

// Validate checks the request fields. Seeds must be non-empty and MaxDepth
// within [0, MaxRunDepth]; a negative TopN is rejected.
func (r *RunRequest) Validate() error {
	if len(r.Seeds) == 0 {
		return fmt.Errorf("seeds cannot be empty")
	}
	if r.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", r.MaxDepth)
	}
	if r.MaxDepth > MaxRunDepth {
		return fmt.Errorf("max_depth must be <= %d, got %d", MaxRunDepth, r.MaxDepth)
	}
	if r.TopN < 0 {
		return fmt.Errorf("top_n must be >= 0, got %d", r.TopN)
	}
	return nil
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status ends a run's event stream.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}
