package ipc

import "time"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// PassSummary is the wire form of the most recent pass.
type PassSummary struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	DryRun       bool      `json:"dry_run"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Submitted    int       `json:"submitted"`
	Promoted     int       `json:"promoted"`
	Deduplicated int       `json:"deduplicated"`
	Retired      int       `json:"retired"`
	Failures     []string  `json:"failures,omitempty"`
}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running         bool         `json:"running"`
	PassActive      bool         `json:"pass_active"`
	Passes          int          `json:"passes"`
	IntervalSeconds int64        `json:"interval_seconds"`
	LockPath        string       `json:"lock_path"`
	LastError       string       `json:"last_error,omitempty"`
	LastPass        *PassSummary `json:"last_pass,omitempty"`
	PID             int          `json:"pid"`
}

// RunNowRequest asks for an immediate pass.
type RunNowRequest struct{}

// RunNowResponse reports whether the request was queued.
type RunNowResponse struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
