package reconcile

import (
	"evalpilot/internal/jobqueue"
)

// IterationStatus describes one iteration of one model after a pass.
type IterationStatus struct {
	Iteration int
	Available bool
	Eligible  bool
	Completed []string
	InFlight  []string
	Missing   []string
	// Satisfied lists aggregates whose members are all completed or in flight.
	Satisfied []string
}

// ModelReport is the outcome of reconciling one model.
type ModelReport struct {
	Model       string
	Err         error
	Iterations  []IterationStatus
	Submissions []jobqueue.SubmitResult
}

// Failed returns the submissions that did not succeed.
func (m ModelReport) Failed() []jobqueue.SubmitResult {
	var out []jobqueue.SubmitResult
	for _, sub := range m.Submissions {
		if !sub.OK {
			out = append(out, sub)
		}
	}
	return out
}

// Report is the outcome of a reconcile pass across every model.
type Report struct {
	Models []ModelReport
	// Malformed holds owned job names with our prefix that did not decode.
	Malformed []string
}

// Submitted counts successful submissions.
func (r Report) Submitted() int {
	total := 0
	for _, model := range r.Models {
		total += len(model.Submissions) - len(model.Failed())
	}
	return total
}

// FailedSubmissions counts submissions that did not succeed.
func (r Report) FailedSubmissions() int {
	total := 0
	for _, model := range r.Models {
		total += len(model.Failed())
	}
	return total
}

// ModelErrors returns the models whose processing was aborted.
func (r Report) ModelErrors() map[string]error {
	out := make(map[string]error)
	for _, model := range r.Models {
		if model.Err != nil {
			out[model.Model] = model.Err
		}
	}
	return out
}
