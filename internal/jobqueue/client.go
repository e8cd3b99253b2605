package jobqueue

import "context"

// Client is the queue surface the reconciler and lifecycle manager use.
type Client interface {
	ListOwned(ctx context.Context) (Listing, error)
	Submit(ctx context.Context, sub Submission) SubmitResult
}

// Listing is one snapshot of the jobs owned by the caller.
type Listing struct {
	Jobs []JobID
	// Names holds the raw name of every owned job, including foreign and
	// malformed ones, so staged exports can be matched by exact name.
	Names []string
	// Malformed holds prefixed names that failed to decode.
	Malformed []string
}

// Owns reports whether a job with the exact queue name is owned.
func (l Listing) Owns(name string) bool {
	for _, n := range l.Names {
		if n == name {
			return true
		}
	}
	return false
}

// Submission describes one job to submit.
type Submission struct {
	Job JobID
	// Tasks lists the leaf tasks the job runs. Root jobs must carry the
	// full universe here; their name only abbreviates it.
	Tasks []string
	// ModelDir is the source directory holding the iteration's checkpoint.
	ModelDir      string
	TokensPerIter string
	Size          int
}

// SubmitResult reports the outcome of a single submission.
type SubmitResult struct {
	Job      JobID
	Name     string
	OK       bool
	DryRun   bool
	ExitCode int
	Reason   string
	Output   string
}
