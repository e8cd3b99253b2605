package testsupport

import (
	"context"
	"errors"
	"slices"
	"sync"

	"evalpilot/internal/jobqueue"
)

// FakeQueue is an in-memory jobqueue.Client. With Echo set, every successful
// submission shows up as owned on the next listing.
type FakeQueue struct {
	Codec jobqueue.Codec
	Echo  bool
	// Fail names job names whose submission fails.
	Fail    map[string]bool
	ListErr error

	mu        sync.Mutex
	owned     []string
	submitted []jobqueue.Submission
}

// NewFakeQueue returns an echoing fake for the given codec.
func NewFakeQueue(codec jobqueue.Codec, owned ...string) *FakeQueue {
	return &FakeQueue{Codec: codec, Echo: true, owned: slices.Clone(owned)}
}

// ListOwned implements jobqueue.Client.
func (q *FakeQueue) ListOwned(context.Context) (jobqueue.Listing, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ListErr != nil {
		return jobqueue.Listing{}, q.ListErr
	}
	listing := jobqueue.Listing{Names: slices.Clone(q.owned)}
	for _, name := range q.owned {
		id, err := q.Codec.Decode(name)
		switch {
		case err == nil:
			listing.Jobs = append(listing.Jobs, id)
		case !errors.Is(err, jobqueue.ErrForeignJob):
			listing.Malformed = append(listing.Malformed, name)
		}
	}
	return listing, nil
}

// Submit implements jobqueue.Client.
func (q *FakeQueue) Submit(_ context.Context, sub jobqueue.Submission) jobqueue.SubmitResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submitted = append(q.submitted, sub)
	name, err := q.Codec.Encode(sub.Job)
	if err != nil {
		return jobqueue.SubmitResult{Job: sub.Job, ExitCode: -1, Reason: err.Error()}
	}
	if q.Fail[name] {
		return jobqueue.SubmitResult{Job: sub.Job, Name: name, ExitCode: 1, Reason: "exit status 1"}
	}
	if q.Echo {
		q.owned = append(q.owned, name)
	}
	return jobqueue.SubmitResult{Job: sub.Job, Name: name, OK: true}
}

// SetOwned replaces the owned job names.
func (q *FakeQueue) SetOwned(names ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.owned = slices.Clone(names)
}

// Submitted returns every submission received so far.
func (q *FakeQueue) Submitted() []jobqueue.Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.submitted)
}

// Reset clears recorded submissions.
func (q *FakeQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submitted = nil
}
