// Package reconcile computes which evaluation work is missing for every
// configured model and submits it to the batch queue.
//
// Each pass recomputes state from scratch: completed tasks come from the
// completion store, in-flight tasks from the jobs the queue reports as owned,
// and availability from the model's checkpoint directories. Nothing is
// remembered between passes, so a pass may be repeated at any time without
// duplicating work once the queue reflects earlier submissions.
//
// Failures are isolated per model. A checkpoint found under two source
// directories, or a malformed job name for a model, aborts only that model's
// processing for the pass.
package reconcile
