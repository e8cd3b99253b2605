// Package jobqueue adapts the external batch job queue.
//
// Jobs are identified by a structured JobID; the Codec turns a JobID into the
// queue's job name and back, and is the only place the name format lives.
// The Slurm client lists jobs owned by the caller and submits new evaluation
// jobs, reporting every submission through an explicit SubmitResult rather
// than failing the pass.
package jobqueue
