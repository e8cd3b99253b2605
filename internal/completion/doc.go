// Package completion reads persisted evaluation results to decide which leaf
// tasks are complete for each model iteration.
//
// Results live under <logs_root>/<model>/iter_<n>/harness/eval_<ts>/<sub>/
// as results_<ts>.json documents whose "results" object is keyed by task
// name. Unreadable or partially written files are skipped individually; a
// missing tree simply means nothing has completed yet.
package completion
