// Package workflow runs one complete evalpilot pass: preflight checks,
// reconciliation of missing evaluation work, promotion of finished exports,
// retirement beyond the keep-count, and the optional tracker sync.
//
// Runner owns the ordering between those steps and the fault isolation
// between them. A failed queue listing aborts reconciliation and skips
// promotion, since in-flight state is unknown, but retirement still runs.
// Every outcome is logged, appended to the pass history when a store is
// configured, and summarised through the notification service.
package workflow
