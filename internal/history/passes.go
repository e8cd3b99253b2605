package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Pass status values.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Event kinds.
const (
	KindSubmitted    = "submitted"
	KindSubmitFailed = "submit_failed"
	KindPromoted     = "promoted"
	KindDeduplicated = "deduplicated"
	KindRetired      = "retired"
	KindSynced       = "synced"
	KindCleaned      = "cleaned"
	KindError        = "error"
)

// Pass summarises one reconcile/lifecycle pass.
type Pass struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	DryRun         bool
	Status         string
	Submitted      int
	SubmitFailures int
	Promoted       int
	Deduplicated   int
	Retired        int
	Errors         int
	Message        string
}

// Event is one recorded action within a pass.
type Event struct {
	ID        int64
	PassID    string
	Kind      string
	Model     string
	Iteration int
	Subject   string
	Detail    string
	CreatedAt time.Time
}

// ErrNotFound is returned when a pass does not exist.
var ErrNotFound = errors.New("pass not found")

// BeginPass inserts a running pass row.
func (s *Store) BeginPass(ctx context.Context, id string, startedAt time.Time, dryRun bool) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO passes (id, started_at, dry_run, status) VALUES (?, ?, ?, ?)`,
			id, formatTime(startedAt), boolToInt(dryRun), StatusRunning,
		)
		return err
	})
}

// FinishPass stores the final counters and status of a pass.
func (s *Store) FinishPass(ctx context.Context, pass Pass) error {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`UPDATE passes SET finished_at = ?, status = ?, submitted = ?, submit_failures = ?,
			 promoted = ?, deduplicated = ?, retired = ?, errors = ?, message = ?
			 WHERE id = ?`,
			formatTime(pass.FinishedAt), pass.Status, pass.Submitted, pass.SubmitFailures,
			pass.Promoted, pass.Deduplicated, pass.Retired, pass.Errors, pass.Message,
			pass.ID,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("finish pass: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish pass %s: %w", pass.ID, ErrNotFound)
	}
	return nil
}

// RecordEvents appends events for passID in one transaction.
func (s *Store) RecordEvents(ctx context.Context, passID string, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO events (pass_id, kind, model, iteration, subject, detail, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, ev := range events {
			created := ev.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			if _, err := stmt.ExecContext(ctx, passID, ev.Kind, ev.Model, ev.Iteration, ev.Subject, ev.Detail, formatTime(created)); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

const passColumns = `id, started_at, finished_at, dry_run, status, submitted, submit_failures,
	promoted, deduplicated, retired, errors, message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (Pass, error) {
	var (
		pass     Pass
		started  sql.NullString
		finished sql.NullString
		dryRun   int
		message  sql.NullString
	)
	if err := row.Scan(&pass.ID, &started, &finished, &dryRun, &pass.Status, &pass.Submitted,
		&pass.SubmitFailures, &pass.Promoted, &pass.Deduplicated, &pass.Retired, &pass.Errors, &message); err != nil {
		return Pass{}, err
	}
	pass.StartedAt = parseTime(started)
	pass.FinishedAt = parseTime(finished)
	pass.DryRun = dryRun != 0
	pass.Message = message.String
	return pass, nil
}

// GetPass returns one pass by ID.
func (s *Store) GetPass(ctx context.Context, id string) (Pass, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = ?`, id)
	pass, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Pass{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Pass{}, fmt.Errorf("get pass: %w", err)
	}
	return pass, nil
}

// ListPasses returns the most recent passes, newest first.
func (s *Store) ListPasses(ctx context.Context, limit int) ([]Pass, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+passColumns+` FROM passes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	var out []Pass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		out = append(out, pass)
	}
	return out, rows.Err()
}

// ListEvents returns the events of a pass in insertion order. An empty
// model lists every model.
func (s *Store) ListEvents(ctx context.Context, passID, model string) ([]Event, error) {
	query := `SELECT id, pass_id, kind, model, iteration, subject, detail, created_at FROM events WHERE pass_id = ?`
	args := []any{passID}
	if model != "" {
		query += ` AND model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev        Event
			evModel   sql.NullString
			iteration sql.NullInt64
			subject   sql.NullString
			detail    sql.NullString
			created   sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.PassID, &ev.Kind, &evModel, &iteration, &subject, &detail, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Model = evModel.String
		ev.Iteration = int(iteration.Int64)
		ev.Subject = subject.String
		ev.Detail = detail.String
		ev.CreatedAt = parseTime(created)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Prune deletes passes started before cutoff along with their events.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stamp := formatTime(cutoff)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM events WHERE pass_id IN (SELECT id FROM passes WHERE started_at < ?)`, stamp); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM passes WHERE started_at < ?`, stamp)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("prune passes: %w", err)
	}
	return removed, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
