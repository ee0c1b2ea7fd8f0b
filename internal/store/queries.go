package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func scanRun(row interface {
	Scan(dest ...any) error
}) (RunRecord, error) {
	var r RunRecord
	var publicRequest int
	var startedAt string
	var endedAt sql.NullString
	var duration sql.NullFloat64
	var returnCode sql.NullInt64
	var status string

	if err := row.Scan(&r.ID, &r.ScriptKey, &r.RequesterID, &r.RequesterTag, &publicRequest,
		&r.CommandJSON, &status, &returnCode, &r.Note, &startedAt, &endedAt, &duration, &r.LogPath); err != nil {
		return RunRecord{}, err
	}

	r.PublicRequest = publicRequest != 0
	r.Status = RunStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		r.StartedAt = t
	}
	if endedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, endedAt.String); err == nil {
			r.EndedAt = &t
		}
	}
	if duration.Valid {
		d := duration.Float64
		r.DurationSeconds = &d
	}
	if returnCode.Valid {
		rc := int(returnCode.Int64)
		r.ReturnCode = &rc
	}
	return r, nil
}

const runColumns = `id, script_key, requester_id, requester_tag, public_request, command_json, status, return_code, note, started_at, ended_at, duration_seconds, log_path`

// LastRuns returns up to limit most-recent runs, optionally filtered to a
// single scriptKey (empty string means any script).
func (s *Store) LastRuns(ctx context.Context, scriptKey string, limit int) ([]RunRecord, error) {
	var rows *sql.Rows
	var err error
	if scriptKey == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+runColumns+` FROM script_runs ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+runColumns+` FROM script_runs WHERE script_key = ? ORDER BY id DESC LIMIT ?`, scriptKey, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: last runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// FilteredRuns returns a page of runs matching the optional scriptKey and
// status filters (empty string means "any"), plus the total count matching
// those same filters (ignoring limit/offset).
func (s *Store) FilteredRuns(ctx context.Context, scriptKey, status string, limit, offset int) ([]RunRecord, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	if scriptKey != "" {
		where += " AND script_key = ?"
		args = append(args, scriptKey)
	}
	if status != "" {
		where += " AND status = ?"
		args = append(args, status)
	}

	var total int
	countArgs := append([]any{}, args...)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM script_runs `+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: filtered runs count: %w", err)
	}

	pageArgs := append(append([]any{}, args...), limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM script_runs `+where+` ORDER BY id DESC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: filtered runs: %w", err)
	}
	defer rows.Close()

	recs, err := collectRuns(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// LastFailedRun returns the most recent run whose status is failed,
// timed_out, or killed_resource; nil if none exists.
func (s *Store) LastFailedRun(ctx context.Context) (*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM script_runs
		 WHERE status IN (?, ?, ?) ORDER BY id DESC LIMIT 1`,
		string(StatusFailed), string(StatusTimedOut), string(StatusKilledResource))
	if err != nil {
		return nil, fmt.Errorf("store: last failed run: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRuns(rows *sql.Rows) ([]RunRecord, error) {
	out := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SummarizeRuns aggregates runs over the half-open interval [startISO, endISO).
func (s *Store) SummarizeRuns(ctx context.Context, start, end time.Time) (RunSummary, error) {
	startStr := start.UTC().Format(time.RFC3339Nano)
	endStr := end.UTC().Format(time.RFC3339Nano)

	var summary RunSummary
	var avgDuration sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       AVG(duration_seconds)
		FROM script_runs WHERE started_at >= ? AND started_at < ?`,
		string(StatusSuccess), startStr, endStr).Scan(&summary.Total, &summary.SuccessCount, &avgDuration)
	if err != nil {
		return RunSummary{}, fmt.Errorf("store: summarize runs: %w", err)
	}
	summary.FailureCount = summary.Total - summary.SuccessCount
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.SuccessCount) / float64(summary.Total)
	}
	if avgDuration.Valid {
		summary.AvgDuration = avgDuration.Float64
	}

	byStatus, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM script_runs
		WHERE started_at >= ? AND started_at < ?
		GROUP BY status ORDER BY status`, startStr, endStr)
	if err != nil {
		return RunSummary{}, fmt.Errorf("store: summarize runs by status: %w", err)
	}
	defer byStatus.Close()
	for byStatus.Next() {
		var sc StatusCount
		var status string
		if err := byStatus.Scan(&status, &sc.Count); err != nil {
			return RunSummary{}, err
		}
		sc.Status = RunStatus(status)
		summary.ByStatus = append(summary.ByStatus, sc)
	}
	if err := byStatus.Err(); err != nil {
		return RunSummary{}, err
	}

	byScript, err := s.db.QueryContext(ctx, `
		SELECT script_key, COUNT(*) FROM script_runs
		WHERE started_at >= ? AND started_at < ?
		GROUP BY script_key ORDER BY script_key`, startStr, endStr)
	if err != nil {
		return RunSummary{}, fmt.Errorf("store: summarize runs by script: %w", err)
	}
	defer byScript.Close()
	for byScript.Next() {
		var sc ScriptCount
		if err := byScript.Scan(&sc.ScriptKey, &sc.Count); err != nil {
			return RunSummary{}, err
		}
		summary.ByScript = append(summary.ByScript, sc)
	}
	if err := byScript.Err(); err != nil {
		return RunSummary{}, err
	}

	byScriptFailed, err := s.db.QueryContext(ctx, `
		SELECT script_key, COUNT(*) FROM script_runs
		WHERE started_at >= ? AND started_at < ? AND status != ?
		GROUP BY script_key ORDER BY script_key`, startStr, endStr, string(StatusSuccess))
	if err != nil {
		return RunSummary{}, fmt.Errorf("store: summarize runs by script failed: %w", err)
	}
	defer byScriptFailed.Close()
	for byScriptFailed.Next() {
		var sc ScriptCount
		if err := byScriptFailed.Scan(&sc.ScriptKey, &sc.Count); err != nil {
			return RunSummary{}, err
		}
		summary.ByScriptFailed = append(summary.ByScriptFailed, sc)
	}
	if err := byScriptFailed.Err(); err != nil {
		return RunSummary{}, err
	}

	return summary, nil
}
