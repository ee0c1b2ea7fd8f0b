package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/redact"
)

// maxCSVRows bounds ExportRunsCSV so an operator can't accidentally request
// an unbounded export of the entire ledger.
const maxCSVRows = 5000

var csvHeader = []string{
	"id", "scriptKey", "requesterId", "requesterTag", "publicRequest",
	"status", "returnCode", "startedAt", "endedAt", "durationSeconds", "logPath", "note",
}

// ExportRunsCSV renders the last `days` days of run history as UTF-8 CSV,
// with Note passed through the redaction filter before it leaves the store.
func (s *Store) ExportRunsCSV(ctx context.Context, days int) ([]byte, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM script_runs WHERE started_at >= ? ORDER BY id DESC LIMIT ?`,
		since, maxCSVRows)
	if err != nil {
		return nil, fmt.Errorf("store: export runs csv: %w", err)
	}
	defer rows.Close()

	recs, err := collectRuns(rows)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("store: write csv header: %w", err)
	}

	for _, r := range recs {
		returnCode := ""
		if r.ReturnCode != nil {
			returnCode = fmt.Sprintf("%d", *r.ReturnCode)
		}
		endedAt := ""
		if r.EndedAt != nil {
			endedAt = r.EndedAt.Format(time.RFC3339Nano)
		}
		duration := ""
		if r.DurationSeconds != nil {
			duration = fmt.Sprintf("%.3f", *r.DurationSeconds)
		}

		record := []string{
			fmt.Sprintf("%d", r.ID),
			r.ScriptKey,
			r.RequesterID,
			r.RequesterTag,
			fmt.Sprintf("%t", r.PublicRequest),
			string(r.Status),
			returnCode,
			r.StartedAt.Format(time.RFC3339Nano),
			endedAt,
			duration,
			r.LogPath,
			redact.Apply(r.Note),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("store: write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("store: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
