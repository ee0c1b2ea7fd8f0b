package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppendAudit records one operator action to the append-only audit log.
// action and target are truncated to 200 bytes, details to 2000, per
// spec.md §4.B's bound on unbounded operator-supplied text.
func (s *Store) AppendAudit(ctx context.Context, actorID, action, target, details string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO op_audit (ts, actor_id, action, target, details)
		VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), actorID,
		truncate(action, 200), truncate(target, 200), truncate(details, 2000))
	if err != nil {
		return fmt.Errorf("store: append audit: %w", err)
	}
	return nil
}

// serverLogLine is the JSON-lines mirror of a ServerLogEvent, written
// alongside the sqlite row so the structured event log remains readable
// with plain text tools even if the database is unavailable.
type serverLogLine struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Event     string `json:"event"`
	ActorID   string `json:"actor_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Details   string `json:"details,omitempty"`
}

// AppendServerLog records one structured event both to the sqlite table
// and to a same-day JSON-lines file under the server log directory.
func (s *Store) AppendServerLog(ctx context.Context, level, event string, actorID, guildID, channelID *string, details string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	details = truncate(details, 3000)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_logs (ts, level, event, actor_id, guild_id, channel_id, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		now.Format(time.RFC3339Nano), level, event, actorID, guildID, channelID, details)
	if err != nil {
		return fmt.Errorf("store: append server log: %w", err)
	}

	line := serverLogLine{TS: now.Format(time.RFC3339Nano), Level: level, Event: event, Details: details}
	if actorID != nil {
		line.ActorID = *actorID
	}
	if guildID != nil {
		line.GuildID = *guildID
	}
	if channelID != nil {
		line.ChannelID = *channelID
	}
	if err := s.appendServerLogLine(now, line); err != nil {
		return err
	}
	return nil
}

func (s *Store) appendServerLogLine(now time.Time, line serverLogLine) error {
	if s.logDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.logDir, 0o755); err != nil {
		return fmt.Errorf("store: server log dir: %w", err)
	}

	encoded, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("store: encode server log line: %w", err)
	}

	path := filepath.Join(s.logDir, fmt.Sprintf("server_%s.jsonl", now.Format("20060102")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open server log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("store: write server log line: %w", err)
	}
	return nil
}
