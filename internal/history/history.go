// Package history persists hook invocations and assistant conversation
// turns to a local sqlite database. Recording is best effort; callers log
// and ignore failures so the wrapped terminal never stalls on the store.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	conn *sql.DB
}

// Open creates the database file (and parent directories) if needed and
// applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory %q: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database at %q: %w", path, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Invocation is one triggered hook.
type Invocation struct {
	ID        int64
	HookName  string
	Pattern   string
	Action    string
	Consumed  bool
	Err       string
	CreatedAt time.Time
}

// Turn is one message of an assistant conversation.
type Turn struct {
	ID             int64
	ConversationID string
	Role           string
	Content        string
	Command        string
	CreatedAt      time.Time
}

func (s *Store) RecordInvocation(ctx context.Context, inv Invocation) error {
	ts := inv.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO hook_invocations (hook_name, pattern, action, consumed, error, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, inv.HookName, inv.Pattern, inv.Action, boolToInt(inv.Consumed), inv.Err, ts.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record hook invocation: %w", err)
	}
	return nil
}

func (s *Store) RecordTurn(ctx context.Context, turn Turn) error {
	ts := turn.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO conversation_turns (conversation_id, role, content, command, created_at)
VALUES (?, ?, ?, ?, ?)
`, turn.ConversationID, turn.Role, turn.Content, turn.Command, ts.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record conversation turn: %w", err)
	}
	return nil
}

// RecentInvocations returns up to limit invocations, newest first.
func (s *Store) RecentInvocations(ctx context.Context, limit int) ([]Invocation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx, `
SELECT id, hook_name, pattern, action, consumed, error, created_at
FROM hook_invocations
ORDER BY id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list hook invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		var consumedInt int
		var createdRaw string
		if err := rows.Scan(&inv.ID, &inv.HookName, &inv.Pattern, &inv.Action, &consumedInt, &inv.Err, &createdRaw); err != nil {
			return nil, fmt.Errorf("failed to scan hook invocation: %w", err)
		}
		inv.Consumed = consumedInt != 0
		inv.CreatedAt, _ = time.Parse(time.RFC3339, createdRaw)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ConversationTurns returns the turns of one conversation in order.
func (s *Store) ConversationTurns(ctx context.Context, conversationID string) ([]Turn, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT id, conversation_id, role, content, command, created_at
FROM conversation_turns
WHERE conversation_id = ?
ORDER BY id ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var turn Turn
		var createdRaw string
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Role, &turn.Content, &turn.Command, &createdRaw); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		turn.CreatedAt, _ = time.Parse(time.RFC3339, createdRaw)
		out = append(out, turn)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
