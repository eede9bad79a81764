package thread

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/vexora/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS threads (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS messages (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id TEXT NOT NULL REFERENCES threads(id),
	id        TEXT NOT NULL,
	run_id    TEXT NOT NULL DEFAULT '',
	author    TEXT NOT NULL,
	ts        TEXT NOT NULL,
	content   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, seq);
`

// SQLiteStore keeps threads in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and migrates) the database at dsn. Use ":memory:"
// for a throwaway store.
func OpenSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create returns the thread with id, inserting it if needed.
func (s *SQLiteStore) Create(ctx context.Context, id string) (*core.Thread, error) {
	if id == "" {
		id = core.NewThreadID()
	}

	now := formatTime(time.Now().UTC())

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)`,
		id, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}

	return s.Get(ctx, id)
}

// Get loads a thread and its messages in append order.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Thread, error) {
	var created, updated, metadata string

	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at, metadata FROM threads WHERE id = ?`, id,
	).Scan(&created, &updated, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrThreadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select thread: %w", err)
	}

	t := core.NewThread(id)
	t.Created = parseTime(created)
	t.Updated = parseTime(updated)

	if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
		return nil, fmt.Errorf("decode thread metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, author, ts, content FROM messages WHERE thread_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg     core.Message
			ts      string
			content string
		)

		if err := rows.Scan(&msg.ID, &msg.RunID, &msg.Author, &ts, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		if err := json.Unmarshal([]byte(content), &msg.Content); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", msg.ID, err)
		}

		msg.Timestamp = parseTime(ts)
		t.Messages = append(t.Messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return t.Bind(s), nil
}

// Append inserts msg, creating the thread row on first use.
func (s *SQLiteStore) Append(ctx context.Context, threadID string, msg core.Message) error {
	if threadID == "" {
		return fmt.Errorf("%w %q", core.ErrInvalidThreadID, threadID)
	}

	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now().UTC())

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		threadID, now, now,
	); err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (thread_id, id, run_id, author, ts, content) VALUES (?, ?, ?, ?, ?, ?)`,
		threadID, msg.ID, msg.RunID, msg.Author, formatTime(msg.Timestamp), string(content),
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return tx.Commit()
}

// List returns all threads sorted by last update, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]core.ThreadInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.created_at, t.updated_at, COUNT(m.seq)
		FROM threads t LEFT JOIN messages m ON m.thread_id = t.id
		GROUP BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var infos []core.ThreadInfo
	for rows.Next() {
		var (
			info             core.ThreadInfo
			created, updated string
		)

		if err := rows.Scan(&info.ID, &created, &updated, &info.MessageCount); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}

		info.Created = parseTime(created)
		info.Updated = parseTime(updated)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortInfos(infos)

	return infos, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
