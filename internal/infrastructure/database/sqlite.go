package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Timestamps are stored as UTC unix nanoseconds so ordering and MAX() work
// on plain integers.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY,
	nickname   TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS applications (
	id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS chat_conversation (
	id                   TEXT PRIMARY KEY,
	user_a               INTEGER NOT NULL,
	user_b               INTEGER NOT NULL,
	last_message_preview TEXT NOT NULL DEFAULT '',
	last_message_at      INTEGER NOT NULL,
	unread_a             INTEGER NOT NULL DEFAULT 0,
	unread_b             INTEGER NOT NULL DEFAULT 0,
	pinned_a             INTEGER NOT NULL DEFAULT 0,
	pinned_b             INTEGER NOT NULL DEFAULT 0,
	notify_a             INTEGER NOT NULL DEFAULT 0,
	notify_b             INTEGER NOT NULL DEFAULT 0,
	deleted_a            INTEGER NOT NULL DEFAULT 0,
	deleted_b            INTEGER NOT NULL DEFAULT 0,
	created_at           INTEGER NOT NULL,
	UNIQUE (user_a, user_b),
	CHECK (user_a < user_b)
);

CREATE INDEX IF NOT EXISTS chat_conversation_user_b_idx ON chat_conversation (user_b);

CREATE TABLE IF NOT EXISTS chat_message (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES chat_conversation (id),
	sender_id       INTEGER NOT NULL,
	receiver_id     INTEGER NOT NULL,
	msg_type        INTEGER NOT NULL CHECK (msg_type BETWEEN 1 AND 5),
	content         TEXT NOT NULL DEFAULT '',
	attachment_url  TEXT,
	in_reply_to     TEXT,
	correlation_id  INTEGER,
	is_read         INTEGER NOT NULL DEFAULT 0,
	is_deleted      INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS chat_message_history_idx ON chat_message (conversation_id, created_at DESC);
CREATE INDEX IF NOT EXISTS chat_message_unread_idx ON chat_message (receiver_id, created_at, id) WHERE is_read = 0;
`

// OpenSQLite opens (or creates) the embedded single-node store and applies
// the schema. A single connection serialises writers.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}
