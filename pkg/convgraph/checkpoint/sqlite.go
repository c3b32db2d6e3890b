package checkpoint

import (
	"database/sql"
	"fmt"
	"time"
)

// SQLiteDriver is the database/sql driver name SQLiteStore opens. The
// program must register it, usually by importing modernc.org/sqlite.
const SQLiteDriver = "sqlite"

// SQLiteStore persists checkpoints to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	*sqlStore
}

var sqliteDialect = sqlDialect{
	load: `SELECT data FROM checkpoints WHERE conversation_id = ?`,
	insert: `
		INSERT INTO checkpoints (conversation_id, turn, timestamp, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO NOTHING`,
	update: `
		UPDATE checkpoints SET turn = ?, timestamp = ?, data = ?
		WHERE conversation_id = ? AND turn = ?`,
	delete: `DELETE FROM checkpoints WHERE conversation_id = ?`,
	list: `
		SELECT conversation_id, turn, timestamp, LENGTH(data)
		FROM checkpoints
		ORDER BY conversation_id`,

	encodeTime: func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
	decodeTime: func(v any) (time.Time, error) {
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case []byte:
			s = string(x)
		case time.Time:
			return x, nil
		default:
			return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
		}
		return time.Parse(time.RFC3339Nano, s)
	},
	encodeData: func(b []byte) any { return b },
}

// NewSQLiteStore creates a new SQLite checkpoint store.
// The path should be a file path (e.g., "./checkpoints.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open(SQLiteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			conversation_id TEXT PRIMARY KEY,
			turn INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{sqlStore: &sqlStore{db: db, dialect: sqliteDialect, owned: true}}, nil
}
