package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

// PostgresStore persists checkpoints to PostgreSQL through database/sql.
// The checkpoints table is normally created by the application's
// migrations. CreateSchema exists for standalone use.
type PostgresStore struct {
	*sqlStore
}

var postgresDialect = sqlDialect{
	load: `SELECT data FROM checkpoints WHERE conversation_id = $1`,
	insert: `
		INSERT INTO checkpoints (conversation_id, turn, updated_at, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id) DO NOTHING`,
	update: `
		UPDATE checkpoints SET turn = $1, updated_at = $2, data = $3
		WHERE conversation_id = $4 AND turn = $5`,
	delete: `DELETE FROM checkpoints WHERE conversation_id = $1`,
	list: `
		SELECT conversation_id, turn, updated_at, octet_length(data::text)
		FROM checkpoints
		ORDER BY conversation_id`,

	encodeTime: func(t time.Time) any { return t.UTC() },
	decodeTime: func(v any) (time.Time, error) {
		t, ok := v.(time.Time)
		if !ok {
			return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
		}
		return t, nil
	},
	encodeData: func(b []byte) any { return string(b) },
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	conversation_id TEXT PRIMARY KEY,
	turn INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	data JSONB NOT NULL
)`

// NewPostgresStore wraps an open database handle. The caller keeps
// ownership of db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore: &sqlStore{db: db, dialect: postgresDialect}}
}

// OpenPostgres connects to dsn with the pgx driver. The returned store
// owns the connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{sqlStore: &sqlStore{db: db, dialect: postgresDialect, owned: true}}, nil
}

// CreateSchema creates the checkpoints table if it does not exist.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}
