package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// sqlDialect holds the statements and time encoding of one SQL backend.
//
// Statement arguments:
//   - load, delete: conversation_id
//   - insert: conversation_id, turn, timestamp, data
//   - update: turn, timestamp, data, conversation_id, previous turn
//   - list: none; rows are conversation_id, turn, timestamp, size
type sqlDialect struct {
	load, insert, update, delete, list string

	encodeTime func(time.Time) any
	decodeTime func(any) (time.Time, error)
	encodeData func([]byte) any
}

// sqlStore implements Store over database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect sqlDialect
	owned   bool

	mu     sync.RWMutex
	closed bool
}

// Load implements Store.
func (s *sqlStore) Load(ctx context.Context, conversationID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, s.dialect.load, conversationID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return Unmarshal(data)
}

// Save implements Store.
func (s *sqlStore) Save(ctx context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	ts := s.dialect.encodeTime(cp.Timestamp)
	payload := s.dialect.encodeData(data)

	// The compare-and-set lives in the WHERE clause or the conflict target,
	// so the database serializes competing writers.
	var res sql.Result
	if cp.Turn == 1 {
		res, err = s.db.ExecContext(ctx, s.dialect.insert, cp.ConversationID, cp.Turn, ts, payload)
	} else {
		res, err = s.db.ExecContext(ctx, s.dialect.update, cp.Turn, ts, payload, cp.ConversationID, cp.Turn-1)
	}
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if n == 0 {
		return conflict(cp.ConversationID, cp.Turn)
	}
	return nil
}

// Delete implements Store.
func (s *sqlStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.delete, conversationID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// List implements Store.
func (s *sqlStore) List(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.list)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var ts any
		if err := rows.Scan(&info.ConversationID, &info.Turn, &ts, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		if info.Timestamp, err = s.dialect.decodeTime(ts); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// Close implements Store. The database handle is closed only when the
// store opened it.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.owned {
		return s.db.Close()
	}
	return nil
}
