package faq

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pgvector/pgvector-go"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

const (
	insertQuery = `INSERT INTO faq (id, question, answer, embedding) VALUES ($1, $2, $3, $4)`
	searchQuery = `
		SELECT id, question, answer, 1 - (embedding <=> $1) AS score
		FROM faq
		ORDER BY embedding <=> $1
		LIMIT $2`
	countQuery = `SELECT count(*) FROM faq`
)

// DefaultBatchSize bounds how many questions are embedded per request.
const DefaultBatchSize = 64

// Store is a pgvector-backed Index. The faq table comes from the
// application's migrations.
type Store struct {
	db         *sql.DB
	embedder   llm.Embedder
	dimensions int
	batchSize  int
	owned      bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDimensions rejects embeddings of any other length. The migration
// declares vector(256).
func WithDimensions(n int) StoreOption {
	return func(s *Store) { s.dimensions = n }
}

// WithBatchSize sets how many entries are embedded per call.
func WithBatchSize(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewStore wraps an open database handle. The caller keeps ownership of db.
func NewStore(db *sql.DB, embedder llm.Embedder, opts ...StoreOption) *Store {
	s := &Store{
		db:         db,
		embedder:   embedder,
		dimensions: llm.DefaultDimensions,
		batchSize:  DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to dsn with the pgx driver. The returned store owns the
// connection pool.
func Open(ctx context.Context, dsn string, embedder llm.Embedder, opts ...StoreOption) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := NewStore(db, embedder, opts...)
	s.owned = true
	return s, nil
}

// Add embeds the questions and inserts the entries, one transaction per
// batch.
func (s *Store) Add(ctx context.Context, entries []Entry) error {
	for start := 0; start < len(entries); start += s.batchSize {
		end := min(start+s.batchSize, len(entries))
		if err := s.addBatch(ctx, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addBatch(ctx context.Context, entries []Entry) error {
	vectors, err := s.embed(ctx, questions(entries))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin faq insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, e := range entries {
		_, err := tx.ExecContext(ctx, insertQuery,
			uuid.New(), e.Question, e.Answer, pgvector.NewVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("insert faq entry %q: %w", e.Question, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit faq insert: %w", err)
	}
	return nil
}

// Retrieve implements capability.Retriever. Scores are cosine similarity.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]capability.Document, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, searchQuery, pgvector.NewVector(vectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("search faq: %w", err)
	}
	defer rows.Close()

	var docs []capability.Document
	for rows.Next() {
		var (
			id    string
			e     Entry
			score float64
		)
		if err := rows.Scan(&id, &e.Question, &e.Answer, &score); err != nil {
			return nil, fmt.Errorf("scan faq row: %w", err)
		}
		docs = append(docs, document(id, e, score))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search faq: %w", err)
	}
	return docs, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count faq: %w", err)
	}
	return n, nil
}

// Close closes the connection pool if the store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func (s *Store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vectors), len(texts))
	}
	for _, v := range vectors {
		if s.dimensions > 0 && len(v) != s.dimensions {
			return nil, fmt.Errorf("embed: got %d dimensions, want %d", len(v), s.dimensions)
		}
	}
	return vectors, nil
}

func questions(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Question
	}
	return out
}
