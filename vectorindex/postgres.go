package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/aslamsikder/VoiceRAG-Agent-System/database"
	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

// PostgresStore keeps the index in a pgvector table. Save rebuilds the table
// inside one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, ix *Index) (err error) {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if ix == nil {
		return fmt.Errorf("save index: index is nil")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = database.ResetIndexSchema(ctx, tx, ix.dim); err != nil {
		return fmt.Errorf("reset index schema: %w", err)
	}

	batch := &pgx.Batch{}
	for pos, e := range ix.entries {
		c := e.Chunk
		id, parseErr := uuid.Parse(c.ID)
		if parseErr != nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO `+database.IndexTable+` (position, id, source, page, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, pos, id, c.Source, c.Page, c.Index, c.Content, pgvector.NewVector(e.Vector))
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Index, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, source, page, chunk_index, content, embedding
		FROM `+database.IndexTable+`
		ORDER BY position
	`)
	if err != nil {
		var pgErr *pgconn.PgError
		// 42P01: undefined_table
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			return nil, fmt.Errorf("index table: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("query index chunks: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			c   domain.Chunk
			id  uuid.UUID
			vec pgvector.Vector
		)
		if err := rows.Scan(&id, &c.Source, &c.Page, &c.Index, &c.Content, &vec); err != nil {
			return nil, fmt.Errorf("scan index chunk: %w", err)
		}
		c.ID = id.String()
		entries = append(entries, Entry{Chunk: c, Vector: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			return nil, fmt.Errorf("index table: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("iterate index chunks: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("index table is empty: %w", domain.ErrNotFound)
	}
	return New(entries)
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	return database.DropIndexSchema(ctx, s.pool)
}

var _ Store = (*PostgresStore)(nil)
