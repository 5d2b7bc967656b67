package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// IndexTable holds the persisted vector index when the postgres backend is
// selected.
const IndexTable = "voicerag_chunks"

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// ResetIndexSchema drops and recreates the index table for the given
// embedding dimension. Run inside a transaction so readers keep seeing the
// previous table until commit.
func ResetIndexSchema(ctx context.Context, db Execer, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"DROP TABLE IF EXISTS " + IndexTable,
		fmt.Sprintf(`CREATE TABLE %s (
			position INT PRIMARY KEY,
			id UUID NOT NULL,
			source TEXT NOT NULL,
			page INT NOT NULL DEFAULT 0,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, IndexTable, dimension),
		fmt.Sprintf("CREATE INDEX idx_%s_source ON %s(source)", IndexTable, IndexTable),
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// DropIndexSchema removes the index table if present.
func DropIndexSchema(ctx context.Context, db Execer) error {
	if db == nil {
		return fmt.Errorf("postgres connection is nil")
	}
	if _, err := db.Exec(ctx, "DROP TABLE IF EXISTS "+IndexTable); err != nil {
		return fmt.Errorf("drop index table: %w", err)
	}
	return nil
}
