package vectorindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

const indexFileName = "index.db"

// FileStore keeps the index as a single SQLite file inside a directory.
// Saves are written to a temporary file in the same directory and renamed
// into place.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the location of the index file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, indexFileName)
}

func (s *FileStore) Save(ctx context.Context, ix *Index) (err error) {
	if ix == nil {
		return fmt.Errorf("save index: index is nil")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := filepath.Join(s.dir, ".index-"+uuid.NewString()+".tmp")
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
			_ = os.Remove(tmp + "-journal")
		}
	}()

	// Rollback journal rather than WAL so the file is self-contained on close.
	db, err := sql.Open("sqlite", tmp+"?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open temporary index: %w", err)
	}

	if err := writeIndex(ctx, db, ix); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close temporary index: %w", err)
	}

	if err := os.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func writeIndex(ctx context.Context, db *sql.DB, ix *Index) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmts := []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE chunks (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			source TEXT NOT NULL,
			page INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index schema: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(ix.dim)); err != nil {
		return fmt.Errorf("write index metadata: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (position, id, source, page, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer insert.Close()

	for pos, e := range ix.entries {
		c := e.Chunk
		if _, err = insert.ExecContext(ctx, pos, c.ID, c.Source, c.Page, c.Index, c.Content, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", pos, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*Index, error) {
	path := s.Path()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("index file %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("stat index file: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	var dimText string
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&dimText); err != nil {
		return nil, fmt.Errorf("read index dimension: %w", err)
	}
	dim, err := strconv.Atoi(dimText)
	if err != nil {
		return nil, fmt.Errorf("parse index dimension: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, source, page, chunk_index, content, embedding
		FROM chunks
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query index chunks: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			c    domain.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Page, &c.Index, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scan index chunk: %w", err)
		}
		entries = append(entries, Entry{Chunk: c, Vector: decodeVector(blob)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index chunks: %w", err)
	}

	ix, err := New(entries)
	if err != nil {
		return nil, err
	}
	if ix.dim != dim {
		return nil, fmt.Errorf("index file is corrupt: dimension %d recorded, %d stored", dim, ix.dim)
	}
	return ix, nil
}

func (s *FileStore) Clear(context.Context) error {
	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
