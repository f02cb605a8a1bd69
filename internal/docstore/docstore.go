// Package docstore is the relational document store collaborator.
// It persists document metadata and extracted content in Postgres and serves
// the batched lookups the search pipeline and ingestion depend on.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Document is a stored document row.
type Document struct {
	ID         int64
	FileName   string
	FilePath   string
	FileType   string
	FileSize   int64
	FileHash   string
	Content    string
	UploadedAt time.Time
}

// Store provides access to the documents table.
type Store struct {
	db *sql.DB
}

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle (tests).
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the documents table if missing. DDL is serialized
// across concurrent startups with an advisory lock.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(7203441109)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	file_name TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size BIGINT NOT NULL,
	file_hash TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at DESC);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumns = `id, file_name, file_path, file_type, file_size, file_hash, content, uploaded_at`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.FileName, &d.FilePath, &d.FileType, &d.FileSize,
		&d.FileHash, &d.Content, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindByID returns a single document or ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find document %d: %w", id, err)
	}
	return doc, nil
}

// FindAllByID returns all documents matching the given ids in one round trip.
// Missing ids are simply absent from the result; the caller decides whether
// that is a gap.
func (s *Store) FindAllByID(ctx context.Context, ids []int64) ([]*Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// pgx maps Go slices to Postgres arrays, so the whole multi-get is one
	// statement and one round trip.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find documents by id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ExistsByHash reports whether a document with the given content hash exists.
func (s *Store) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE file_hash = $1)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by hash: %w", err)
	}
	return exists, nil
}

// FindExistingHashes returns the subset of the given hashes already stored,
// as one consistent read. Ingestion uses this for batched deduplication.
func (s *Store) FindExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(hashes) == 0 {
		return existing, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file_hash FROM documents WHERE file_hash = ANY($1)`, hashes)
	if err != nil {
		return nil, fmt.Errorf("find existing hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		existing[h] = struct{}{}
	}
	return existing, rows.Err()
}

// Save inserts a single document and returns it with its assigned id.
func (s *Store) Save(ctx context.Context, doc *Document) (*Document, error) {
	err := s.db.QueryRowContext(ctx, `
INSERT INTO documents (file_name, file_path, file_type, file_size, file_hash, content, uploaded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`,
		doc.FileName, doc.FilePath, doc.FileType, doc.FileSize, doc.FileHash,
		doc.Content, doc.UploadedAt,
	).Scan(&doc.ID)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// SaveAll inserts a batch of documents in one transaction and returns them
// with assigned ids. The whole batch commits or none of it does.
func (s *Store) SaveAll(ctx context.Context, docs []*Document) ([]*Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents (file_name, file_path, file_type, file_size, file_hash, content, uploaded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range docs {
		err := stmt.QueryRowContext(ctx,
			doc.FileName, doc.FilePath, doc.FileType, doc.FileSize, doc.FileHash,
			doc.Content, doc.UploadedAt,
		).Scan(&doc.ID)
		if err != nil {
			return nil, fmt.Errorf("insert document %s: %w", doc.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save tx: %w", err)
	}
	return docs, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
