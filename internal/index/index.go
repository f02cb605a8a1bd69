// Package index owns the durable inverted text index for SmartDoc.
//
// The Store wraps a bleve index with the lifecycle the search pipeline
// depends on: a single exclusive writer per process (enforced with a lock
// file), atomic per-id upserts, and cheap point-in-time readers that never
// block the writer.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/gofrs/flock"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
)

// Index field names. The query builder and searcher address fields by these.
const (
	// FieldID is the exact-match document identifier field.
	FieldID = "id"

	// FieldFilename is the standard-analyzed filename field (stored).
	FieldFilename = "filename"

	// FieldFilenameAutocomplete carries the same filename text under a
	// plain lowercase word analyzer so prefix queries match partial typing.
	FieldFilenameAutocomplete = "filename_autocomplete"

	// FieldContent is the analyzed, fully stored document body.
	FieldContent = "content"
)

// autocompleteAnalyzerName is the custom analyzer for the autocomplete field.
const autocompleteAnalyzerName = "filename_words"

// Document is the indexed representation of a stored document.
// ID duplicates the bleve document key so it is queryable as a field.
type Document struct {
	ID                   string `json:"id"`
	Filename             string `json:"filename"`
	FilenameAutocomplete string `json:"filename_autocomplete"`
	Content              string `json:"content"`
}

// Store is the process-wide text index handle. It is created once at startup,
// shared by ingestion and search, and closed exactly once at shutdown.
type Store struct {
	mu     sync.RWMutex
	idx    bleve.Index
	path   string
	lock   *flock.Flock
	closed bool
}

// Open creates or opens the index at path and acquires the exclusive writer
// lock. An empty path opens an in-memory index (tests only; no lock file).
// Lock contention and index corruption are fatal: the process must not start
// with a store it cannot own.
func Open(path string) (*Store, error) {
	im, err := buildIndexMapping()
	if err != nil {
		return nil, docerr.IndexUnavailable("build index mapping", err)
	}

	if path == "" {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, docerr.IndexUnavailable("create in-memory index", err)
		}
		return &Store{idx: idx}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, docerr.IndexUnavailable("create index directory", err)
	}

	lock := flock.New(path + ".lock")
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, docerr.IndexUnavailable("acquire writer lock", err)
	}
	if !acquired {
		return nil, docerr.New(docerr.ErrCodeIndexLocked,
			fmt.Sprintf("index %s is locked by another writer", path))
	}

	if err := validateIntegrity(path); err != nil {
		_ = lock.Unlock()
		return nil, docerr.Wrap(err, docerr.ErrCodeIndexCorrupt, "index integrity check failed")
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, im)
	}
	if err != nil {
		_ = lock.Unlock()
		return nil, docerr.IndexUnavailable("open index", err)
	}

	slog.Info("text index opened", slog.String("path", path))
	return &Store{idx: idx, path: path, lock: lock}, nil
}

// buildIndexMapping defines the per-field analysis:
// id exact-match, filename standard-analyzed and stored, the autocomplete
// field re-tokenizes the same filename text without stemming or stopping,
// content analyzed and stored with term vectors for highlighting.
func buildIndexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomAnalyzer(autocompleteAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add autocomplete analyzer: %w", err)
	}

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	idField.IncludeInAll = false

	filenameField := bleve.NewTextFieldMapping()
	filenameField.Analyzer = standard.Name
	filenameField.Store = true

	autocompleteField := bleve.NewTextFieldMapping()
	autocompleteField.Analyzer = autocompleteAnalyzerName
	autocompleteField.Store = false
	autocompleteField.IncludeInAll = false

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	contentField.IncludeTermVectors = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldID, idField)
	doc.AddFieldMappingsAt(FieldFilename, filenameField)
	doc.AddFieldMappingsAt(FieldFilenameAutocomplete, autocompleteField)
	doc.AddFieldMappingsAt(FieldContent, contentField)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name

	return im, nil
}

// validateIntegrity checks index metadata before opening so a corrupt store
// fails loudly at startup instead of surfacing as confusing query errors.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing at %s", path)
	}
	if err != nil {
		return fmt.Errorf("stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty at %s", path)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json unparseable: %w", err)
	}
	return nil
}

// Upsert indexes a document, atomically replacing any existing document with
// the same id. Readers opened before the upsert keep seeing the prior
// version; readers opened after see exactly one live document for the id.
func (s *Store) Upsert(id int64, filename, content string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return docerr.New(docerr.ErrCodeIndexWrite, "index is closed")
	}

	docID := strconv.FormatInt(id, 10)
	doc := Document{
		ID:                   docID,
		Filename:             filename,
		FilenameAutocomplete: filename,
		Content:              content,
	}

	if err := s.idx.Index(docID, doc); err != nil {
		return docerr.Wrap(err, docerr.ErrCodeIndexWrite, fmt.Sprintf("upsert document %s", docID))
	}
	return nil
}

// Delete removes a document from the index.
func (s *Store) Delete(id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return docerr.New(docerr.ErrCodeIndexWrite, "index is closed")
	}
	if err := s.idx.Delete(strconv.FormatInt(id, 10)); err != nil {
		return docerr.Wrap(err, docerr.ErrCodeIndexWrite, "delete document")
	}
	return nil
}

// Reader returns a point-in-time view for query execution. bleve pins an
// immutable segment snapshot per search, so every query through the returned
// Reader reflects exactly the upserts committed before that query and never
// blocks the writer.
func (s *Store) Reader() (*Reader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, docerr.IndexUnavailable("index is closed", nil)
	}
	return &Reader{idx: s.idx}, nil
}

// DocCount returns the number of live documents in the index.
func (s *Store) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, docerr.IndexUnavailable("index is closed", nil)
	}
	return s.idx.DocCount()
}

// Close flushes buffered writes, closes the index, and releases the writer
// lock. A flush failure is surfaced, not swallowed. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.idx.Close()

	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}

	if err != nil {
		return docerr.Wrap(err, docerr.ErrCodeIndexFlush, "close index")
	}
	return nil
}

// Reader is a point-in-time query view over the store.
type Reader struct {
	idx bleve.Index
}

// Search executes a search request against the reader's snapshot.
func (r *Reader) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return r.idx.SearchInContext(ctx, req)
}
