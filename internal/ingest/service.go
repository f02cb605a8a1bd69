// Package ingest brings documents into the system: extraction and hashing
// run in parallel on a worker pool, then the commit phase deduplicates
// against stored hashes and writes the survivors to the relational store,
// the inverted index, and the embedding queue.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/smartdocfinder/smartdoc/internal/docstore"
	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
	"github.com/smartdocfinder/smartdoc/internal/extract"
	"github.com/smartdocfinder/smartdoc/internal/telemetry"
)

// IndexWriter is the slice of the inverted index the service writes to.
type IndexWriter interface {
	Upsert(id int64, filename, content string) error
}

// DocumentStore is the slice of the relational store the service needs.
type DocumentStore interface {
	FindExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error)
	SaveAll(ctx context.Context, docs []*docstore.Document) ([]*docstore.Document, error)
}

// JobPublisher enqueues embedding work for saved documents.
type JobPublisher interface {
	PublishEmbeddingJob(docID int64, content string) error
}

// FileInput is one file to ingest.
type FileInput struct {
	Path     string
	Filename string
}

// Outcome classifies what happened to one input file.
type Outcome string

const (
	OutcomeSaved     Outcome = "saved"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// FileResult reports the outcome for one input file.
type FileResult struct {
	Filename   string  `json:"filename"`
	Outcome    Outcome `json:"outcome"`
	DocumentID int64   `json:"documentId,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Config tunes the ingestion service.
type Config struct {
	Workers     int
	MaxFileSize int64
}

// Service coordinates batch ingestion.
type Service struct {
	cfg      Config
	registry *extract.Registry
	store    DocumentStore
	index    IndexWriter
	queue    JobPublisher
	metrics  *telemetry.Metrics
	pool     *ants.Pool

	// commitMu serializes the dedup-and-save phase so two concurrent
	// batches cannot both pass the hash check with the same content.
	commitMu sync.Mutex
}

// NewService creates the service and its worker pool. queue may be nil when
// no broker is configured.
func NewService(cfg Config, registry *extract.Registry, store DocumentStore, index IndexWriter, queue JobPublisher, metrics *telemetry.Metrics) (*Service, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 << 20
	}
	pool, err := ants.NewPool(cfg.Workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeInternal, "create ingest worker pool")
	}
	return &Service{
		cfg:      cfg,
		registry: registry,
		store:    store,
		index:    index,
		queue:    queue,
		metrics:  metrics,
		pool:     pool,
	}, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// extracted is the per-file product of the parallel phase.
type extracted struct {
	input   FileInput
	content string
	hash    string
	size    int64
	err     error
}

// IngestFiles processes a batch end to end and returns one result per input,
// in input order. Per-file failures never abort the batch.
func (s *Service) IngestFiles(ctx context.Context, inputs []FileInput) ([]FileResult, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	// Phase one: extract and hash in parallel.
	items := make([]extracted, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		i, in := i, in
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			items[i] = s.extractOne(in)
		})
		if err != nil {
			wg.Done()
			items[i] = extracted{input: in, err: docerr.Wrap(err, docerr.ErrCodeInternal, "submit to worker pool")}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase two: dedup and commit under the lock.
	return s.commit(ctx, items)
}

func (s *Service) extractOne(in FileInput) extracted {
	out := extracted{input: in}

	info, err := os.Stat(in.Path)
	if err != nil {
		out.err = docerr.Wrap(err, docerr.ErrCodeInvalidInput, "stat upload")
		return out
	}
	if info.Size() > s.cfg.MaxFileSize {
		out.err = docerr.New(docerr.ErrCodeInvalidInput, "file exceeds size limit").
			WithDetail("size", info.Size()).
			WithDetail("limit", s.cfg.MaxFileSize)
		return out
	}
	out.size = info.Size()

	data, err := os.ReadFile(in.Path)
	if err != nil {
		out.err = docerr.Wrap(err, docerr.ErrCodeInvalidInput, "read upload")
		return out
	}

	content, err := s.registry.Extract(bytes.NewReader(data), in.Filename)
	if err != nil {
		out.err = err
		return out
	}

	sum := sha256.Sum256(data)
	out.content = content
	out.hash = hex.EncodeToString(sum[:])
	return out
}

// commit deduplicates against stored hashes (and within the batch itself),
// saves the new documents in one transaction, then indexes and enqueues
// them. Index or queue failures after the save are logged per document; the
// document stays retrievable through the store either way.
func (s *Service) commit(ctx context.Context, items []extracted) ([]FileResult, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	var hashes []string
	for _, it := range items {
		if it.err == nil {
			hashes = append(hashes, it.hash)
		}
	}

	existing := make(map[string]struct{})
	if len(hashes) > 0 {
		var err error
		existing, err = s.store.FindExistingHashes(ctx, hashes)
		if err != nil {
			return nil, err
		}
	}

	results := make([]FileResult, len(items))
	seen := make(map[string]struct{}, len(items))
	var fresh []*docstore.Document
	var freshIdx []int
	for i, it := range items {
		results[i] = FileResult{Filename: it.input.Filename}
		if it.err != nil {
			results[i].Outcome = OutcomeFailed
			results[i].Error = it.err.Error()
			s.metrics.RecordIngest(string(OutcomeFailed))
			continue
		}
		if _, dup := existing[it.hash]; dup {
			results[i].Outcome = OutcomeDuplicate
			s.metrics.RecordIngest(string(OutcomeDuplicate))
			continue
		}
		if _, dup := seen[it.hash]; dup {
			results[i].Outcome = OutcomeDuplicate
			s.metrics.RecordIngest(string(OutcomeDuplicate))
			continue
		}
		seen[it.hash] = struct{}{}

		fresh = append(fresh, &docstore.Document{
			FileName:   it.input.Filename,
			FilePath:   it.input.Path,
			FileType:   filepath.Ext(it.input.Filename),
			FileSize:   it.size,
			FileHash:   it.hash,
			Content:    it.content,
			UploadedAt: time.Now().UTC(),
		})
		freshIdx = append(freshIdx, i)
	}

	if len(fresh) == 0 {
		return results, nil
	}

	saved, err := s.store.SaveAll(ctx, fresh)
	if err != nil {
		return nil, err
	}

	for n, doc := range saved {
		i := freshIdx[n]
		results[i].Outcome = OutcomeSaved
		results[i].DocumentID = doc.ID
		s.metrics.RecordIngest(string(OutcomeSaved))

		if err := s.index.Upsert(doc.ID, doc.FileName, doc.Content); err != nil {
			slog.Error("index upsert failed after save",
				slog.Int64("doc_id", doc.ID),
				slog.String("filename", doc.FileName),
				slog.String("error", err.Error()))
		}
		if s.queue != nil {
			if err := s.queue.PublishEmbeddingJob(doc.ID, doc.Content); err != nil {
				slog.Warn("embedding job publish failed",
					slog.Int64("doc_id", doc.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	return results, nil
}
