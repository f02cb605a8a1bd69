package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdocfinder/smartdoc/internal/docstore"
	"github.com/smartdocfinder/smartdoc/internal/extract"
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	byHash map[string]*docstore.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: make(map[string]*docstore.Document)}
}

func (f *fakeStore) FindExistingHashes(_ context.Context, hashes []string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{})
	for _, h := range hashes {
		if _, ok := f.byHash[h]; ok {
			out[h] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeStore) SaveAll(_ context.Context, docs []*docstore.Document) ([]*docstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range docs {
		f.nextID++
		d.ID = f.nextID
		f.byHash[d.FileHash] = d
	}
	return docs, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	upserts map[int64]string
}

func (f *fakeIndex) Upsert(id int64, _ string, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserts == nil {
		f.upserts = make(map[int64]string)
	}
	f.upserts[id] = content
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []int64
}

func (f *fakePublisher) PublishEmbeddingJob(docID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, docID)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) FileInput {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return FileInput{Path: path, Filename: name}
}

func newTestService(t *testing.T, store DocumentStore, idx IndexWriter, pub JobPublisher) *Service {
	t.Helper()
	svc, err := NewService(Config{Workers: 2}, extract.NewRegistry(), store, idx, pub, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestIngestSavesIndexesAndPublishes(t *testing.T) {
	dir := t.TempDir()
	store, idx, pub := newFakeStore(), &fakeIndex{}, &fakePublisher{}
	svc := newTestService(t, store, idx, pub)

	results, err := svc.IngestFiles(context.Background(), []FileInput{
		writeFile(t, dir, "a.txt", "first document body"),
		writeFile(t, dir, "b.txt", "second document body"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, OutcomeSaved, r.Outcome)
		assert.NotZero(t, r.DocumentID)
	}
	assert.Len(t, idx.upserts, 2)
	assert.Len(t, pub.jobs, 2)
}

func TestIngestSkipsDuplicateAcrossBatches(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeIndex{}, nil)

	first, err := svc.IngestFiles(context.Background(), []FileInput{
		writeFile(t, dir, "orig.txt", "identical payload"),
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSaved, first[0].Outcome)

	second, err := svc.IngestFiles(context.Background(), []FileInput{
		writeFile(t, dir, "copy.txt", "identical payload"),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second[0].Outcome,
		"same bytes under a different name is still a duplicate")
	assert.EqualValues(t, 1, store.nextID)
}

func TestIngestSkipsDuplicateWithinBatch(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, newFakeStore(), &fakeIndex{}, nil)

	results, err := svc.IngestFiles(context.Background(), []FileInput{
		writeFile(t, dir, "one.txt", "same bytes"),
		writeFile(t, dir, "two.txt", "same bytes"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	outcomes := []Outcome{results[0].Outcome, results[1].Outcome}
	assert.Contains(t, outcomes, OutcomeSaved)
	assert.Contains(t, outcomes, OutcomeDuplicate)
}

func TestIngestFailuresDoNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndex{}
	svc := newTestService(t, newFakeStore(), idx, nil)

	results, err := svc.IngestFiles(context.Background(), []FileInput{
		writeFile(t, dir, "good.txt", "valid content"),
		writeFile(t, dir, "bad.zip", "unsupported"),
		{Path: filepath.Join(dir, "missing.txt"), Filename: "missing.txt"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, OutcomeSaved, results[0].Outcome)
	assert.Equal(t, OutcomeFailed, results[1].Outcome)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, OutcomeFailed, results[2].Outcome)
	assert.Len(t, idx.upserts, 1)
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(Config{Workers: 1, MaxFileSize: 8},
		extract.NewRegistry(), newFakeStore(), &fakeIndex{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	results, err := svc.IngestFiles(context.Background(), []FileInput{
		writeFile(t, dir, "big.txt", "this is more than eight bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
}

func TestIngestEmptyBatch(t *testing.T) {
	svc := newTestService(t, newFakeStore(), &fakeIndex{}, nil)
	results, err := svc.IngestFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
