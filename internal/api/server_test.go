package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdocfinder/smartdoc/internal/docstore"
	"github.com/smartdocfinder/smartdoc/internal/extract"
	"github.com/smartdocfinder/smartdoc/internal/index"
	"github.com/smartdocfinder/smartdoc/internal/ingest"
	"github.com/smartdocfinder/smartdoc/internal/query"
	"github.com/smartdocfinder/smartdoc/internal/search"
)

type memDocStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*docstore.Document
	byHash map[string]*docstore.Document
}

func newMemDocStore() *memDocStore {
	return &memDocStore{
		byID:   make(map[int64]*docstore.Document),
		byHash: make(map[string]*docstore.Document),
	}
}

func (m *memDocStore) FindAllByID(_ context.Context, ids []int64) ([]*docstore.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*docstore.Document
	for _, id := range ids {
		if d, ok := m.byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocStore) FindExistingHashes(_ context.Context, hashes []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	for _, h := range hashes {
		if _, ok := m.byHash[h]; ok {
			out[h] = struct{}{}
		}
	}
	return out, nil
}

func (m *memDocStore) SaveAll(_ context.Context, docs []*docstore.Document) ([]*docstore.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.nextID++
		d.ID = m.nextID
		m.byID[d.ID] = d
		m.byHash[d.FileHash] = d
	}
	return docs, nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	store, err := index.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	docs := newMemDocStore()
	pipeline := search.NewPipeline(
		search.PipelineConfig{RetrievalWidth: 50, TopK: 5},
		search.NewLexicalSearcher(store, query.NewBuilder(2)),
		search.NewSemanticAdapter(nil, nil, 0.3, nil),
		search.NewFuser(60),
		search.NewMaterializer(docs, 200),
		nil, nil, nil,
	)

	svc, err := ingest.NewService(ingest.Config{Workers: 2},
		extract.NewRegistry(), docs, store, nil, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	srv := NewServer(Config{UploadDir: t.TempDir()}, pipeline, svc, nil)
	return srv.router()
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchRequiresQuery(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["code"], "ERR_401")
}

func TestUploadThenSearch(t *testing.T) {
	h := newTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "invoice.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Invoice for March. Total amount due 4200 EUR."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var upload struct {
		Results []ingest.FileResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upload))
	require.Len(t, upload.Results, 1)
	assert.Equal(t, ingest.OutcomeSaved, upload.Results[0].Outcome)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=invoice", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, search.StageDone, resp.Stage)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "invoice.txt", resp.Results[0].Filename)
}

func TestUploadRejectsEmptyForm(t *testing.T) {
	h := newTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
