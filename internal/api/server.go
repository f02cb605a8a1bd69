// Package api exposes the HTTP surface: document upload, search, health,
// and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
	"github.com/smartdocfinder/smartdoc/internal/ingest"
	"github.com/smartdocfinder/smartdoc/internal/search"
)

// maxUploadBytes caps one multipart request body.
const maxUploadBytes = 256 << 20

// Config configures the HTTP server.
type Config struct {
	Host      string
	Port      int
	UploadDir string
}

// Server wires the router to the pipeline and ingestion service.
type Server struct {
	cfg      Config
	pipeline *search.Pipeline
	ingester *ingest.Service
	registry *prometheus.Registry
	http     *http.Server
}

// NewServer builds the server. registry may be nil to disable /metrics.
func NewServer(cfg Config, pipeline *search.Pipeline, ingester *ingest.Service, registry *prometheus.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		ingester: ingester,
		registry: registry,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", s.handleUpload)
		r.Get("/search", s.handleSearch)
	})
	return r
}

// ListenAndServe runs the server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest,
			docerr.New(docerr.ErrCodeInvalidInput, "query parameter q is required"))
		return
	}

	resp, err := s.pipeline.Search(r.Context(), q)
	if err != nil {
		slog.Error("search failed",
			slog.String("query", q),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpload accepts one or more files in a multipart form under the
// "files" field, stages them in the upload directory, and ingests the batch.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest,
			docerr.Wrap(err, docerr.ErrCodeInvalidInput, "parse multipart form"))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest,
			docerr.New(docerr.ErrCodeInvalidInput, "no files in upload"))
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError,
			docerr.Wrap(err, docerr.ErrCodeInternal, "create upload dir"))
		return
	}

	var inputs []ingest.FileInput
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		path, err := s.stage(fh, name)
		if err != nil {
			slog.Warn("staging upload failed",
				slog.String("filename", name),
				slog.String("error", err.Error()))
			continue
		}
		inputs = append(inputs, ingest.FileInput{Path: path, Filename: name})
	}
	defer func() {
		for _, in := range inputs {
			os.Remove(in.Path)
		}
	}()

	results, err := s.ingester.IngestFiles(r.Context(), inputs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// stage copies one uploaded part to a uniquely named file on disk.
func (s *Server) stage(fh *multipart.FileHeader, name string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(s.cfg.UploadDir, "upload-*-"+name)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"error": err.Error()}
	if code := docerr.GetCode(err); code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

// accessLog emits one structured line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
