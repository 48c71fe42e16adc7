// Package frontend exposes the HTTP API: batch, manual single-item, and
// reprocess runs streamed over SSE, plus the approval endpoint feeding
// the success memory.
package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/config"
	"github.com/pharmaboost/pharmaboost/internal/coordinator"
	"github.com/pharmaboost/pharmaboost/internal/memory"
	"github.com/pharmaboost/pharmaboost/internal/pipeline"
)

// Uploads are spreadsheets and text files; 64 MiB is generous.
const maxUploadBytes = 64 << 20

// Processor runs uploaded work and streams its events.
type Processor interface {
	Process(ctx context.Context, batch coordinator.Batch) <-chan pipeline.Event
	ProcessSingle(ctx context.Context, item coordinator.SingleItem) <-chan pipeline.Event
	Reprocess(ctx context.Context, batch coordinator.ReprocessBatch) <-chan pipeline.Event
}

// Server is the HTTP frontend.
type Server struct {
	cfg        *config.Config
	processor  Processor
	memory     *memory.Store
	httpServer *http.Server
	listener   net.Listener
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithListener sets a pre-bound listener, useful in tests.
func WithListener(l net.Listener) ServerOption {
	return func(s *Server) { s.listener = l }
}

// NewServer creates the frontend server.
func NewServer(cfg *config.Config, processor Processor, mem *memory.Store, opts ...ServerOption) *Server {
	s := &Server{cfg: cfg, processor: processor, memory: mem}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/batch", s.handleBatch)
		r.Post("/single", s.handleSingle)
		r.Post("/reprocess", s.handleReprocess)
		r.Post("/approve", s.handleApprove)
	})
	return r
}

// Serve runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	listener := s.listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", s.cfg.Addr())
		if err != nil {
			return err
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Frontend server started", "addr", listener.Addr().String())
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBatch accepts a multipart upload (items_file required,
// catalog_file and context_file optional) and streams processing events
// back as SSE until the batch completes.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithValues(r.Context(), "batch_id", uuid.New().String())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form: " + err.Error()})
		return
	}

	items, ok := formFile(r, "items_file")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items_file is required"})
		return
	}
	batch := coordinator.Batch{Items: items}
	if data, found := formFile(r, "catalog_file"); found {
		batch.Catalog = data
	}
	if data, found := formFile(r, "context_file"); found {
		batch.ContextText = string(data)
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Info(ctx, "Batch accepted", "items_bytes", len(batch.Items), "medicine_mode", batch.Catalog != nil)
	streamSSE(ctx, w, flusher, s.processor.Process(ctx, batch))
}

// handleSingle runs one product manually through the medicine pipeline
// from an uploaded leaflet document, streaming events as SSE.
func (s *Server) handleSingle(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithValues(r.Context(), "run_id", uuid.New().String())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form: " + err.Error()})
		return
	}

	item := coordinator.SingleItem{
		SKU:  r.FormValue("sku"),
		Name: r.FormValue("product_name"),
	}
	if item.SKU == "" || item.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sku and product_name are required"})
		return
	}
	leaflet, ok := formFile(r, "leaflet_file")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "leaflet_file is required"})
		return
	}
	item.Leaflet = leaflet

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Info(ctx, "Manual run accepted", "sku", item.SKU, "leaflet_bytes", len(item.Leaflet))
	streamSSE(ctx, w, flusher, s.processor.ProcessSingle(ctx, item))
}

// handleReprocess re-runs rejected rows with curator feedback, streaming
// events as SSE. Items arrive as a JSON array in the items_json field.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithValues(r.Context(), "batch_id", uuid.New().String())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form: " + err.Error()})
		return
	}

	var items []coordinator.ReprocessItem
	if err := json.Unmarshal([]byte(r.FormValue("items_json")), &items); err != nil || len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items_json must be a non-empty JSON array"})
		return
	}
	batch := coordinator.ReprocessBatch{Items: items}
	if data, found := formFile(r, "catalog_file"); found {
		batch.Catalog = data
	}
	if data, found := formFile(r, "context_file"); found {
		batch.ContextText = string(data)
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Info(ctx, "Reprocess accepted", "items", len(batch.Items), "medicine_mode", batch.Catalog != nil)
	streamSSE(ctx, w, flusher, s.processor.Reprocess(ctx, batch))
}

// streamSSE forwards events to the client until the stream closes. On a
// write failure the channel is drained so workers are never blocked.
func streamSSE(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, events <-chan pipeline.Event) {
	for event := range events {
		if err := writeEvent(w, flusher, event); err != nil {
			logger.Warn(ctx, "Client disconnected from event stream", "err", err)
			for range events {
			}
			break
		}
	}
}

type approveRequest struct {
	Product      string `json:"product"`
	OriginalHTML string `json:"original_html"`
	ApprovedHTML string `json:"approved_html"`
}

// handleApprove records human-approved content into the success memory.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Product == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product is required"})
		return
	}
	if err := s.memory.RecordSuccess(r.Context(), req.Product, req.OriginalHTML, req.ApprovedHTML); err != nil {
		logger.Error(r.Context(), "Failed to record approval", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record approval"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func formFile(r *http.Request, name string) ([]byte, bool) {
	file, _, err := r.FormFile(name)
	if err != nil {
		return nil, false
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, false
	}
	return data, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
