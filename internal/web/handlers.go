package web

import (
	"context"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/JonMunkholm/encounters/internal/core"
	"github.com/JonMunkholm/encounters/internal/logging"
)

// maxRejectsInResponse caps the rejects echoed back to the client. The full
// count is always in the summary.
const maxRejectsInResponse = 100

// RunResponse is returned by the validate and ingest endpoints.
type RunResponse struct {
	RunID     string              `json:"run_id"`
	Status    string              `json:"status"`
	Summary   core.SummaryReport  `json:"summary"`
	Rejects   []core.RejectRecord `json:"rejects"`
	Truncated bool                `json:"rejects_truncated,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string                   `json:"status"`
	Sink    string                   `json:"sink"`
	Ingests core.IngestLimiterStatus `json:"ingests"`
}

// rejectCollector keeps the first rejects of a run for the response body.
type rejectCollector struct {
	mu        sync.Mutex
	limit     int
	rejects   []core.RejectRecord
	truncated bool
}

func (c *rejectCollector) WriteReject(rec core.RejectRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rejects) >= c.limit {
		c.truncated = true
		return nil
	}
	c.rejects = append(c.rejects, rec)
	return nil
}

func (c *rejectCollector) WriteSummary(core.SummaryReport) error { return nil }

// handleHealth pings the sink.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Sink: "ok", Ingests: s.limiter.Status()}
	if err := s.store.Ping(ctx); err != nil {
		logging.FromContext(ctx).Warn("health check failed", "error", err)
		resp.Status = "degraded"
		resp.Sink = err.Error()
		writeJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleValidate runs the pipeline without writing documents.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	s.run(w, r, nil, header.Filename, file, header.Size)
}

// handleIngest runs the pipeline and writes accepted documents to the store.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	file, header, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	s.run(w, r, s.store, header.Filename, file, header.Size)
}

func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.cfg.Server.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, nil, errors.CombineErrors(errFileTooBig, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.CombineErrors(errNoFile, err)
	}
	return file, header, nil
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, sink core.DocumentSink, name string, file multipart.File, size int64) {
	ctx := r.Context()
	runID := uuid.NewString()
	logger := logging.ForRun(ctx, runID, name)

	src, err := core.NewCSVSource(name, file, size)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rejects := &rejectCollector{limit: maxRejectsInResponse}
	pipeline := core.NewPipeline(sink, rejects, core.Options{
		BatchSize:   s.cfg.Pipeline.BatchSize,
		Parallelism: s.cfg.Pipeline.ParallelWrites,
		RunID:       runID,
		Logger:      logging.FromContext(ctx),
	})

	result, err := pipeline.Run(ctx, src)
	if result == nil || (err != nil && !errors.Is(err, core.ErrPartialWrite)) {
		if err == nil {
			err = errors.New("pipeline returned no result")
		}
		respondError(w, r, err)
		return
	}

	resp := RunResponse{
		RunID:     runID,
		Status:    "complete",
		Summary:   result.Summary,
		Rejects:   rejects.rejects,
		Truncated: rejects.truncated,
	}
	if resp.Rejects == nil {
		resp.Rejects = []core.RejectRecord{}
	}

	status := http.StatusOK
	if err != nil {
		logger.Warn("ingest partially written", "error", err)
		resp.Status = "partial"
		status = http.StatusBadGateway
	}
	writeJSON(w, r, status, resp)
}
