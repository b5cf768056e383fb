package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"modex-hq/aegis/pkg/api/middleware"
	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/engine"
	"modex-hq/aegis/pkg/telemetry/metrics"
)

// BatchHandler serves POST /batch-moderate.
type BatchHandler struct {
	engine  *engine.Engine
	limits  config.LimitsConfig
	metrics *metrics.Collector // nil when metrics are disabled
	logger  *slog.Logger
}

// NewBatchHandler creates the batch moderation handler.
func NewBatchHandler(eng *engine.Engine, limits config.LimitsConfig, collector *metrics.Collector) *BatchHandler {
	return &BatchHandler{
		engine:  eng,
		limits:  limits,
		metrics: collector,
		logger:  slog.Default().With("component", "api.batch"),
	}
}

// ServeHTTP handles a multi-file upload. Items are isolated: one item's
// validation or backend failure degrades only that item's entry, and the
// batch always returns a complete result list.
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	maxForm := h.limits.MaxImageBytes*int64(h.limits.MaxBatchFiles) + 1024*1024
	if err := r.ParseMultipartForm(maxForm); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form", requestID)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided", requestID)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) > h.limits.MaxBatchFiles {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("too many files: %d (maximum %d)", len(files), h.limits.MaxBatchFiles),
			requestID)
		return
	}

	// Validate every item up front; invalid items get an error entry and
	// valid ones proceed to moderation.
	items := make([]BatchItemResponse, len(files))
	var reqs []backend.Request
	var reqIndex []int

	for i, header := range files {
		items[i] = BatchItemResponse{Filename: header.Filename}

		file, err := header.Open()
		if err != nil {
			items[i].Error = "failed to open upload"
			continue
		}
		data, err := io.ReadAll(io.LimitReader(file, h.limits.MaxImageBytes+1))
		file.Close()
		if err != nil {
			items[i].Error = "failed to read upload"
			continue
		}
		if int64(len(data)) > h.limits.MaxImageBytes {
			items[i].Error = fmt.Sprintf("file exceeds maximum size of %d bytes", h.limits.MaxImageBytes)
			continue
		}

		contentType, err := engine.ValidateUpload(data, header.Filename, h.limits)
		if err != nil {
			items[i].Error = err.Error()
			continue
		}

		req := backend.Request{
			// Derived item IDs keep per-item routing deterministic
			// under the batch's request ID.
			ID:          fmt.Sprintf("%s-%d", requestID, i),
			Image:       data,
			ContentType: contentType,
			Filename:    header.Filename,
			ReceivedAt:  start,
		}
		if req.ID == fmt.Sprintf("-%d", i) {
			req.ID = uuid.New().String()
		}
		reqs = append(reqs, req)
		reqIndex = append(reqIndex, i)
	}

	results := h.engine.ModerateBatch(r.Context(), reqs, middleware.GetClientKey(r.Context()))

	processed := 0
	for j, result := range results {
		i := reqIndex[j]
		if result.Err != nil {
			items[i].Error = result.Err.Error()
			continue
		}
		items[i].ModerationResponse = toResponse(result.Decision)
		processed++
	}

	if h.metrics != nil {
		h.metrics.Request().RecordBatchItems(len(files))
		h.metrics.Request().RecordRequest("batch_moderate", "", "ok", time.Since(start))
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		BatchResults:     items,
		TotalImages:      len(files),
		ProcessedImages:  processed,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Timestamp:        time.Now().UTC(),
	})
}
