package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"modex-hq/aegis/pkg/api/middleware"
	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/engine"
	"modex-hq/aegis/pkg/telemetry/metrics"
)

// ModerateHandler serves POST /moderate-image.
type ModerateHandler struct {
	engine  *engine.Engine
	limits  config.LimitsConfig
	metrics *metrics.Collector // nil when metrics are disabled
	logger  *slog.Logger
}

// NewModerateHandler creates the single-image moderation handler.
func NewModerateHandler(eng *engine.Engine, limits config.LimitsConfig, collector *metrics.Collector) *ModerateHandler {
	return &ModerateHandler{
		engine:  eng,
		limits:  limits,
		metrics: collector,
		logger:  slog.Default().With("component", "api.moderate"),
	}
}

// ServeHTTP handles one multipart upload: validate, moderate, respond.
func (h *ModerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	data, filename, err := readUpload(r, "file", h.limits.MaxImageBytes)
	if err != nil {
		h.reject(w, start, requestID, err)
		return
	}

	contentType, err := engine.ValidateUpload(data, filename, h.limits)
	if err != nil {
		h.reject(w, start, requestID, err)
		return
	}

	req := backend.Request{
		ID:          requestID,
		Image:       data,
		ContentType: contentType,
		Filename:    filename,
		ReceivedAt:  start,
	}
	if deadline, ok := r.Context().Deadline(); ok {
		req.Deadline = deadline
	}

	decision, err := h.engine.Moderate(r.Context(), req, middleware.GetClientKey(r.Context()))
	if err != nil {
		// Only policy errors escape the engine.
		h.logger.Error("moderation failed", "request_id", requestID, "error", err)
		h.record("moderate", "", "policy_error", start)
		writeError(w, http.StatusServiceUnavailable, err.Error(), requestID)
		return
	}

	h.record("moderate", string(decision.Verdict), "ok", start)
	writeJSON(w, http.StatusOK, toResponse(decision))
}

// reject writes a validation failure response.
func (h *ModerateHandler) reject(w http.ResponseWriter, start time.Time, requestID string, err error) {
	h.record("moderate", "", "validation_error", start)

	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error(), requestID)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error(), requestID)
}

// record emits request metrics when enabled.
func (h *ModerateHandler) record(endpoint, verdict, status string, start time.Time) {
	if h.metrics != nil {
		h.metrics.Request().RecordRequest(endpoint, verdict, status, time.Since(start))
	}
}

// readUpload extracts one file from a multipart form, bounding the parse by
// the image size limit.
func readUpload(r *http.Request, field string, maxBytes int64) ([]byte, string, error) {
	// Slack for the multipart framing itself
	if err := r.ParseMultipartForm(maxBytes + 1024*1024); err != nil {
		return nil, "", &engine.ValidationError{Field: field, Reason: "malformed multipart form"}
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", &engine.ValidationError{Field: field, Reason: "missing file"}
	}
	defer file.Close()

	data, err := readBounded(file, maxBytes)
	if err != nil {
		return nil, header.Filename, err
	}
	return data, header.Filename, nil
}

// readBounded reads at most maxBytes+1 so oversize files are detected
// without buffering arbitrarily large uploads.
func readBounded(file multipart.File, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, &engine.ValidationError{Reason: "failed to read upload"}
	}
	if int64(len(data)) > maxBytes {
		return nil, &engine.ValidationError{
			Reason: fmt.Sprintf("file exceeds maximum size of %d bytes", maxBytes),
		}
	}
	return data, nil
}
