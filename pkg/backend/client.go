package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"modex-hq/aegis/pkg/config"
)

// Client is an HTTP client for one backend version. It owns a pooled
// transport, enforces the configured per-call timeout, and tracks health
// across calls.
type Client struct {
	kind          Kind
	version       string
	baseURL       string
	timeout       time.Duration
	supportsBatch bool

	httpClient *http.Client
	logger     *slog.Logger

	healthMu sync.RWMutex
	health   Health
}

// unhealthyAfter is the number of consecutive failures after which a
// backend is marked unhealthy.
const unhealthyAfter = 3

// inferRequest is the wire format for a single inference call.
// Image bytes are base64-encoded by the JSON encoder.
type inferRequest struct {
	RequestID string `json:"request_id"`
	Image     []byte `json:"image"`
}

// batchInferRequest is the wire format for a batched inference call.
// RequestIDs and Images are parallel slices.
type batchInferRequest struct {
	RequestIDs []string `json:"request_ids"`
	Images     [][]byte `json:"images"`
}

// batchInferResponse is the wire format of a batched inference response.
// Results are parallel to the submitted images.
type batchInferResponse struct {
	Results []json.RawMessage `json:"results"`
}

// NewClient creates a client for one backend version.
func NewClient(kind Kind, version string, cfg config.BackendVersionConfig, supportsBatch bool) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		kind:          kind,
		version:       version,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		supportsBatch: supportsBatch,
		httpClient: &http.Client{
			Transport: transport,
			// Per-call deadlines come from the context; the client
			// timeout is only a backstop.
			Timeout: cfg.Timeout + time.Second,
		},
		logger: slog.Default().With(
			"component", "backend.client",
			"kind", string(kind),
			"version", version,
		),
		health: Health{
			IsHealthy: true, // Start optimistic
			LastCheck: time.Now(),
		},
	}
}

// Kind returns the backend kind this client serves.
func (c *Client) Kind() Kind { return c.kind }

// Version returns the backend version this client serves.
func (c *Client) Version() string { return c.version }

// SupportsBatch reports whether the backend accepts batched calls.
func (c *Client) SupportsBatch() bool { return c.supportsBatch }

// Timeout returns the configured per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// GetHealth returns a snapshot of the client's health state.
func (c *Client) GetHealth() Health {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

// IsHealthy reports the current health verdict.
func (c *Client) IsHealthy() bool {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health.IsHealthy
}

// Invoke performs a single inference call. The returned Outcome is always
// terminal: success with a decoded payload, failure, or timeout.
func (c *Client) Invoke(ctx context.Context, call Call) Outcome {
	start := time.Now()

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	body, err := json.Marshal(inferRequest{
		RequestID: call.RequestID,
		Image:     call.Image,
	})
	if err != nil {
		return c.fail(fmt.Errorf("failed to marshal request: %w", err), start)
	}

	raw, err := c.post(ctx, "/infer", body)
	if err != nil {
		return c.terminal(ctx, err, start)
	}

	payload, confidence, err := decodePayload(c.kind, raw)
	if err != nil {
		return c.fail(&ParseError{Kind: c.kind, Version: c.version, Cause: err}, start)
	}

	c.record(true, nil)
	return Success(c.kind, c.version, payload, confidence, time.Since(start))
}

// InvokeBatch performs a batched inference call for calls that share this
// client's kind and version. It returns one Outcome per call, in input
// order. When the backend's response cannot be matched to the inputs, every
// call in the batch fails.
func (c *Client) InvokeBatch(ctx context.Context, calls []Call) []Outcome {
	start := time.Now()
	outcomes := make([]Outcome, len(calls))

	if len(calls) == 0 {
		return outcomes
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	req := batchInferRequest{
		RequestIDs: make([]string, len(calls)),
		Images:     make([][]byte, len(calls)),
	}
	for i, call := range calls {
		req.RequestIDs[i] = call.RequestID
		req.Images[i] = call.Image
	}

	body, err := json.Marshal(req)
	if err != nil {
		return c.failAll(outcomes, fmt.Errorf("failed to marshal batch request: %w", err), start)
	}

	raw, err := c.post(ctx, "/infer/batch", body)
	if err != nil {
		out := c.terminal(ctx, err, start)
		for i := range outcomes {
			outcomes[i] = out
		}
		return outcomes
	}

	var resp batchInferResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return c.failAll(outcomes, &ParseError{Kind: c.kind, Version: c.version, Cause: err}, start)
	}
	if len(resp.Results) != len(calls) {
		err := &ParseError{
			Kind:    c.kind,
			Version: c.version,
			Cause:   fmt.Errorf("batch size mismatch: sent %d, received %d", len(calls), len(resp.Results)),
		}
		return c.failAll(outcomes, err, start)
	}

	latency := time.Since(start)
	for i, result := range resp.Results {
		payload, confidence, err := decodePayload(c.kind, result)
		if err != nil {
			outcomes[i] = Failure(c.kind, c.version, &ParseError{Kind: c.kind, Version: c.version, Cause: err}, latency)
			continue
		}
		outcomes[i] = Success(c.kind, c.version, payload, confidence, latency)
	}

	c.record(true, nil)
	return outcomes
}

// Load asks the backend to load this version's model.
func (c *Client) Load(ctx context.Context) error {
	return c.control(ctx, "/load")
}

// Unload asks the backend to release this version's model.
func (c *Client) Unload(ctx context.Context) error {
	return c.control(ctx, "/unload")
}

// control performs a model-control POST. Control calls do not feed the
// health counters; a failed load is an operator problem, not a serving one.
func (c *Client) control(ctx context.Context, path string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.post(ctx, path, nil); err != nil {
		c.logger.Warn("model control call failed", "path", path, "error", err)
		return err
	}
	return nil
}

// HealthCheck probes the backend's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(false, err)
		return &BackendError{Kind: c.kind, Version: c.version, Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		err := &BackendError{
			Kind:       c.kind,
			Version:    c.version,
			StatusCode: resp.StatusCode,
			Message:    "health check failed",
		}
		c.record(false, err)
		return err
	}

	c.record(true, nil)
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.logger.Debug("backend client closed")
	return nil
}

// callContext derives the context for a wire call, bounding it by the
// configured per-call timeout while respecting any tighter caller deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// post performs a JSON POST and returns the raw response body on 2xx.
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ParseError{Kind: c.kind, Version: c.version, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{
			Kind:       c.kind,
			Version:    c.version,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	return raw, nil
}

// terminal maps a wire error to its terminal outcome: timeouts are reported
// as StatusTimeout, everything else as StatusFailure.
func (c *Client) terminal(ctx context.Context, err error, start time.Time) Outcome {
	latency := time.Since(start)

	if isTimeout(ctx, err) {
		terr := &TimeoutError{Kind: c.kind, Version: c.version, Timeout: c.timeout}
		c.record(false, terr)
		c.logger.Warn("backend call timed out", "timeout", c.timeout)
		return Timeout(c.kind, c.version, terr, latency)
	}

	var berr *BackendError
	if !errors.As(err, &berr) {
		err = &BackendError{Kind: c.kind, Version: c.version, Message: err.Error(), Cause: err}
	}
	c.record(false, err)
	c.logger.Warn("backend call failed", "error", err)
	return Failure(c.kind, c.version, err, latency)
}

// fail records a failure and returns a failed outcome.
func (c *Client) fail(err error, start time.Time) Outcome {
	c.record(false, err)
	return Failure(c.kind, c.version, err, time.Since(start))
}

// failAll fills every slot with the same failure.
func (c *Client) failAll(outcomes []Outcome, err error, start time.Time) []Outcome {
	out := c.fail(err, start)
	for i := range outcomes {
		outcomes[i] = out
	}
	return outcomes
}

// record updates health counters after a call.
func (c *Client) record(success bool, err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.LastCheck = time.Now()
	c.health.TotalCalls++

	if success {
		c.health.IsHealthy = true
		c.health.ConsecutiveFailures = 0
		c.health.LastError = nil
		return
	}

	c.health.FailedCalls++
	c.health.ConsecutiveFailures++
	c.health.LastError = err

	if c.health.ConsecutiveFailures >= unhealthyAfter && c.health.IsHealthy {
		c.health.IsHealthy = false
		c.logger.Warn("backend marked unhealthy",
			"consecutive_failures", c.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// isTimeout reports whether err (or the context state) represents a deadline
// expiry rather than a hard failure.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// decodePayload decodes a kind-specific payload and extracts its confidence.
func decodePayload(kind Kind, raw []byte) (any, float64, error) {
	switch kind {
	case KindClassifier:
		var r ClassifierResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, 0, err
		}
		return &r, r.Confidence, nil

	case KindSafety:
		var r SafetyResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, 0, err
		}
		return &r, r.Confidence, nil

	case KindOCR:
		var r OCRResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, 0, err
		}
		return &r, meanConfidence(r.Confidences), nil

	default:
		return nil, 0, fmt.Errorf("unknown backend kind %q", kind)
	}
}

// meanConfidence averages per-fragment OCR confidences. An empty extraction
// is reported with full confidence: "no text" is a definitive answer.
func meanConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 1.0
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return sum / float64(len(confidences))
}
