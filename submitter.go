package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orian/querybuilder/models"
	"go.uber.org/zap"
)

const queryContentType = "application/json;charset=utf-8"

// Submission outcomes as reported to metrics.
const (
	outcomeOK       = "ok"
	outcomeHTTPErr  = "http_error"
	outcomeTransErr = "transport_error"
)

// Submitter sends composed requests to the search API.
type Submitter struct {
	client *http.Client
	logger *zap.Logger
}

// NewSubmitter creates a Submitter whose requests time out after timeout.
func NewSubmitter(timeout time.Duration, logger *zap.Logger) *Submitter {
	return &Submitter{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Submission is the outcome of one request.
type Submission struct {
	HTTP     models.HTTPState
	Outcome  string
	Duration time.Duration
}

// Submit sends req and returns its outcome. It never returns an error:
// transport failures are reported in the HTTP state so that they end up
// in front of the user. There are no retries.
func (s *Submitter) Submit(ctx context.Context, req models.Request) Submission {
	start := time.Now()
	state, outcome := s.do(ctx, req)
	d := time.Since(start)

	s.logger.Info("search request",
		zap.String("method", string(req.Method)),
		zap.String("url", req.FullURL),
		zap.Int("status", state.Status),
		zap.String("outcome", outcome),
		zap.Duration("duration", d),
	)
	return Submission{HTTP: state, Outcome: outcome, Duration: d}
}

func (s *Submitter) do(ctx context.Context, req models.Request) (models.HTTPState, string) {
	var body io.Reader
	if req.Body != nil {
		body = strings.NewReader(*req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.FullURL, body)
	if err != nil {
		return models.HTTPState{Error: fmt.Sprintf("Invalid request: %v", err)}, outcomeTransErr
	}
	httpReq.Header.Set("Content-Type", queryContentType)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.Warn("search request failed", zap.String("url", req.FullURL), zap.Error(err))
		return models.HTTPState{Error: fmt.Sprintf("Request failed: %v", err)}, outcomeTransErr
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.HTTPState{Status: resp.StatusCode, Error: fmt.Sprintf("Reading response failed: %v", err)}, outcomeTransErr
	}

	state := models.HTTPState{Status: resp.StatusCode, Response: indentResponse(payload)}
	if resp.StatusCode >= http.StatusBadRequest {
		return state, outcomeHTTPErr
	}
	return state, outcomeOK
}

// indentResponse re-indents JSON payloads with 4 spaces and returns other
// payloads as they are.
func indentResponse(payload []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(payload), "", "    "); err != nil {
		return string(payload)
	}
	return out.String()
}

// Close drops idle keep-alive connections to the search API.
func (s *Submitter) Close() {
	s.client.CloseIdleConnections()
}

// Ping reports whether the search endpoint answers at all.
func (s *Submitter) Ping(ctx context.Context, endpoint string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
