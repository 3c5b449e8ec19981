package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orian/querybuilder/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSubmitter() *Submitter {
	return NewSubmitter(5*time.Second, zap.NewNop())
}

// capturedRequest is what a fake search API saw.
type capturedRequest struct {
	method      string
	contentType string
	query       string
	body        string
}

// captureServer starts a fake search API that reports every request on
// the returned channel and answers with status and payload.
func captureServer(t *testing.T, status int, payload string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		requests <- capturedRequest{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			query:       r.URL.RawQuery,
			body:        string(b),
		}
		w.WriteHeader(status)
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func TestSubmitPost(t *testing.T) {
	srv, requests := captureServer(t, http.StatusOK, `{"root":{"fields":{"totalCount":1}}}`)

	body := "{\n    \"hits\": 1\n}"
	submitter := newTestSubmitter()
	defer submitter.Close()
	result := submitter.Submit(context.Background(), models.Request{
		Method:  models.MethodPost,
		URL:     srv.URL,
		FullURL: srv.URL,
		Body:    &body,
	})

	got := <-requests
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "application/json;charset=utf-8", got.contentType)
	assert.Equal(t, body, got.body)

	assert.Equal(t, outcomeOK, result.Outcome)
	assert.Equal(t, http.StatusOK, result.HTTP.Status)
	assert.False(t, result.HTTP.Loading)
	assert.Empty(t, result.HTTP.Error)
	assert.Equal(t, "{\n    \"root\": {\n        \"fields\": {\n            \"totalCount\": 1\n        }\n    }\n}", result.HTTP.Response)
}

func TestSubmitGet(t *testing.T) {
	srv, requests := captureServer(t, http.StatusOK, "not json")

	submitter := newTestSubmitter()
	defer submitter.Close()
	result := submitter.Submit(context.Background(), models.Request{
		Method:  models.MethodGet,
		URL:     srv.URL,
		FullURL: srv.URL + "?hits=1&yql=a+b",
	})

	got := <-requests
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "hits=1&yql=a+b", got.query)
	assert.Empty(t, got.body)
	assert.Equal(t, "not json", result.HTTP.Response, "non JSON payloads are kept as is")
}

func TestSubmitHTTPError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest, `{"root":{"errors":[{"code":3,"message":"bad yql"}]}}`)

	submitter := newTestSubmitter()
	defer submitter.Close()
	result := submitter.Submit(context.Background(), models.Request{Method: models.MethodGet, FullURL: srv.URL})

	assert.Equal(t, outcomeHTTPErr, result.Outcome)
	assert.Equal(t, http.StatusBadRequest, result.HTTP.Status)
	assert.Contains(t, result.HTTP.Response, `"message": "bad yql"`)
	assert.Empty(t, result.HTTP.Error)
}

func TestSubmitTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	submitter := newTestSubmitter()
	defer submitter.Close()
	result := submitter.Submit(context.Background(), models.Request{Method: models.MethodGet, FullURL: url})

	assert.Equal(t, outcomeTransErr, result.Outcome)
	assert.Equal(t, 0, result.HTTP.Status)
	assert.True(t, strings.HasPrefix(result.HTTP.Error, "Request failed: "), result.HTTP.Error)

	result = submitter.Submit(context.Background(), models.Request{Method: models.MethodGet, FullURL: "://bad"})
	assert.Equal(t, outcomeTransErr, result.Outcome)
	assert.True(t, strings.HasPrefix(result.HTTP.Error, "Invalid request: "), result.HTTP.Error)
}

func TestIndentResponse(t *testing.T) {
	assert.Equal(t, "{\n    \"a\": [\n        1,\n        2\n    ]\n}", indentResponse([]byte(` {"a":[1,2]} `)))
	assert.Equal(t, "", indentResponse(nil))
	assert.Equal(t, "<html>", indentResponse([]byte("<html>")))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	submitter := newTestSubmitter()
	defer submitter.Close()

	status, err := submitter.Ping(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)

	_, err = submitter.Ping(context.Background(), "http://127.0.0.1:1/")
	assert.Error(t, err)
}
