package analyze

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookmaster/hookmaster/internal/store"
)

func testRequest() *store.CapturedRequest {
	return &store.CapturedRequest{
		ID:          "r1",
		EndpointID:  "e1",
		Method:      "POST",
		Body:        json.RawMessage(`{"type":"invoice.payment_failed"}`),
		Size:        32,
		ContentType: "application/json",
	}
}

func TestSummarizeUnconfigured(t *testing.T) {
	c := New("", "")
	out := c.Summarize(context.Background(), testRequest())
	assert.Equal(t, notConfigured, out)
}

func TestSummarizeSuccess(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var in generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Contains(t, in.Prompt, "invoice.payment_failed")
		assert.Contains(t, in.Prompt, "POST")
		json.NewEncoder(w).Encode(generateResponse{Text: "payment failure event"})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key")
	out := c.Summarize(context.Background(), testRequest())
	assert.Equal(t, "payment failure event", out)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestSummarizeServerErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	out := c.Summarize(context.Background(), testRequest())
	assert.Equal(t, summaryUnavailable, out,
		"collaborator failure must degrade to a placeholder, never an error")
}

func TestSummarizeUnreachableDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	c := New(srv.URL, "")
	out := c.Summarize(context.Background(), testRequest())
	assert.Equal(t, summaryUnavailable, out)
}

func TestSummarizeRawBodyIncluded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Contains(t, in.Prompt, "plain text payload")
		json.NewEncoder(w).Encode(generateResponse{Text: "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	req := &store.CapturedRequest{Method: "POST", RawBody: []byte("plain text payload"), ContentType: "text/plain"}
	assert.Equal(t, "ok", c.Summarize(context.Background(), req))
}

func TestSamplePayloadBuiltins(t *testing.T) {
	c := New("", "")
	for _, provider := range []string{"stripe", "GitHub", "slack", "custom"} {
		payload := c.SamplePayload(context.Background(), provider)
		assert.True(t, json.Valid(payload), "builtin sample for %s must be valid JSON", provider)
	}
}

func TestSamplePayloadRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Text: `{"event":"generated"}`})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	payload := c.SamplePayload(context.Background(), "stripe")
	assert.JSONEq(t, `{"event":"generated"}`, string(payload))
}

func TestSamplePayloadBadRemoteFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Text: "sorry, I can only answer in prose"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	payload := c.SamplePayload(context.Background(), "stripe")
	assert.True(t, json.Valid(payload))
	assert.JSONEq(t, samples["stripe"], string(payload),
		"non-JSON generation output must fall back to the builtin sample")
}
