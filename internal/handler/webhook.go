package handler

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hookmaster/hookmaster/internal/store"
)

// maxBodyBytes caps how much of an inbound payload is read. Webhook bodies
// are small in practice; anything beyond the cap is truncated rather than
// rejected, since capture must never fail the sender.
const maxBodyBytes = 1 << 20

// CaptureWebhook records any request sent under /hooks/{endpointID}. The
// sender is an uncontrolled third party: it always gets a 200 ack, whether
// or not the endpoint exists and whatever the body looks like. Only a
// failed persistence write produces an error status.
func (h *Handler) CaptureWebhook(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		// Sender hung up mid-body; keep whatever arrived.
		log.Debug().Err(err).Str("endpoint", endpointID).Msg("partial body read")
	}
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	req := &store.CapturedRequest{
		EndpointID:  endpointID,
		Method:      r.Method,
		Path:        r.URL.Path,
		Headers:     flattenHeaders(r.Header),
		Query:       flattenQuery(r.URL.Query()),
		Size:        len(body),
		ContentType: contentType,
	}

	// Structured payloads are kept as parsed JSON; anything else (including
	// a body that claims to be JSON but is not) is stored byte-for-byte.
	if len(body) > 0 {
		if isJSONContentType(contentType) && json.Valid(body) {
			req.Body = json.RawMessage(body)
		} else {
			req.RawBody = body
		}
	}

	if err := h.Store.AppendRequest(r.Context(), req); err != nil {
		log.Error().Err(err).Str("endpoint", endpointID).Msg("persist capture")
		http.Error(w, "failed to store request", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("endpoint", endpointID).
		Str("method", r.Method).
		Int("size", req.Size).
		Msg("webhook received")

	h.Broadcast(endpointID, req)

	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"received": true,
	})
}

func isJSONContentType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// flattenHeaders lists headers as (key, value) pairs. Go's HTTP server
// parses headers into a map, so wire order is gone by the time we see
// them; keys are sorted for deterministic output and multi-valued keys
// keep their received value order as separate entries.
func flattenHeaders(h http.Header) []store.Header {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]store.Header, 0, len(h))
	for _, k := range keys {
		for _, v := range h[k] {
			out = append(out, store.Header{Key: k, Value: v})
		}
	}
	return out
}

// flattenQuery keeps the first value for each key.
func flattenQuery(values url.Values) map[string]string {
	if len(values) == 0 {
		return nil
	}
	q := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			q[k] = vs[0]
		}
	}
	return q
}
