package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hookmaster/hookmaster/internal/store"
)

// The admin API is consumed by a polling client: reads are side-effect-free
// and errors are transient from the client's point of view (it retries on
// its next poll cycle).

func (h *Handler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	eps, err := h.Store.ListEndpoints(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list endpoints")
		http.Error(w, "failed to list endpoints", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, eps)
}

type createEndpointRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *Handler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var in createEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.Name == "" {
		in.Name = "Untitled Endpoint"
	}

	ep, err := h.Store.CreateEndpoint(r.Context(), in.Name, in.Color)
	if err != nil {
		log.Error().Err(err).Msg("create endpoint")
		http.Error(w, "failed to create endpoint", http.StatusInternalServerError)
		return
	}

	log.Info().Str("endpoint", ep.ID).Str("name", ep.Name).Msg("endpoint created")
	respondJSON(w, http.StatusCreated, ep)
}

func (h *Handler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "endpointID")
	// Cascade: the endpoint and all of its requests go in one atomic
	// write. Deleting an absent id is a success.
	if err := h.Store.DeleteEndpoint(r.Context(), id); err != nil {
		log.Error().Err(err).Str("endpoint", id).Msg("delete endpoint")
		http.Error(w, "failed to delete endpoint", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "endpointID")
	reqs, err := h.Store.ListRequests(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("endpoint", id).Msg("list requests")
		http.Error(w, "failed to list requests", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}

func (h *Handler) ClearRequests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "endpointID")
	if err := h.Store.ClearRequests(r.Context(), id); err != nil {
		log.Error().Err(err).Str("endpoint", id).Msg("clear requests")
		http.Error(w, "failed to clear requests", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeRequest asks the external text-generation collaborator for a
// summary of one captured request. Collaborator trouble is not an error:
// the client gets placeholder text either way.
func (h *Handler) AnalyzeRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	req, err := h.Store.GetRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("request", id).Msg("load request")
		http.Error(w, "failed to load request", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"analysis": h.Analyzer.Summarize(r.Context(), req),
	})
}

// SamplePayload returns a sample webhook body for a provider name, for the
// test console. Always succeeds; falls back to built-in samples.
func (h *Handler) SamplePayload(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	respondJSON(w, http.StatusOK, h.Analyzer.SamplePayload(r.Context(), provider))
}
