package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/rfqmatch/internal/adapters/repository"
	service "github.com/okian/rfqmatch/internal/app"
)

// MatchesHandler serves ranking and quoting routes.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// HandleMatch handles POST and GET /rfqs/{rfqID}/matches. Both run the match
// flow, which is idempotent once matches are recorded.
func (h *MatchesHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.match"
	rfqID := chi.URLParam(r, "rfqID")

	recs, err := h.deps.Match(r.Context(), rfqID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, matchesResponse{RFQID: rfqID, Matches: recs})
	case errors.Is(err, repository.ErrRFQNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// HandleSubmitted handles POST /rfqs/{rfqID}/matches/{supplierID}/submitted.
func (h *MatchesHandler) HandleSubmitted(w http.ResponseWriter, r *http.Request) {
	const op = "api.mark_submitted"
	rfqID := chi.URLParam(r, "rfqID")
	supplierID := chi.URLParam(r, "supplierID")

	err := h.deps.MarkSubmitted(r.Context(), rfqID, supplierID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ackResponse{Status: "submitted"})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
