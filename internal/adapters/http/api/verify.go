package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// VerifyHandler serves business name verification.
type VerifyHandler struct {
	deps VerifyDependencies
}

// NewVerifyHandler creates a new verify handler.
func NewVerifyHandler(deps VerifyDependencies) *VerifyHandler {
	return &VerifyHandler{deps: deps}
}

// HandleVerify handles POST /verify/business-name requests.
func (h *VerifyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	const op = "api.verify_business_name"
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Claimed) == "" || strings.TrimSpace(req.Registered) == "" {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("claimed_name and registered_name are required")))
		return
	}

	writeJSON(w, http.StatusOK, h.deps.VerifyBusinessName(r.Context(), req.Claimed, req.Registered))
}
