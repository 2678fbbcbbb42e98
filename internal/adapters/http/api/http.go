// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/rfqmatch/internal/adapters/http/swagger"
	"github.com/okian/rfqmatch/internal/domain/identity"
	"github.com/okian/rfqmatch/internal/domain/model"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	MatchDependencies
	VerifyDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler
	verifyHandler  *VerifyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		matchesHandler: NewMatchesHandler(deps),
		verifyHandler:  NewVerifyHandler(deps),
	}
}

// Router returns a chi router with every route attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/rfqs/{rfqID}/matches", func(r chi.Router) {
		r.Post("/", s.matchesHandler.HandleMatch)
		r.Get("/", s.matchesHandler.HandleMatch)
		r.Post("/{supplierID}/submitted", s.matchesHandler.HandleSubmitted)
	})
	r.Post("/verify/business-name", s.verifyHandler.HandleVerify)

	swagger.Register(r)

	return r
}

// matchesResponse is the body returned by the match routes.
type matchesResponse struct {
	RFQID   string                      `json:"rfq_id"`
	Matches []model.MatchRecommendation `json:"matches"`
}

type verifyRequest struct {
	Claimed    string `json:"claimed_name"`
	Registered string `json:"registered_name"`
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MatchDependencies is the matching surface used by MatchesHandler.
type MatchDependencies interface {
	Match(ctx context.Context, rfqID string) ([]model.MatchRecommendation, error)
	MarkSubmitted(ctx context.Context, rfqID, supplierID string) error
}

// VerifyDependencies is the name verification surface used by VerifyHandler.
type VerifyDependencies interface {
	VerifyBusinessName(ctx context.Context, claimed, registered string) identity.Result
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
