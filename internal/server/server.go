// Package server exposes the lending engine over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"LendLedger/internal/engine"
	"LendLedger/internal/observability"
	"LendLedger/internal/query"
)

// Server wires the engine and the read-side query service into a chi
// router.
type Server struct {
	engine  *engine.Engine
	queries *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func New(
	eng *engine.Engine,
	queries *query.Service,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	return &Server{
		engine:  eng,
		queries: queries,
		health:  health,
		metrics: metrics,
		logger:  logger,
	}
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/collateral/deposit", s.instrument("deposit", s.handleDeposit))
		v1.Post("/collateral/withdraw", s.instrument("withdraw", s.handleWithdraw))
		v1.Post("/liquidity/supply", s.instrument("supply_liquidity", s.handleSupplyLiquidity))

		v1.Post("/loans/borrow", s.instrument("borrow", s.handleBorrow))
		v1.Post("/loans/increase", s.instrument("increase_borrow", s.handleIncreaseBorrow))
		v1.Post("/loans/repay", s.instrument("repay", s.handleRepay))
		v1.Post("/loans/liquidate", s.instrument("liquidate", s.handleLiquidate))
		v1.Post("/loans/collateral/add", s.instrument("add_collateral", s.handleAddCollateral))
		v1.Post("/loans/collateral/free", s.instrument("free_collateral", s.handleFreeCollateral))

		v1.Get("/assets", s.instrument("assets", s.handleAssets))
		v1.Get("/balance", s.instrument("balance", s.handleBalance))
		v1.Get("/value", s.instrument("value", s.handleValue))
		v1.Get("/loans/active", s.instrument("active_loan", s.handleActiveLoan))
		v1.Get("/loans/quote", s.instrument("liquidation_quote", s.handleLiquidationQuote))
		v1.Get("/loans/owner/{owner}", s.instrument("loans_by_owner", s.handleLoansByOwner))
		v1.Get("/loans/history/{id}", s.instrument("loan_history", s.handleLoanHistory))

		v1.Get("/events", s.instrument("events", s.handleEvents))
		v1.Get("/journal", s.instrument("journal", s.handleJournal))
	})

	return r
}

// instrument wraps a handler with request metrics per endpoint.
func (s *Server) instrument(endpoint string, next func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("encode response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status, reason := classify(err)
	if s.metrics != nil && status < http.StatusInternalServerError {
		s.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("op", op).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{
		"error":  err.Error(),
		"reason": reason,
	})
}
