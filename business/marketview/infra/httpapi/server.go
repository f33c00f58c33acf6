// Package httpapi serves the read-only market view over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fd1az/oracle-resolver/business/marketview/domain"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/asset"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

// Markets is the part of the market view service the API serves.
type Markets interface {
	List(ctx context.Context) ([]domain.MarketView, error)
	Get(ctx context.Context, id uint64) (domain.MarketView, error)
	PotentialWinnings(ctx context.Context, id uint64, outcome resolutiondomain.Outcome, amount string) (asset.Amount, error)
}

// Server is the market API server.
type Server struct {
	markets Markets
	log     logger.LoggerInterface
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates the API on port.
func NewServer(port int, markets Markets, log logger.LoggerInterface) *Server {
	s := &Server{markets: markets, log: log}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           otelhttp.NewHandler(s.router, "marketview"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1/markets", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{marketId}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Get("/winnings", s.handleWinnings)
		})
	})

	s.router = r
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "market api listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type marketResponse struct {
	domain.MarketView
	YesOddsDisplay string `json:"yesOddsDisplay"`
	NoOddsDisplay  string `json:"noOddsDisplay"`
}

func toResponse(v domain.MarketView) marketResponse {
	return marketResponse{
		MarketView:     v,
		YesOddsDisplay: domain.FormatOdds(v.YesOdds),
		NoOddsDisplay:  domain.FormatOdds(v.NoOdds),
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := s.markets.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]marketResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toResponse(v))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"markets": out,
		"count":   len(out),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	v, err := s.markets.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResponse(v))
}

func (s *Server) handleWinnings(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	outcome, err := resolutiondomain.ParseOutcome(q.Get("outcome"))
	if err != nil {
		s.respondError(w, r, apperror.Validation(apperror.CodeInvalidOutcome, q.Get("outcome")))
		return
	}
	amount := q.Get("amount")
	if amount == "" {
		s.respondError(w, r, apperror.Validation(apperror.CodeRequiredField, "amount"))
		return
	}

	winnings, err := s.markets.PotentialWinnings(r.Context(), id, outcome, amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"marketId": id,
		"outcome":  outcome.String(),
		"amount":   amount,
		"winnings": winnings.ToDecimal(),
		"symbol":   winnings.Token().Symbol(),
	})
}

func marketID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "marketId")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperror.Validation(apperror.CodeInvalidInput, "market id "+strconv.Quote(raw))
	}
	return id, nil
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(apperror.CodeInternalError, "", err)
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "market api request failed", "path", r.URL.Path, "error", err)
	}
	respondJSON(w, appErr.StatusCode, appErr.ToResponse())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
