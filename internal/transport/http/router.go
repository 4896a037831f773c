package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cuetime/reservations/internal/app"
)

// ReservationAPI is everything the router needs from the workflow.
type ReservationAPI interface {
	ReservationLister
	ReservationSubmitter
	ReservationApprover
	ReservationRejecter
}

var _ ReservationAPI = (*app.ReservationService)(nil)

type RouterConfig struct {
	Service     ReservationAPI
	Logger      *slog.Logger
	CORSOrigins []string

	// Development exposes error details in 500 responses.
	Development bool

	// Observer and MetricsHandler are optional.
	Observer       HTTPObserver
	MetricsHandler http.Handler

	// Ping backs /ready when set.
	Ping PingFunc
}

// NewRouter wires the public HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins))
	if cfg.Observer != nil {
		r.Use(Metrics(cfg.Observer))
	}

	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HealthHandler)
	if cfg.Ping != nil {
		r.Get("/ready", ReadyHandler(cfg.Ping))
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Get("/reserve", HandleListReservations(cfg.Service, cfg.Development))
	r.Post("/reserve", HandleSubmitReservation(cfg.Service, cfg.Development))
	r.Get("/approve/{"+paramReservationID+"}/{"+paramAdminToken+"}", HandleApprove(cfg.Service, cfg.Development))
	r.Get("/reject/{"+paramReservationID+"}", HandleReject(cfg.Service, cfg.Development))

	return r
}
