// Package httpapi is the local control API of the monitor daemon.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/daemon"
	"github.com/farmstock/stockmon/internal/domain"
)

// Scheduler is the part of the poller the API drives.
type Scheduler interface {
	State() daemon.PollerState
	Next() time.Time
	TriggerAsync(ctx context.Context) error
	Reconcile(ctx context.Context, settings domain.NotificationSettings)
}

// SettingsService reads and writes notification settings.
type SettingsService interface {
	Load(ctx context.Context) domain.NotificationSettings
	Save(ctx context.Context, settings domain.NotificationSettings) error
}

// Deps are the handler dependencies.
type Deps struct {
	// BaseContext outlives single requests; manual checks and schedule
	// changes run under it.
	BaseContext context.Context
	Scheduler   Scheduler
	Settings    SettingsService
	State       func() domain.DaemonState
	Version     string
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter creates the chi router with middleware and routes.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	if len(d.CORSOrigins) > 0 {
		c := corslib.New(corslib.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		})
		r.Use(c.Handler)
	}

	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	h := &handler{deps: d}

	r.Get("/health", h.health)
	r.Get("/status", h.status)
	r.Post("/check", h.check)
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.getSettings)
		r.Put("/", h.putSettings)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NewServer wraps the router in an http.Server bound to addr.
func NewServer(addr string, d Deps) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
