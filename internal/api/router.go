// Package api serves the family dashboard JSON endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/logger"
)

type Options struct {
	Service Service
	Logger  *log.Logger
}

func NewRouter(opts Options) http.Handler {
	l := opts.Logger
	if l == nil {
		l = logger.With("component", "api")
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(l))

	h := &handler{svc: opts.Service}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": constants.Version})
	})
	r.Get("/status", h.getStatus)
	r.Get("/anomalies", h.getAnomalies)
	r.Route("/activities", func(ar chi.Router) {
		ar.Get("/", h.listActivities)
		ar.Post("/", h.createActivity)
	})
	r.Route("/alerts", func(ar chi.Router) {
		ar.Get("/", h.listAlerts)
		ar.Delete("/", h.clearAlerts)
		ar.Post("/{alertID}/read", h.markRead)
	})
	r.Get("/report/weekly", h.weeklyReport)

	return r
}

func requestLogger(l *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
