package api

import (
	"net/http"
	"strconv"
	"time"

	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/internal/usecase"
	"tcar-claims-service/pkg/apperror"
	"tcar-claims-service/pkg/logger"
	"tcar-claims-service/pkg/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// VersionInfo is reported by /api/version
type VersionInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Env     string `json:"env"`
	Commit  string `json:"commit"`
}

// RouterOptions carries everything the HTTP surface depends on
type RouterOptions struct {
	ClaimService *usecase.ClaimService
	SettingsRepo repository.NotificationSettingsRepository
	Version      VersionInfo
	// UploadsDir is served under /uploads/ when set
	UploadsDir string
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Logger     logger.Logger
}

// NewRouter builds the HTTP router
func NewRouter(opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(recoveryMiddleware(opts.Logger))
	router.Use(metricsMiddleware(opts.Metrics, opts.Logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	}).Methods(http.MethodGet)

	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, opts.Version)
	}).Methods(http.MethodGet)

	NewClaimHandler(opts.ClaimService, opts.Logger).RegisterRoutes(apiRouter)
	NewSettingsHandler(opts.SettingsRepo, opts.Logger).RegisterRoutes(apiRouter)

	if opts.UploadsDir != "" {
		router.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadsDir))),
		).Methods(http.MethodGet)
	}

	return router
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(m *metrics.Metrics, log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			duration := time.Since(start)
			m.RequestDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).
				Observe(duration.Seconds())

			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds())
		})
	}
}

func recoveryMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("Panic recovered",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path)
					respondJSON(w, http.StatusInternalServerError, errorBody{
						Error: "internal server error",
						Code:  apperror.CodeInternal,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
