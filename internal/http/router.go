// Package httpapi exposes the timer, interval store and history over HTTP.
package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/runner"
)

type Config struct {
	Auth           Auth
	RateLimit      int // requests per minute per client IP, 0 disables
	ServiceName    string
	TracerProvider trace.TracerProvider // nil uses the global provider
}

func NewRouter(manager *runner.Manager, cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(rateLimit(cfg.RateLimit, time.Minute))
		}
		r.Use(cfg.Auth.Middleware)

		r.Get("/timer", getTimer(manager))
		r.Post("/timer/start", timerCommand(manager, (*runner.Runner).Start))
		r.Post("/timer/pause", timerCommand(manager, func(rn *runner.Runner) error {
			rn.Pause()
			return nil
		}))
		r.Post("/timer/skip", timerCommand(manager, (*runner.Runner).Skip))
		r.Post("/timer/restart", timerCommand(manager, func(rn *runner.Runner) error {
			rn.Restart(nil)
			return nil
		}))
		r.Get("/timer/events", StreamTimerEvents(manager))
		r.Get("/metronome", getMetronome(manager))

		r.Get("/intervals", listIntervals(manager))
		r.Put("/intervals", saveIntervals(manager))
		r.Post("/intervals", addInterval(manager))
		r.Put("/intervals/{idx}", updateInterval(manager))
		r.Delete("/intervals/{idx}", deleteInterval(manager))
		r.Post("/intervals/{idx}/copy", copyInterval(manager))
		r.Post("/intervals/{idx}/move", moveInterval(manager))

		r.Get("/tempos", listTempos(manager))
		r.Post("/tempos", addTempo(manager))
		r.Delete("/tempos/{id}", deleteTempo(manager))

		r.Get("/history", getHistory(manager))
		r.Get("/history/stats", getHistoryStats(manager))
	})

	service := cfg.ServiceName
	if service == "" {
		service = "dojo"
	}
	opts := []otelhttp.Option{
		otelhttp.WithFilter(shouldTrace),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	return otelhttp.NewHandler(r, service, opts...)
}

func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return false
	}
	return true
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			respondError(w, "rate limit exceeded", http.StatusTooManyRequests)
		}),
	)
}

func requestLogger(next http.Handler) http.Handler {
	logger := log.WithComponent("http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.Debug().
			Str(log.FieldRequestID, requestID(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
