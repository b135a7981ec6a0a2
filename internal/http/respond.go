package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/intervals"
	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/runner"
	"github.com/hperssn/dojo/internal/sequencer"
	"github.com/hperssn/dojo/internal/storage"
)

var errBadRequest = errors.New("bad request")

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger := log.WithComponent("http")
		logger.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// fail maps a service error onto a status code. Persistence failures are
// logged; the service keeps running.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger := log.WithComponent("http")
		logger.Error().
			Err(err).
			Str(log.FieldRequestID, requestID(r)).
			Str(log.FieldUserID, GetUserID(r)).
			Msg("request failed")
	}
	respondError(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sequencer.ErrNoIntervals),
		errors.Is(err, sequencer.ErrFinished),
		errors.Is(err, domain.ErrDuplicateBPM):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidInterval),
		errors.Is(err, domain.ErrInvalidTempo),
		errors.Is(err, intervals.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTempoNotFound):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrNoUser):
		return http.StatusUnauthorized
	case storage.IsPersistence(err),
		errors.Is(err, runner.ErrRunnerClosed),
		errors.Is(err, runner.ErrManagerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
