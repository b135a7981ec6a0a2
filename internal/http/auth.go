package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hperssn/dojo/internal/log"
)

type contextKey string

const UserIDKey contextKey = "userId"

// Auth resolves the user of a request. Bearer tokens are checked first, then
// the headers set by an authenticating reverse proxy.
type Auth struct {
	Tokens  map[string]string // token -> user id
	DevUser string            // used when nothing identifies the caller; empty rejects
}

func (a Auth) Middleware(next http.Handler) http.Handler {
	logger := log.WithComponent("auth")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := a.resolve(r)
		if !ok {
			logger.Warn().Str(log.FieldRequestID, requestID(r)).Msg("rejected bearer token")
			respondError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if userID == "" {
			userID = a.DevUser
			if userID == "" {
				logger.Warn().Str(log.FieldRequestID, requestID(r)).Msg("authentication failed: no user header found")
				respondError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			logger.Debug().Str(log.FieldUserID, userID).Msg("no auth header, using dev user")
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve returns ok=false only for a bearer token that matches no user.
func (a Auth) resolve(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		for known, user := range a.Tokens {
			if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
				return user, true
			}
		}
		return "", false
	}

	// Traefik BasicAuth sets X-Auth-User; the others are common alternatives
	for _, header := range []string{"X-Auth-User", "X-Forwarded-User", "Remote-User"} {
		if user := strings.TrimSpace(r.Header.Get(header)); user != "" {
			return user, true
		}
	}
	return "", true
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}
