package httpapi

import (
	"net/http"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/logging"
)

// LoggingMiddleware logs every inbound request, matching the teacher's
// LoggingMiddleware shape.
func LoggingMiddleware(next http.Handler) http.Handler {
	log := logging.New("httpapi")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Info("request", logging.Fields{"method": r.Method, "path": r.URL.Path, "remote": r.RemoteAddr})
		next.ServeHTTP(w, r)
	})
}
