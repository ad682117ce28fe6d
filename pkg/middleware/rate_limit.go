package middleware

import (
	"net"
	"net/http"
	"strings"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/logger"
	"tourbook/pkg/ratelimit"
)

type KeyExtractor func(r *http.Request) string

// ClientIP prefers the first X-Forwarded-For hop and falls back to the remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func RateLimit(limiter ratelimit.Limiter, extract KeyExtractor, log *logger.Logger) func(http.Handler) http.Handler {
	if extract == nil {
		extract = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extract(r)
			allowed, err := limiter.Allow(r.Context(), ratelimit.Key("http", key))
			if err != nil {
				log.Warn("Rate limiter unavailable, allowing request",
					"request_id", RequestID(r.Context()),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				log.Warn("Rate limit exceeded",
					"request_id", RequestID(r.Context()),
					"client", key,
					"path", r.URL.Path,
				)
				writeError(w, apperrors.RateLimited("Rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
