package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/logger"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR. A panic raised after the
// handler already started writing only gets logged.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("Panic recovered",
					"request_id", RequestID(r.Context()),
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				if !tracked.written {
					writeError(w, apperrors.Internal("Internal server error", fmt.Errorf("panic: %v", rec)))
				}
			}()

			next.ServeHTTP(tracked, r)
		})
	}
}
