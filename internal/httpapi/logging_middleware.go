package httpapi

import (
    "net/http"
    "runtime/debug"
    "time"

    "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "log/slog"
)

// requestLogger logs one line per request at INFO with the matched route
// pattern, so entries for /entries/{id} aggregate under the same key.
func requestLogger(l *slog.Logger) func(next http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
            start := time.Now()

            reqID := chimw.GetReqID(r.Context())
            l.Info("request started",
                "req_id", reqID,
                "method", r.Method,
                "path", r.URL.Path,
                "remote", r.RemoteAddr,
            )

            next.ServeHTTP(ww, r)

            route := r.URL.Path
            if rc := chi.RouteContext(r.Context()); rc != nil {
                if p := rc.RoutePattern(); p != "" {
                    route = p
                }
            }
            l.Info("request complete",
                "req_id", reqID,
                "method", r.Method,
                "route", route,
                "status", ww.Status(),
                "bytes", ww.BytesWritten(),
                "duration", time.Since(start).String(),
            )
        })
    }
}

// recoverer logs panics as ERROR and returns 500.
func recoverer(l *slog.Logger) func(next http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            defer func() {
                if rec := recover(); rec != nil {
                    reqID := chimw.GetReqID(r.Context())
                    l.Error("panic", "req_id", reqID, "err", rec, "stack", string(debug.Stack()))
                    w.WriteHeader(http.StatusInternalServerError)
                }
            }()
            next.ServeHTTP(w, r)
        })
    }
}
