package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter installs the common middleware, then mws, then /healthz.
func NewRouter(log *zap.Logger, mws ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(mws...)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func statusFor(o booking.Outcome) int {
	switch o {
	case booking.OutcomeNotFound:
		return http.StatusNotFound
	case booking.OutcomeInvalid:
		return http.StatusBadRequest
	case booking.OutcomeConflict:
		return http.StatusConflict
	case booking.OutcomeUnauthorized:
		return http.StatusUnauthorized
	case booking.OutcomeSuccess:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceErr reports a service error with the status its outcome maps
// to. Internal failures are logged and hidden from the client.
func writeServiceErr(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	o := booking.OutcomeOf(err)
	code := statusFor(o)
	if code == http.StatusInternalServerError {
		if log == nil {
			log = zap.NewNop()
		}
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeErr(w, code, "internal error")
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error(), "outcome": o.String()})
}
