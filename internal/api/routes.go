package api

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Routes returns the API mux wrapped in logging and panic recovery
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.healthz)

	mux.Handle("POST /api/upload", h.rateLimited(http.HandlerFunc(h.upload)))
	mux.Handle("POST /api/files/{id}/reprocess", h.rateLimited(http.HandlerFunc(h.reprocess)))
	mux.HandleFunc("GET /api/files/{id}", h.getFile)
	mux.Handle("POST /api/entities", h.rateLimited(http.HandlerFunc(h.entities)))

	mux.HandleFunc("POST /api/claims", h.createClaim)
	mux.HandleFunc("GET /api/claims", h.listClaims)
	mux.HandleFunc("GET /api/claims/{id}", h.getClaim)
	mux.HandleFunc("GET /api/claims/by-claim-id/{claimId}", h.getClaimByClaimID)
	mux.HandleFunc("PATCH /api/claims/{id}", h.updateClaim)
	mux.HandleFunc("PATCH /api/claims/{id}/status", h.setStatus)
	mux.HandleFunc("DELETE /api/claims/{id}", h.deleteClaim)

	mux.HandleFunc("GET /api/dashboard/stats", h.stats)
	mux.HandleFunc("GET /api/analytics", h.analytics)
	mux.HandleFunc("GET /api/export/claims.csv", h.exportCSV)

	mux.HandleFunc("GET /api/villages", h.villages)
	mux.HandleFunc("GET /api/villages/{name}", h.village)
	mux.HandleFunc("GET /api/boundary", h.boundaryPreview)
	mux.HandleFunc("GET /api/map/features", h.mapFeatures)

	return h.recoverer(h.logRequests(mux))
}

// rateLimited rejects clients that exceed the per-client rate with 429
func (h *Handler) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by remote IP
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.String("client", clientKey(r)),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				h.logger.Error("handler panic", zap.Any("panic", p), zap.String("path", r.URL.Path))
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
