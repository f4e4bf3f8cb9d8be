package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CORS answers cross-origin requests. A "*" entry allows any origin without
// credentials; otherwise only listed origins are echoed back, with
// credentials allowed. Preflight requests stop here with 204.
func CORS(next http.Handler, allowedOrigins []string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	wildcard := allowed["*"]

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		origin := r.Header.Get("Origin")
		switch {
		case wildcard:
			hdr.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Access-Control-Allow-Credentials", "true")
		}
		if !wildcard {
			hdr.Add("Vary", "Origin")
		}
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
		hdr.Set("Access-Control-Expose-Headers", "X-Request-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLog tags every request with an id, echoed in X-Request-Id, and logs
// it once the response is written. An incoming X-Request-Id is reused.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Infof("[%s] %s %s %d %s", reqID, r.Method, r.URL.RequestURI(), rec.status, time.Since(start))
	})
}
