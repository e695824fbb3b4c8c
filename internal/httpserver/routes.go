package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.HandleHealthCheck)

	s.router.Group(func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)

		r.Post("/send_email", s.HandleSendEmail)
		r.Post("/command", s.HandleCommand)
		r.Get("/outcomes", s.HandleListOutcomes)
		r.Get("/deliveries", s.HandleListDeliveries)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not Found: " + r.URL.Path})
	})
}

// apiKeyMiddleware rejects requests whose X-API-KEY header does not
// match the configured key.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.checkAPIKey(r) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkAPIKey(r *http.Request) bool {
	if s.deps.APIKey == "" {
		return false
	}
	got := r.Header.Get("X-API-KEY")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.APIKey)) == 1
}

// HandleHealthCheck reports that the process is up.
func (s *Server) HandleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
