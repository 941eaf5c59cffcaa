package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"gca-engine/vehicle"
)

// Server hosts the operator HTTP API and the websocket status feed. The
// engine injects callbacks so the transport stays free of pipeline state.
type Server struct {
	Hub *Hub
	log zerolog.Logger

	// Status returns the current pipeline snapshot for GET /status.
	Status func() any
	// SubmitTarget hands an operator target to the mode arbiter.
	SubmitTarget func(vehicle.Target) error
	// SetSafe raises or clears the safe-state latch.
	SetSafe func(bool) error
}

func NewServer(log zerolog.Logger) *Server {
	return &Server{
		Hub: NewHub(log),
		log: log.With().Str("component", "web").Logger(),
	}
}

func (s *Server) Start(listen string) error {
	go s.Hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.Hub, w, r)
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/target", s.handleTarget)
	mux.HandleFunc("/safe", s.handleSafe)

	srv := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.log.Info().Str("listen", listen).Msg("operator server listening")
	return srv.ListenAndServe()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Status == nil {
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Status())
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.SubmitTarget == nil {
		http.Error(w, "target submission unavailable", http.StatusServiceUnavailable)
		return
	}
	var t vehicle.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, "bad target: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.SubmitTarget(t); err != nil {
		s.log.Warn().Err(err).Msg("target rejected")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSafe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.SetSafe == nil {
		http.Error(w, "safe control unavailable", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Safe bool `json:"safe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.SetSafe(req.Safe); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
