package health

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/openfed/gridworker/internal/probe"
)

// Server exposes the agent's state on a local HTTP endpoint.
type Server struct {
	port string

	mu          sync.RWMutex
	running     bool
	linkRTTMs   float64
	linkHealthy bool
	speed       *probe.Speed
}

func New(port string) *Server {
	return &Server{port: port}
}

func (s *Server) SetRunning(ok bool) {
	s.mu.Lock()
	s.running = ok
	s.mu.Unlock()
}

// SetLink records the background monitor's smoothed RTT and verdict.
func (s *Server) SetLink(rttMs float64, healthy bool) {
	s.mu.Lock()
	s.linkRTTMs = rttMs
	s.linkHealthy = healthy
	s.mu.Unlock()
}

// SetSpeed records the last full probing session.
func (s *Server) SetSpeed(sp probe.Speed) {
	s.mu.Lock()
	s.speed = &sp
	s.mu.Unlock()
}

func (s *Server) Serve() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	return http.ListenAndServe("127.0.0.1:"+s.port, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"running":      s.running,
		"link_rtt_ms":  s.linkRTTMs,
		"link_healthy": s.linkHealthy,
	}
	if s.speed != nil {
		resp["speed"] = *s.speed
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
