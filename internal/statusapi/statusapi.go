// Package statusapi is a small read-only HTTP surface over kernel.QueryAPI:
// /healthz, /vmstat, /process-smi, and /processes/<name>.
package statusapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mike-jgo/csopesy-mp/internal/kernel"
	"github.com/mike-jgo/csopesy-mp/internal/telemetry"
)

// Server serves read-only JSON snapshots of kernel state.
type Server struct {
	addr string
	q    *kernel.QueryAPI
	srv  *http.Server
}

// New builds a Server bound to addr (e.g. "127.0.0.1:9090").
func New(addr string, q *kernel.QueryAPI) *Server {
	return &Server{addr: addr, q: q}
}

// Start builds the mux and serves until the process exits or Shutdown is
// called. It blocks, so callers run it in its own goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "module": "csopesysim"})
	})

	mux.HandleFunc("/vmstat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.q.VMStat())
	})

	mux.HandleFunc("/process-smi", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.q.Processes())
	})

	mux.HandleFunc("/processes/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/processes/"):]
		if name == "" {
			http.Error(w, "missing process name", http.StatusBadRequest)
			return
		}
		p, ok := s.q.FindProcess(name)
		if !ok {
			http.Error(w, fmt.Sprintf("no such process %q", name), http.StatusNotFound)
			return
		}
		writeJSON(w, p)
	})

	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	telemetry.For("statusapi").WithField("addr", s.addr).Info("status api listening")
	return s.srv.ListenAndServe()
}

// Shutdown stops the server immediately.
func (s *Server) Shutdown() {
	if s.srv != nil {
		s.srv.Close()
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
