package worker

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/warden/pkg/accumulator"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/protocol"
	"github.com/cuemby/warden/pkg/types"
)

// Server exposes a Worker over its HTTP wire contract.
type Server struct {
	worker *Worker
	mux    *http.ServeMux
}

// NewServer builds the Worker's HTTP mux: POST /key, POST /permission,
// PUT /permission, GET /witness/{nonce}, GET /update, GET /sync, plus
// /metrics.
func NewServer(w *Worker) *Server {
	s := &Server{worker: w, mux: http.NewServeMux()}

	s.mux.HandleFunc("/key", s.handleKey)
	s.mux.HandleFunc("/permission", s.handlePermission)
	s.mux.HandleFunc("/witness/", s.handleWitness)
	s.mux.HandleFunc("/update", s.handleUpdate)
	s.mux.HandleFunc("/sync", s.handleSync)
	s.mux.Handle("/metrics", metrics.Handler())

	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the Worker's HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var pub accumulator.PublicKey
	if err := json.NewDecoder(r.Body).Decode(&pub); err != nil {
		writeError(w, protocol.WorkerStatus(protocol.ErrBadRequest), protocol.ErrBadRequest, err.Error())
		return
	}
	if err := s.worker.SetKey(pub); err != nil {
		writeProtocolError(w, protocol.WorkerStatus, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var perm types.Permission
		if err := json.NewDecoder(r.Body).Decode(&perm); err != nil {
			writeError(w, protocol.WorkerStatus(protocol.ErrBadRequest), protocol.ErrBadRequest, err.Error())
			return
		}
		if err := s.worker.AddPermission(perm); err != nil {
			writeProtocolError(w, protocol.WorkerStatus, err)
			return
		}
		metrics.PermissionsTotal.Inc()
		w.WriteHeader(http.StatusOK)

	case http.MethodPut:
		var res protocol.UpdateResponse
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			writeError(w, protocol.WorkerStatus(protocol.ErrBadRequest), protocol.ErrBadRequest, err.Error())
			return
		}
		if err := s.worker.UpdatePermission(res); err != nil {
			writeProtocolError(w, protocol.WorkerStatus, err)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWitness serves GET /witness/{nonce}. A missing nonce is reported as
// 404; everything else about an unkeyed Worker is reported as 403, matching
// every other Worker endpoint.
func (s *Server) handleWitness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/witness/")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, protocol.WorkerStatus(protocol.ErrBadRequest), protocol.ErrBadRequest, "invalid nonce")
		return
	}
	witness, ok, err := s.worker.Witness(types.NewNonce(n))
	if err != nil {
		writeProtocolError(w, protocol.WorkerStatus, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, "no witness for nonce")
		return
	}
	writeJSON(w, http.StatusOK, witness)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	timer := metrics.NewTimer()
	if err := s.worker.Update(); err != nil {
		writeProtocolError(w, protocol.WorkerStatus, err)
		return
	}
	timer.ObserveDuration(metrics.WitnessRefreshDuration)
	componentLogger := log.WithComponent("worker")
	componentLogger.Info().Dur("elapsed", timer.Duration()).Msg("refreshed witnesses")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.worker.Sync(); err != nil {
		writeProtocolError(w, protocol.WorkerStatus, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind protocol.ErrorKind, message string) {
	writeJSON(w, status, map[string]string{"kind": string(kind), "message": message})
}

func writeProtocolError(w http.ResponseWriter, statusFor func(protocol.ErrorKind) int, err error) {
	if perr, ok := err.(*protocol.Error); ok {
		writeError(w, statusFor(perr.Kind), perr.Kind, perr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, protocol.ErrUpstream, err.Error())
}
