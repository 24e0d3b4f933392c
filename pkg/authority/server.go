package authority

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/protocol"
	"github.com/cuemby/warden/pkg/types"
)

// Server exposes an Authority over its HTTP wire contract.
type Server struct {
	authority *Authority
	mux       *http.ServeMux
}

// NewServer builds the Authority's HTTP mux: GET /key, POST /permission,
// PUT /permission, POST /action, GET /update, GET /sync, plus /metrics.
func NewServer(auth *Authority) *Server {
	s := &Server{authority: auth, mux: http.NewServeMux()}

	s.mux.HandleFunc("/key", s.handleKey)
	s.mux.HandleFunc("/permission", s.handlePermission)
	s.mux.HandleFunc("/action", s.handleAction)
	s.mux.HandleFunc("/update", s.handleUpdate)
	s.mux.HandleFunc("/sync", s.handleSync)
	s.mux.Handle("/metrics", metrics.Handler())

	return s
}

// Handler returns the underlying http.Handler for embedding or for use with
// http.Server directly.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the Authority's HTTP server on addr.
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
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.authority.GetKey())
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var perm types.Permission
		if err := json.NewDecoder(r.Body).Decode(&perm); err != nil {
			writeError(w, protocol.AuthorityStatus(protocol.ErrBadRequest), protocol.ErrBadRequest, err.Error())
			return
		}
		finalized, err := s.authority.AddPermission(perm)
		if err != nil {
			writeProtocolError(w, protocol.AuthorityStatus, err)
			return
		}
		nonceLogger := log.WithNonce(finalized.Nonce.Uint64())
		nonceLogger.Debug().Msg("permission added")
		writeJSON(w, http.StatusOK, finalized)

	case http.MethodPut:
		var req protocol.UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, protocol.AuthorityStatus(protocol.ErrBadRequest), protocol.ErrBadRequest, err.Error())
			return
		}
		resp, err := s.authority.UpdatePermission(req)
		if err != nil {
			writeProtocolError(w, protocol.AuthorityStatus, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req protocol.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, protocol.AuthorityStatus(protocol.ErrBadRequest), protocol.ErrBadRequest, err.Error())
		return
	}
	if err := s.authority.Action(req); err != nil {
		result := "error"
		if perr, ok := err.(*protocol.Error); ok {
			result = string(perr.Kind)
		}
		metrics.ActionRequestsTotal.WithLabelValues(result).Inc()
		writeProtocolError(w, protocol.AuthorityStatus, err)
		return
	}
	metrics.ActionRequestsTotal.WithLabelValues("ok").Inc()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	s.authority.AdvanceStaging()
	componentLogger := log.WithComponent("authority")
	componentLogger.Info().Dur("elapsed", time.Since(start)).Msg("advanced staging")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	s.authority.PromoteUpdating()
	componentLogger := log.WithComponent("authority")
	componentLogger.Info().Dur("elapsed", time.Since(start)).Msg("promoted updating")
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
