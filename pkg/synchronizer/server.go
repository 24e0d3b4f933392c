package synchronizer

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/protocol"
	"github.com/cuemby/warden/pkg/rpc"
	"github.com/cuemby/warden/pkg/types"
	"github.com/google/uuid"
)

// Server exposes a Synchronizer over its client-facing JSON wire contract.
type Server struct {
	sync *Synchronizer
	mux  *http.ServeMux
}

// NewServer builds the Synchronizer's HTTP mux: POST /permission,
// PUT /permission, POST /action, plus /metrics.
func NewServer(s *Synchronizer) *Server {
	srv := &Server{sync: s, mux: http.NewServeMux()}

	srv.mux.HandleFunc("/permission", srv.handlePermission)
	srv.mux.HandleFunc("/action", srv.handleAction)
	srv.mux.Handle("/metrics", metrics.Handler())

	return srv
}

// Handler returns the underlying http.Handler, wrapped with per-request
// correlation-ID logging.
func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

// withRequestID assigns every client-facing request a correlation ID, logs
// its arrival/completion under that ID, and counts the request by path and
// status.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		logger := log.WithRequestID(id)
		logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request received")
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequestsTotal.WithLabelValues("synchronizer", r.URL.Path, strconv.Itoa(rec.status)).Inc()
		logger.Debug().Str("path", r.URL.Path).Int("status", rec.status).Msg("request completed")
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ListenAndServe starts the Synchronizer's HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var actions []types.Action
		if err := json.NewDecoder(r.Body).Decode(&actions); err != nil {
			writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return
		}
		perm, err := s.sync.AddPermission(r.Context(), actions)
		if err != nil {
			writeProtocolError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, perm)

	case http.MethodPut:
		var body struct {
			Perm    types.Permission `json:"perm"`
			Actions []types.Action   `json:"actions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return
		}
		updated, err := s.sync.UpdatePermission(r.Context(), body.Perm, body.Actions)
		if err != nil {
			writeProtocolError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Perm   types.Permission `json:"perm"`
		Action types.Action     `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if err := s.sync.Action(r.Context(), body.Perm, body.Action); err != nil {
		writeProtocolError(w, err)
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

// writeProtocolError relays a service-reported failure (membership, version,
// key errors) at its original status and kind, so a client talking only to
// the Synchronizer sees the same 401/403/404 the Authority or Worker wrote.
// Transport-level failures surface as upstream_error at 502.
func writeProtocolError(w http.ResponseWriter, err error) {
	var rerr *rpc.Error
	if errors.As(err, &rerr) {
		kind := protocol.ErrorKind(rerr.Kind)
		if kind == "" {
			kind = protocol.ErrUpstream
		}
		writeError(w, rerr.Status, kind, rerr.Message)
		return
	}
	var perr *protocol.Error
	if errors.As(err, &perr) {
		writeError(w, http.StatusBadGateway, perr.Kind, perr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, protocol.ErrUpstream, err.Error())
}
