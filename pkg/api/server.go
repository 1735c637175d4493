package api

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/auth"
	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
	"github.com/Veilstone-Labs/fhegate/pkg/engine"
	"github.com/Veilstone-Labs/fhegate/pkg/gate"
	"github.com/Veilstone-Labs/fhegate/pkg/oracle"
	"github.com/Veilstone-Labs/fhegate/pkg/protocol"
)

// Server exposes the gateway over HTTP: the public oracle callback, the
// provider submission/decryption calls, and the owner admin setters.
type Server struct {
	svc      *protocol.Service
	limiter  gate.LimiterStore
	policy   gate.LimiterPolicy
	validate *auth.JWTValidator
}

// NewServer wires the HTTP surface. limiter may be nil, which disables
// flood control on the callback route (single-node dev setups).
func NewServer(svc *protocol.Service, validate *auth.JWTValidator, limiter gate.LimiterStore, policy gate.LimiterPolicy) *Server {
	return &Server{svc: svc, limiter: limiter, policy: policy, validate: validate}
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(oracle.DefaultCallback, s.handleCallback)
	mux.HandleFunc("/v1/submissions", s.handleSubmit)
	mux.HandleFunc("/v1/decryptions", s.handleRequestDecryption)
	mux.HandleFunc("/v1/admin/providers", s.handleSetProvider)
	mux.HandleFunc("/v1/admin/pause", s.handleSetPaused)
	mux.HandleFunc("/v1/admin/cooldown", s.handleSetCooldown)
	mux.HandleFunc("/v1/admin/batches", s.handleBatches)

	return auth.NewMiddleware(s.validate)(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type callbackRequest struct {
	RequestID uint64 `json:"request_id"`
	Cleartext string `json:"cleartext"` // base64
	Proof     string `json:"proof"`     // hex
}

// handleCallback is the inbound oracle boundary. Anyone can reach it with
// arbitrary ids, payloads, and proofs; everything beyond decoding is the
// protocol service's problem.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if s.limiter != nil {
		if err := gate.CheckLimit(r.Context(), s.limiter, r.RemoteAddr, s.policy); err != nil {
			WriteTooManyRequests(w, 60/max(s.policy.RPM, 1))
			return
		}
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "malformed JSON body")
		return
	}
	cleartext, err := base64.StdEncoding.DecodeString(req.Cleartext)
	if err != nil {
		WriteBadRequest(w, "cleartext must be base64")
		return
	}
	proof, err := hex.DecodeString(req.Proof)
	if err != nil {
		WriteBadRequest(w, "proof must be hex")
		return
	}

	event, err := s.svc.HandleCallback(r.Context(), req.RequestID, cleartext, proof)
	if err != nil {
		WriteTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type submitRequest struct {
	Input       string `json:"input"` // base64 encrypted input
	Computation string `json:"computation"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "malformed JSON body")
		return
	}
	input, err := base64.StdEncoding.DecodeString(req.Input)
	if err != nil {
		WriteBadRequest(w, "input must be base64")
		return
	}
	if req.Computation == "" {
		WriteBadRequest(w, "computation is required")
		return
	}

	if err := s.svc.Submit(r.Context(), principal.Actor, engine.Ciphertext(input), req.Computation); err != nil {
		WriteTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "staged"})
}

func (s *Server) handleRequestDecryption(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}

	requestID, err := s.svc.RequestDecryption(r.Context(), principal.Actor)
	if err != nil {
		WriteTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]uint64{"request_id": requestID})
}

func (s *Server) ownerFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return "", false
	}
	if !principal.HasRole(contracts.RoleOwner) {
		WriteForbidden(w, "owner role required")
		return "", false
	}
	return principal.Actor, true
}

type setProviderRequest struct {
	Actor      string `json:"actor"`
	IsProvider bool   `json:"is_provider"`
}

func (s *Server) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	caller, ok := s.ownerFrom(w, r)
	if !ok {
		return
	}
	var req setProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Actor == "" {
		WriteBadRequest(w, "actor is required")
		return
	}
	if err := s.svc.SetProvider(caller, req.Actor, req.IsProvider); err != nil {
		WriteTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	caller, ok := s.ownerFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "malformed JSON body")
		return
	}
	if err := s.svc.SetPaused(caller, req.Paused); err != nil {
		WriteTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetCooldown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	caller, ok := s.ownerFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds < 0 {
		WriteBadRequest(w, "seconds must be a non-negative integer")
		return
	}
	if err := s.svc.SetCooldown(caller, time.Duration(req.Seconds)*time.Second); err != nil {
		WriteTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBatches opens a batch on POST and closes one on DELETE.
func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.ownerFrom(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		id, err := s.svc.OpenBatch(caller)
		if err != nil {
			WriteTaxonomyError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]uint64{"batch_id": id})
	case http.MethodDelete:
		var req struct {
			BatchID uint64 `json:"batch_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BatchID == 0 {
			WriteBadRequest(w, "batch_id is required")
			return
		}
		if err := s.svc.CloseBatch(caller, req.BatchID); err != nil {
			WriteTaxonomyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
	default:
		WriteMethodNotAllowed(w)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
