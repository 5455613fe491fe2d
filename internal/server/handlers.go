package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quorum/internal/council"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, council.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, council.ErrNoPendingDecision):
		return "no_pending_decision"
	case errors.Is(err, council.ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, council.ErrNotEscalated):
		return "not_escalated"
	case errors.Is(err, council.ErrAlreadyAdopted):
		return "already_adopted"
	}
	return ""
}

// writeCouncilError maps the core sentinels onto transport codes.
func writeCouncilError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, council.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, council.ErrNoPendingDecision):
		writeError(w, http.StatusConflict, "no_pending_decision", err.Error())
	case errors.Is(err, council.ErrInvalidOption):
		writeError(w, http.StatusUnprocessableEntity, "invalid_option", err.Error())
	case errors.Is(err, council.ErrNotEscalated):
		writeError(w, http.StatusConflict, "not_escalated", err.Error())
	case errors.Is(err, council.ErrAlreadyAdopted):
		writeError(w, http.StatusConflict, "already_adopted", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "", err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	Mission         string `json:"mission"`
	Profile         string `json:"profile"`
	MaxRounds       int    `json:"max_rounds"`
	DecisionTimeout string `json:"decision_timeout"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	cfg := council.SessionConfig{
		Mission:         req.Mission,
		Profile:         req.Profile,
		MaxRounds:       req.MaxRounds,
		DecisionTimeout: s.opts.DecisionTimeout,
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = s.opts.MaxRounds
	}
	if req.DecisionTimeout != "" {
		d, err := time.ParseDuration(req.DecisionTimeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid decision_timeout")
			return
		}
		cfg.DecisionTimeout = d
	}

	id, err := s.opts.Registry.Create(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.log.Info("session created", zap.String("session", id))
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.opts.Registry.Sessions()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.opts.Registry.Snapshot(r.PathValue("id"))
	if err != nil {
		writeCouncilError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// the engine outlives the request that launched it
	if err := s.opts.Registry.Start(context.Background(), id); err != nil {
		writeCouncilError(w, err)
		return
	}
	s.log.Info("session started", zap.String("session", id))
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id, "status": "running"})
}

type decisionRequest struct {
	Value string `json:"value"`
	Note  string `json:"note"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := s.opts.Registry.SubmitDecision(id, req.Value, req.Note); err != nil {
		writeCouncilError(w, err)
		return
	}
	s.recordDecision(id, "gate", req.Value, req.Note)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "decision": req.Value})
}

type escalationRequest struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

func (s *Server) handleEscalation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req escalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	var payload *council.Proposal
	if req.Payload != nil {
		p := council.ProposalFromMap(req.Payload)
		payload = &p
	}
	if err := s.opts.Registry.ResolveEscalation(id, req.Action, payload); err != nil {
		writeCouncilError(w, err)
		return
	}
	s.recordDecision(id, "escalation", req.Action, "")
	// the terminal snapshot was archived before the resolution landed
	if s.opts.Store != nil {
		if snap, err := s.opts.Registry.Snapshot(id); err == nil {
			if err := s.opts.Store.SaveSnapshot(snap); err != nil {
				s.log.Warn("snapshot rewrite failed", zap.String("session", id), zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "action": req.Action})
}

func (s *Server) recordDecision(id, gate, value, note string) {
	if s.opts.Store == nil {
		return
	}
	if err := s.opts.Store.RecordDecision(id, gate, value, note); err != nil {
		s.log.Warn("decision audit write failed", zap.String("session", id), zap.Error(err))
	}
}
