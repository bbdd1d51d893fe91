package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"jira-assistant/internal/services"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type generateRequest struct {
	Statement string `json:"statement"`
}

type beginEditRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type draftResponse struct {
	Target services.EditTarget `json:"target"`
	Draft  services.Patch      `json:"draft"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var genErr *services.GenError
	var pubErr *services.PublishError

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrBlankStatement),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrInvalidEditKind):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrBusy),
		errors.Is(err, services.ErrNoProject),
		errors.Is(err, services.ErrNoActiveEdit):
		status = http.StatusConflict
	case errors.As(err, &genErr), errors.As(err, &pubErr):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	session, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return session, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := s.store.Create()
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Generation is not cancelled by a client disconnect
	if _, err := session.Generate(context.WithoutCancel(r.Context()), req.Statement); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req beginEditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := services.ParseEditKind(req.Kind)
	if err != nil {
		s.writeError(w, err)
		return
	}

	target := services.EditTarget{Kind: kind, ID: req.ID}
	draft, err := session.BeginEdit(target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{Target: target, Draft: draft})
}

func (s *Server) handleUpdateEdit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var patch services.Patch
	if !decodeBody(w, r, &patch) {
		return
	}

	draft, err := session.UpdateEdit(patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap := session.Snapshot()
	resp := draftResponse{Draft: draft}
	if snap.ActiveEdit != nil {
		resp.Target = *snap.ActiveEdit
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := session.CancelEdit(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveEdit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	if _, err := session.SaveEdit(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	// Publish is not cancelled by a client disconnect
	if err := session.Publish(context.WithoutCancel(r.Context())); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}
