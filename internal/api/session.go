package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/session"
)

type sessionResponse struct {
	LoggedIn bool   `json:"loggedIn"`
	User     string `json:"user,omitempty"`
	Name     string `json:"name,omitempty"`
}

type loginRequest struct {
	ID string `json:"id"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok, err := s.deps.Session.Current(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("读取登录状态失败")
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "Unable to read the session.")
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{LoggedIn: true, User: id, Name: session.ShortName(id)})
}

func (s *Server) postSession(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntryBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", `Request body must be {"id": "..."}.`)
		return
	}
	if err := s.deps.Session.Login(r.Context(), req.ID); err != nil {
		if errors.Is(err, session.ErrBlankID) {
			respondError(w, http.StatusBadRequest, "invalid_id", "Enter an email or user name.")
			return
		}
		logging.Error().Err(err).Msg("保存登录状态失败")
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "Unable to save the session.")
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{LoggedIn: true, User: req.ID, Name: session.ShortName(req.ID)})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Logout(r.Context()); err != nil {
		logging.Error().Err(err).Msg("清除登录状态失败")
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "Unable to clear the session.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
