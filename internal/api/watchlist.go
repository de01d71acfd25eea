package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/watchlist"
)

const (
	MessageAlreadySaved = "Already in your watchlist."
	MessageInvalidEntry = "A watchlist entry needs an id and a title."
	MessageCorrupt      = "Saved watchlist data is unreadable. Clear the watchlist to reset it."
	MessageStoreFailed  = "Unable to update the watchlist."
)

// maxEntryBody 限制 POST /api/watchlist 的请求体。
const maxEntryBody = 64 << 10

type watchlistResponse struct {
	Results []domain.MovieRecord `json:"results"`
	Meta    struct {
		Count int `json:"count"`
	} `json:"meta"`
}

func (s *Server) listWatchlist(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Watchlist.List(r.Context())
	if err != nil {
		watchlistError(w, err)
		return
	}
	var resp watchlistResponse
	resp.Results = recs
	resp.Meta.Count = len(recs)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) addWatchlist(w http.ResponseWriter, r *http.Request) {
	var rec domain.MovieRecord
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntryBody))
	if err := dec.Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON movie record.")
		return
	}
	rec = watchlist.Normalize(rec)
	if _, err := s.deps.Watchlist.Add(r.Context(), rec); err != nil {
		watchlistError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) removeWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Watchlist.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		watchlistError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Watchlist.Clear(r.Context()); err != nil {
		watchlistError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func watchlistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watchlist.ErrAlreadyPresent):
		respondError(w, http.StatusConflict, "already_present", MessageAlreadySaved)
	case errors.Is(err, watchlist.ErrInvalidEntry):
		respondError(w, http.StatusBadRequest, "invalid_entry", MessageInvalidEntry)
	case errors.Is(err, watchlist.ErrCorrupt):
		logging.Warn().Err(err).Msg("watchlist 数据损坏")
		respondError(w, http.StatusInternalServerError, domain.ErrCodeStoreCorrupt, MessageCorrupt)
	default:
		logging.Error().Err(err).Msg("watchlist 操作失败")
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternal, MessageStoreFailed)
	}
}
