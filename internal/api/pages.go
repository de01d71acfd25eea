package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/provider"
	"github.com/John-Robertt/wat2watch/internal/query"
	"github.com/John-Robertt/wat2watch/internal/render"
	"github.com/John-Robertt/wat2watch/internal/watchlist"
)

// maxFormBody 限制页面表单的请求体。
const maxFormBody = 64 << 10

// page 渲染主页：最近一次搜索的快照 + watchlist + 登录状态。
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs, wlErr := s.deps.Watchlist.List(ctx)
	user, _, err := s.deps.Session.Current(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("读取登录状态失败")
	}

	d := render.NewPageData(s.deps.View.Snapshot(), recs, user)
	if wlErr != nil {
		logging.Warn().Err(wlErr).Msg("读取 watchlist 失败")
		d.WatchlistError = MessageStoreFailed
		if errors.Is(wlErr, watchlist.ErrCorrupt) {
			d.WatchlistError = MessageCorrupt
		}
	}

	var buf bytes.Buffer
	if err := render.Page(&buf, d); err != nil {
		logging.Error().Err(err).Msg("渲染页面失败")
		http.Error(w, "Unable to render the page.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// search 对应搜索表单提交（post/redirect/get）。
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	c := query.FromValues(r.PostForm, query.FormFieldNames)
	snap, applied := s.deps.View.Submit(r.Context(), c)
	logging.Debug().Uint64("token", uint64(snap.Token)).Bool("applied", applied).
		Str("status", string(snap.Status)).Msg("搜索完成")
	redirectHome(w, r)
}

func (s *Server) saveForm(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	id := strings.TrimSpace(r.PostForm.Get("id"))
	rec, err := s.lookup(r.Context(), id)
	if err != nil {
		logging.Warn().Err(err).Str("id", id).Msg("保存失败：找不到条目")
		http.Error(w, "That title is no longer in the results.", http.StatusBadRequest)
		return
	}
	if _, err := s.deps.Watchlist.Add(r.Context(), rec); err != nil && !errors.Is(err, watchlist.ErrAlreadyPresent) {
		formWatchlistError(w, err)
		return
	}
	redirectHome(w, r)
}

func (s *Server) removeForm(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	if err := s.deps.Watchlist.Remove(r.Context(), r.PostForm.Get("id")); err != nil {
		formWatchlistError(w, err)
		return
	}
	redirectHome(w, r)
}

func (s *Server) clearForm(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Watchlist.Clear(r.Context()); err != nil {
		formWatchlistError(w, err)
		return
	}
	redirectHome(w, r)
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	if err := s.deps.Session.Login(r.Context(), r.PostForm.Get("id")); err != nil {
		http.Error(w, "Enter an email or user name.", http.StatusBadRequest)
		return
	}
	redirectHome(w, r)
}

func (s *Server) logoutForm(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Logout(r.Context()); err != nil {
		logging.Error().Err(err).Msg("清除登录状态失败")
		http.Error(w, "Unable to log out.", http.StatusInternalServerError)
		return
	}
	redirectHome(w, r)
}

// lookup 先在当前结果中按 id 查找；找不到时若 source 支持按 id 查详情则回源。
func (s *Server) lookup(ctx context.Context, id string) (domain.MovieRecord, error) {
	if id == "" {
		return domain.MovieRecord{}, watchlist.ErrInvalidEntry
	}
	for _, rec := range s.deps.View.Snapshot().Result.Records {
		if rec.ID == id {
			return rec, nil
		}
	}
	if s.deps.Details != nil {
		return s.deps.Details.Detail(ctx, id)
	}
	if ds, ok := s.deps.Source.(provider.DetailSource); ok {
		return ds.Detail(ctx, id)
	}
	return domain.MovieRecord{}, errors.New("当前结果中没有该条目，且 source 不支持按 id 查询")
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form submission.", http.StatusBadRequest)
		return false
	}
	return true
}

func formWatchlistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watchlist.ErrInvalidEntry):
		http.Error(w, MessageInvalidEntry, http.StatusBadRequest)
	case errors.Is(err, watchlist.ErrCorrupt):
		logging.Warn().Err(err).Msg("watchlist 数据损坏")
		http.Error(w, MessageCorrupt, http.StatusInternalServerError)
	default:
		logging.Error().Err(err).Msg("watchlist 操作失败")
		http.Error(w, MessageStoreFailed, http.StatusInternalServerError)
	}
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
