// Package api 提供 HTTP 服务：JSON 接口（兼容原推荐接口）与服务端渲染的页面。
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/John-Robertt/wat2watch/internal/app/view"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/provider"
	"github.com/John-Robertt/wat2watch/internal/session"
	"github.com/John-Robertt/wat2watch/internal/watchlist"
)

// Deps 是 handler 依赖的业务组件。
type Deps struct {
	// Pipeline 执行推荐（*pipeline.Pipeline）。
	Pipeline view.Fetcher
	// Source 用于健康检查中的熔断状态与按 id 查详情（可选能力）。
	Source provider.Source
	// Details 按 id 查详情（保存不在当前结果中的条目）；nil 时退回 Source 自身的能力。
	Details   provider.DetailSource
	View      *view.View
	Watchlist *watchlist.Store
	Session   *session.Store
}

// Options 是服务参数。
type Options struct {
	Addr              string
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{deps: deps, opts: opts}
}

// Handler 返回完整路由。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(observe)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(s.opts.CORSOrigins))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.opts.RateLimitRequests, s.opts.RateLimitWindow))

		r.Get("/recommend", s.recommend)

		r.Get("/watchlist", s.listWatchlist)
		r.Post("/watchlist", s.addWatchlist)
		r.Delete("/watchlist", s.clearWatchlist)
		r.Delete("/watchlist/{id}", s.removeWatchlist)

		r.Get("/session", s.getSession)
		r.Post("/session", s.postSession)
		r.Delete("/session", s.deleteSession)
	})

	r.Get("/", s.page)
	r.Post("/search", s.search)
	r.Get("/watchlist", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/#watchlist", http.StatusSeeOther)
	})
	r.Post("/watchlist/save", s.saveForm)
	r.Post("/watchlist/remove", s.removeForm)
	r.Post("/watchlist/clear", s.clearForm)
	r.Post("/login", s.loginForm)
	r.Post("/logout", s.logoutForm)

	return r
}

// ListenAndServe 运行服务直到 ctx 结束，然后在 ShutdownTimeout 内优雅退出。
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.opts.Addr).Msg("HTTP 服务启动")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info().Dur("timeout", s.opts.ShutdownTimeout).Msg("HTTP 服务关闭中")
	sctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.deps.Source != nil {
		resp.Source = s.deps.Source.Name()
		if st, ok := provider.BreakerState(s.deps.Source); ok {
			resp.Breaker = st
			if st != "closed" {
				resp.Status = "degraded"
			}
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status  string `json:"status"`
	Source  string `json:"source,omitempty"`
	Breaker string `json:"breaker,omitempty"`
}
