package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/wat2watch/internal/api"
	"github.com/John-Robertt/wat2watch/internal/app/view"
	"github.com/John-Robertt/wat2watch/internal/logging"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and the recommendation API",
		Long: `启动 HTTP 服务：页面（/）、JSON 接口（/api/...）、/healthz 与 /metrics。
收到 SIGINT/SIGTERM 后优雅退出。`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&c.addr, "addr", "", "监听地址（默认 server.addr）")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	a, err := newApp(c.cfg)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	defer a.Close()

	wl, err := a.watchlist()
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	sess, err := a.session()
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	p := a.pipeline()
	srv := api.New(api.Deps{
		Pipeline:  p,
		Source:    a.src,
		Details:   a.details(),
		View:      view.New(p),
		Watchlist: wl,
		Session:   sess,
	}, api.Options{
		Addr:              c.cfg.Server.Addr,
		CORSOrigins:       c.cfg.Server.CORSOrigins,
		RateLimitRequests: c.cfg.Server.RateLimitRequests,
		RateLimitWindow:   c.cfg.Server.RateLimitWindow,
		ShutdownTimeout:   c.cfg.Server.ShutdownTimeout,
	})

	logging.Debug().Str("source", a.src.Name()).Str("store", c.cfg.Store.Driver).Msg("服务依赖已装配")
	fmt.Fprintf(c.err, "Listening on http://%s\n", c.cfg.Server.Addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	logging.Info().Msg("HTTP 服务已退出")
	return nil
}
