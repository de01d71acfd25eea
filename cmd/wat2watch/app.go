package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/John-Robertt/wat2watch/internal/app/pipeline"
	"github.com/John-Robertt/wat2watch/internal/config"
	"github.com/John-Robertt/wat2watch/internal/infra/cache"
	"github.com/John-Robertt/wat2watch/internal/infra/httpx"
	"github.com/John-Robertt/wat2watch/internal/infra/kv"
	"github.com/John-Robertt/wat2watch/internal/provider"
	"github.com/John-Robertt/wat2watch/internal/provider/backend"
	"github.com/John-Robertt/wat2watch/internal/provider/omdb"
	"github.com/John-Robertt/wat2watch/internal/query"
	"github.com/John-Robertt/wat2watch/internal/session"
	"github.com/John-Robertt/wat2watch/internal/watchlist"
)

// storeDir 是 badger/file 存储在数据目录下的子目录（与详情缓存 cache/ 并列）。
const storeDir = "store"

// app 按配置装配业务组件；存储延迟打开，search 在存储被占用时仍可运行。
type app struct {
	cfg config.Config

	reg provider.Registry
	src provider.Source

	omdb *omdb.Source

	once   sync.Once
	kv     kv.Store
	kvErr  error
	closed bool
}

func newApp(cfg config.Config) (*app, error) {
	hc, err := httpx.NewClient(httpx.Options{
		ProxyURL:  cfg.HTTP.ProxyURL,
		Timeout:   cfg.HTTP.Timeout,
		RateLimit: cfg.HTTP.RateLimit,
		Burst:     cfg.HTTP.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP client 失败：%w", err)
	}

	omdbOpts := omdb.Options{
		BaseURL:       cfg.OMDb.URL,
		APIKey:        cfg.OMDb.APIKey,
		Type:          cfg.OMDb.Type,
		Plot:          cfg.OMDb.Plot,
		MaxCandidates: cfg.OMDb.MaxCandidates,
	}
	if cfg.OMDb.Cache && cfg.Store.Driver != kv.DriverMemory {
		cs := cache.New(cfg.Store.Path, false, cfg.OMDb.CacheTTL)
		omdbOpts.Cache = &cs
	}
	om := omdb.New(hc, omdbOpts)

	p := cfg.Backend.Params
	be := backend.New(hc, backend.Options{
		URL: cfg.Backend.URL,
		Params: query.FieldNames{
			Keyword:   p.Keyword,
			Genre:     p.Genre,
			MinYear:   p.MinYear,
			MaxYear:   p.MaxYear,
			MinRating: p.MinRating,
			Sort:      p.Sort,
		},
	})

	var sources []provider.Source
	for _, s := range []provider.Source{om, be} {
		if cfg.Breaker.Enabled {
			s = provider.WithBreaker(s, provider.BreakerSettings{
				MinRequests:  cfg.Breaker.MinRequests,
				FailureRatio: cfg.Breaker.FailureRatio,
				OpenTimeout:  cfg.Breaker.OpenTimeout,
			})
		}
		sources = append(sources, s)
	}
	reg, err := provider.NewRegistry(sources...)
	if err != nil {
		return nil, err
	}
	src, err := reg.Lookup(cfg.Source)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, reg: reg, src: src, omdb: om}, nil
}

func (a *app) pipeline() *pipeline.Pipeline {
	return pipeline.New(a.src, a.cfg.DefaultTerm)
}

// details 返回按 id 查详情的 source：优先当前 source，否则退回 OMDb。
func (a *app) details() provider.DetailSource {
	if ds, ok := a.src.(provider.DetailSource); ok {
		return ds
	}
	if s, ok := a.reg.Get(omdb.Name); ok {
		if ds, ok := s.(provider.DetailSource); ok {
			return ds
		}
	}
	return a.omdb
}

func (a *app) store() (kv.Store, error) {
	a.once.Do(func() {
		path := a.cfg.Store.Path
		if a.cfg.Store.Driver != kv.DriverMemory {
			path = filepath.Join(path, storeDir)
		}
		a.kv, a.kvErr = kv.Open(a.cfg.Store.Driver, path)
		if a.kvErr != nil {
			a.kvErr = fmt.Errorf("打开本地存储失败（%s）：%w", path, a.kvErr)
		}
	})
	return a.kv, a.kvErr
}

func (a *app) watchlist() (*watchlist.Store, error) {
	s, err := a.store()
	if err != nil {
		return nil, err
	}
	return watchlist.New(s), nil
}

func (a *app) session() (*session.Store, error) {
	s, err := a.store()
	if err != nil {
		return nil, err
	}
	return session.New(s), nil
}

func (a *app) Close() error {
	if a.kv == nil || a.closed {
		return nil
	}
	a.closed = true
	if err := a.kv.Close(); err != nil {
		return errors.Join(errors.New("关闭本地存储失败"), err)
	}
	return nil
}
