// Package backend 实现“推荐后端”source：一次 GET，过滤与排序由服务端完成。
package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/John-Robertt/wat2watch/internal/domain"
	providerx "github.com/John-Robertt/wat2watch/internal/provider"
	"github.com/John-Robertt/wat2watch/internal/query"
)

const Name = "backend"

type Options struct {
	// URL 是推荐接口的完整地址，例如 http://127.0.0.1:5000/api/recommend。
	URL string
	// Params 是 criteria 字段到 query 参数名的映射；零值使用 query.DefaultFieldNames。
	Params query.FieldNames
}

type Source struct {
	opts Options
	http *http.Client
}

func New(c *http.Client, opts Options) *Source {
	opts.URL = strings.TrimSpace(opts.URL)
	if opts.Params == (query.FieldNames{}) {
		opts.Params = query.DefaultFieldNames
	}
	return &Source{opts: opts, http: c}
}

func (*Source) Name() string          { return Name }
func (*Source) RemoteFiltering() bool { return true }

// Fetch 把 criteria 全部编码为 query 参数，请求一次推荐接口。
func (s *Source) Fetch(ctx context.Context, term string, c domain.FilterCriteria) (providerx.Batch, error) {
	if s.opts.URL == "" {
		return providerx.Batch{}, errors.New("backend.url 未配置")
	}
	u := s.opts.URL
	if q := query.Encode(c, term, s.opts.Params).Encode(); q != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + q
	}

	body, err := providerx.GetJSON(ctx, s.http, Name, providerx.StageRecommend, u)
	if err != nil {
		return providerx.Batch{}, err
	}
	return Parse(body)
}
