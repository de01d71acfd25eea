package omdb

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/infra/cache"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/metrics"
	providerx "github.com/John-Robertt/wat2watch/internal/provider"
)

// Name 是 source 名，也是缓存目录名。
const Name = "omdb"

const (
	DefaultBaseURL       = "https://www.omdbapi.com/"
	DefaultMaxCandidates = 10
)

// Options 是 OMDb source 的参数。
type Options struct {
	BaseURL string
	APIKey  string
	// Type 是搜索的 type 过滤（默认 movie）；为空时仍按 movie 搜索。
	Type string
	// Plot: short/full，默认 short。
	Plot          string
	MaxCandidates int
	// Cache 非 nil 时启用详情缓存。
	Cache *cache.Store
}

// Source 实现 OMDb 的“搜索 + 并发详情”。
//
// 约束：
// - 一次搜索请求；候选按 imdbID 去重，至多 MaxCandidates 条
// - 详情请求全部并发；任一失败则整体失败（all-or-nothing），其余请求被取消
// - 详情 Response=False 的候选直接跳过（不视为失败）
// - 不做重试；过滤/排序交给 pipeline（RemoteFiltering=false）
type Source struct {
	opts Options
	http *http.Client
}

func New(c *http.Client, opts Options) *Source {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(opts.Type) == "" {
		opts.Type = "movie"
	}
	if opts.Plot != "full" {
		opts.Plot = "short"
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	return &Source{opts: opts, http: c}
}

func (*Source) Name() string          { return Name }
func (*Source) RemoteFiltering() bool { return false }

// Fetch 搜索 term 并取回每个候选的详情，保持搜索结果的到达顺序。
func (s *Source) Fetch(ctx context.Context, term string, _ domain.FilterCriteria) (providerx.Batch, error) {
	if strings.TrimSpace(s.opts.APIKey) == "" {
		return providerx.Batch{}, providerx.ErrMissingAPIKey
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return providerx.Batch{}, errors.New("搜索词不能为空")
	}

	body, err := providerx.GetJSON(ctx, s.http, Name, providerx.StageSearch, s.searchURL(term))
	if err != nil {
		return providerx.Batch{}, err
	}
	ids, err := ParseSearch(body)
	if err != nil {
		return providerx.Batch{}, err
	}
	ids = capIDs(ids, s.opts.MaxCandidates)

	recs := make([]domain.MovieRecord, len(ids))
	found := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			rec, ok, err := s.detail(gctx, id)
			if err != nil {
				return err
			}
			recs[i], found[i] = rec, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return providerx.Batch{}, err
	}

	out := make([]domain.MovieRecord, 0, len(ids))
	for i := range ids {
		if found[i] {
			out = append(out, recs[i])
		}
	}
	return providerx.Batch{Records: out}, nil
}

// Detail 按 IMDb id 查询单条记录；OMDb 返回 Response=False 时为 *NoResultsError。
func (s *Source) Detail(ctx context.Context, id string) (domain.MovieRecord, error) {
	if strings.TrimSpace(s.opts.APIKey) == "" {
		return domain.MovieRecord{}, providerx.ErrMissingAPIKey
	}
	tid, ok := domain.ParseID(id)
	if !ok {
		return domain.MovieRecord{}, errors.New("非法 IMDb id：" + strconv.Quote(id))
	}
	rec, ok, err := s.detail(ctx, tid)
	if err != nil {
		return domain.MovieRecord{}, err
	}
	if !ok {
		return domain.MovieRecord{}, &providerx.NoResultsError{Provider: Name, Message: "Incorrect IMDb ID."}
	}
	return rec, nil
}

// detail 先查缓存，未命中再请求；只缓存 Response=True 的 payload。
func (s *Source) detail(ctx context.Context, id string) (domain.MovieRecord, bool, error) {
	if s.opts.Cache != nil {
		b, hit, err := s.opts.Cache.ReadDetail(Name, id)
		if err != nil {
			logging.Warn().Err(err).Str("id", id).Msg("读取详情缓存失败，改为请求网络")
		}
		if hit {
			if rec, ok, perr := ParseDetail(b); perr == nil && ok {
				metrics.DetailCacheHits.Inc()
				return rec, true, nil
			}
			// 缓存内容损坏：忽略，重新拉取后覆盖。
		}
		metrics.DetailCacheMisses.Inc()
	}

	body, err := providerx.GetJSON(ctx, s.http, Name, providerx.StageDetail, s.detailURL(id))
	if err != nil {
		return domain.MovieRecord{}, false, err
	}
	rec, ok, err := ParseDetail(body)
	if err != nil {
		return domain.MovieRecord{}, false, err
	}
	if ok && s.opts.Cache != nil && !s.opts.Cache.ReadOnly {
		if err := s.opts.Cache.WriteDetail(Name, id, body); err != nil {
			logging.Warn().Err(err).Str("id", id).Msg("写入详情缓存失败")
		}
	}
	return rec, ok, nil
}

func (s *Source) searchURL(term string) string {
	q := url.Values{}
	q.Set("apikey", s.opts.APIKey)
	q.Set("s", term)
	q.Set("type", s.opts.Type)
	return withQuery(s.opts.BaseURL, q)
}

func (s *Source) detailURL(id string) string {
	q := url.Values{}
	q.Set("apikey", s.opts.APIKey)
	q.Set("i", id)
	q.Set("plot", s.opts.Plot)
	return withQuery(s.opts.BaseURL, q)
}

func withQuery(base string, q url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// capIDs 去重并截断到 limit 条（保持顺序）。
func capIDs(ids []string, limit int) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, min(len(ids), limit))
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
