// Package pipeline 实现推荐流程：取数 -> （客户端）过滤 -> 排序 -> 类型截断。
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/metrics"
	"github.com/John-Robertt/wat2watch/internal/provider"
)

// DefaultTerm 是关键词为空时的兜底搜索词。
const DefaultTerm = "movie"

// Pipeline 是无状态的推荐流程；可被多个 goroutine 并发调用。
//
// 约束：
// - 不重试：上游失败直接作为本次调用的终态返回
// - 空结果不是错误（Records 为非 nil 的空切片）
// - 不修改 watchlist 或任何共享状态
type Pipeline struct {
	Source      provider.Source
	DefaultTerm string
	Observer    Observer
}

func New(src provider.Source, defaultTerm string) *Pipeline {
	return &Pipeline{Source: src, DefaultTerm: defaultTerm}
}

// Fetch 执行一次推荐。
func (p *Pipeline) Fetch(ctx context.Context, c domain.FilterCriteria) (domain.Result, error) {
	if p == nil || p.Source == nil {
		return domain.Result{}, errors.New("pipeline 未配置 source")
	}
	started := time.Now()

	defTerm := p.DefaultTerm
	if defTerm == "" {
		defTerm = DefaultTerm
	}
	term := c.EffectiveTerm(defTerm)
	if term == "" {
		term = DefaultTerm
	}
	name := p.Source.Name()

	if p.Observer != nil {
		p.Observer.OnStart(name, term, c)
	}

	res, err := p.run(ctx, term, c)
	dur := time.Since(started)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = domain.ErrorCode(err)
		logging.Debug().Err(err).Str("source", name).Str("term", term).Str("error_code", outcome).Msg("推荐失败")
	case len(res.Records) == 0:
		outcome = "empty"
	}
	metrics.PipelineRuns.WithLabelValues(name, outcome).Inc()
	metrics.PipelineDuration.WithLabelValues(name).Observe(dur.Seconds())

	if p.Observer != nil {
		p.Observer.OnFinish(res, err, dur)
	}
	if err != nil {
		return domain.Result{}, err
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, term string, c domain.FilterCriteria) (domain.Result, error) {
	src := p.Source

	t0 := time.Now()
	batch, err := src.Fetch(ctx, term, c)
	if err != nil {
		return domain.Result{}, err
	}
	recs := batch.Records
	p.phase(PhaseFetch, map[string]any{"candidates": len(recs)}, time.Since(t0))

	if !src.RemoteFiltering() {
		t1 := time.Now()
		before := len(recs)
		recs = Filter(recs, c)
		p.phase(PhaseFilter, map[string]any{"kept": len(recs), "dropped": before - len(recs)}, time.Since(t1))

		t2 := time.Now()
		Sort(recs, c.Sort)
		p.phase(PhaseSort, map[string]any{"order": string(c.Sort.Normalize())}, time.Since(t2))
	}

	out := make([]domain.MovieRecord, 0, len(recs))
	for _, r := range recs {
		r.Genres = domain.TopGenres(r.Genres, domain.MaxGenreTags)
		out = append(out, r)
	}

	return domain.Result{
		Term:    term,
		Source:  src.Name(),
		Records: out,
		Message: batch.Message,
	}, nil
}

func (p *Pipeline) phase(name string, fields map[string]any, dur time.Duration) {
	if p.Observer != nil {
		p.Observer.OnPhaseDone(name, fields, dur)
	}
}
