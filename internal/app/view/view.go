// Package view 持有“最近一次提交”的展示状态，并用递增 token 淘汰过期响应。
//
// 约束：
// - 只有最新签发的 token 能提交结果；旧请求的响应直接丢弃
// - 失败提交为显式 error 状态（不带任何记录），不会保留上一次的成功结果
// - 所有方法并发安全
package view

import (
	"context"
	"sync"
	"time"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/metrics"
	"github.com/John-Robertt/wat2watch/internal/provider"
)

// Status 是快照状态。
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusOK      Status = "ok"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Token 标识一次提交；单调递增，0 表示从未提交。
type Token uint64

// Snapshot 是某一时刻的展示状态（按值返回，调用方可随意持有）。
type Snapshot struct {
	Token     Token                 `json:"token"`
	Criteria  domain.FilterCriteria `json:"criteria"`
	Status    Status                `json:"status"`
	Result    domain.Result         `json:"result"`
	Err       string                `json:"error,omitempty"`
	ErrCode   string                `json:"error_code,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Fetcher 是 view 依赖的推荐流程（*pipeline.Pipeline 实现它）。
type Fetcher interface {
	Fetch(ctx context.Context, c domain.FilterCriteria) (domain.Result, error)
}

type View struct {
	fetcher Fetcher
	now     func() time.Time

	mu     sync.Mutex
	issued Token
	snap   Snapshot
}

func New(f Fetcher) *View {
	v := &View{fetcher: f, now: time.Now}
	v.snap = Snapshot{Status: StatusIdle, Result: emptyResult(), UpdatedAt: v.now()}
	return v
}

// Snapshot 返回当前状态的副本。
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneSnapshot(v.snap)
}

// Begin 签发新 token，并把状态切到 loading。
func (v *View) Begin(c domain.FilterCriteria) Token {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issued++
	v.snap = Snapshot{
		Token:     v.issued,
		Criteria:  c,
		Status:    StatusLoading,
		Result:    emptyResult(),
		UpdatedAt: v.now(),
	}
	return v.issued
}

// Commit 应用 token 对应的结果；token 不是最新签发的则丢弃并返回 false。
func (v *View) Commit(tok Token, res domain.Result, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if tok != v.issued || tok == 0 {
		metrics.StaleResponses.Inc()
		logging.Debug().Uint64("token", uint64(tok)).Uint64("latest", uint64(v.issued)).Msg("丢弃过期响应")
		return false
	}
	v.snap = settle(v.snap, res, err, v.now())
	return true
}

// Submit = Begin + Fetch + Commit。
// 返回本次提交的结果快照；applied=false 表示期间已有更新的提交，快照未写入 View。
func (v *View) Submit(ctx context.Context, c domain.FilterCriteria) (snap Snapshot, applied bool) {
	tok := v.Begin(c)
	res, err := v.fetcher.Fetch(ctx, c)
	applied = v.Commit(tok, res, err)

	v.mu.Lock()
	defer v.mu.Unlock()
	if applied {
		return cloneSnapshot(v.snap), true
	}
	return settle(Snapshot{Token: tok, Criteria: c}, res, err, v.now()), false
}

func settle(base Snapshot, res domain.Result, err error, at time.Time) Snapshot {
	out := Snapshot{Token: base.Token, Criteria: base.Criteria, UpdatedAt: at}
	switch {
	case err != nil:
		out.Status = StatusError
		out.Result = emptyResult()
		out.Err = provider.UserMessage(err)
		out.ErrCode = domain.ErrorCode(err)
	case len(res.Records) == 0:
		out.Status = StatusEmpty
		out.Result = res
		out.Result.Records = []domain.MovieRecord{}
	default:
		out.Status = StatusOK
		out.Result = res
	}
	return out
}

func emptyResult() domain.Result {
	return domain.Result{Records: []domain.MovieRecord{}}
}

func cloneSnapshot(s Snapshot) Snapshot {
	recs := make([]domain.MovieRecord, len(s.Result.Records))
	copy(recs, s.Result.Records)
	s.Result.Records = recs
	return s
}
