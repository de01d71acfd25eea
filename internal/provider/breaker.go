package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/metrics"
)

// BreakerSettings 是熔断参数。
type BreakerSettings struct {
	// MinRequests 是统计窗口内判定熔断前的最少请求数。
	MinRequests uint32
	// FailureRatio 达到该失败率即打开熔断。
	FailureRatio float64
	// OpenTimeout 是打开状态持续多久后进入半开。
	OpenTimeout time.Duration
	// Interval 是关闭状态下计数清零的周期；0 表示不清零。
	Interval time.Duration
}

// breakerSource 在 Source 外包一层熔断：上游持续失败时快速失败，恢复后自动放行。
//
// 约束：
// - 熔断打开时返回 ErrUpstreamUnavailable，不发请求、不重试
// - 只有传输失败与 5xx 计为失败；无结果、4xx、缺 key、ctx 取消不影响熔断统计
type breakerSource struct {
	inner Source
	cb    *gobreaker.CircuitBreaker[Batch]
}

// breakerDetailSource 只在 inner 实现 DetailSource 时使用，详情请求走独立的熔断器。
type breakerDetailSource struct {
	*breakerSource
	detail DetailSource
	dcb    *gobreaker.CircuitBreaker[domain.MovieRecord]
}

// WithBreaker 返回带熔断的 Source；仅当 inner 实现 DetailSource 时结果才实现 DetailSource。
func WithBreaker(inner Source, s BreakerSettings) Source {
	name := inner.Name() + "-api"
	metrics.BreakerState.WithLabelValues(name).Set(0)

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			trip := ratio >= s.FailureRatio
			if trip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_ratio", ratio).Msg("熔断打开")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("熔断状态变化")
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		IsSuccessful: countsAsSuccess,
	}

	b := &breakerSource{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[Batch](st),
	}
	ds, ok := inner.(DetailSource)
	if !ok {
		return b
	}
	dst := st
	dst.Name = name + "-detail"
	metrics.BreakerState.WithLabelValues(dst.Name).Set(0)
	return &breakerDetailSource{
		breakerSource: b,
		detail:        ds,
		dcb:           gobreaker.NewCircuitBreaker[domain.MovieRecord](dst),
	}
}

func (b *breakerSource) Name() string          { return b.inner.Name() }
func (b *breakerSource) RemoteFiltering() bool { return b.inner.RemoteFiltering() }

func (b *breakerSource) Fetch(ctx context.Context, term string, c domain.FilterCriteria) (Batch, error) {
	out, err := b.cb.Execute(func() (Batch, error) {
		return b.inner.Fetch(ctx, term, c)
	})
	return out, mapBreakerErr(err)
}

func (b *breakerDetailSource) Detail(ctx context.Context, id string) (domain.MovieRecord, error) {
	out, err := b.dcb.Execute(func() (domain.MovieRecord, error) {
		return b.detail.Detail(ctx, id)
	})
	return out, mapBreakerErr(err)
}

// BreakerState 返回 src 的熔断状态（closed/half-open/open）；未启用熔断时 ok=false。
func BreakerState(src Source) (state string, ok bool) {
	switch b := src.(type) {
	case *breakerSource:
		return b.cb.State().String(), true
	case *breakerDetailSource:
		return b.cb.State().String(), true
	default:
		return "", false
	}
}

// Unwrap 返回被包装的 Source。
func (b *breakerSource) Unwrap() Source { return b.inner }

func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return err
}

func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var hs *HTTPStatusError
	if errors.As(err, &hs) {
		return hs.StatusCode < 500
	}
	switch domain.ErrorCode(err) {
	case domain.ErrCodeNoResults, domain.ErrCodeMissingAPIKey, domain.ErrCodeCanceled, domain.ErrCodeParseFailed:
		return true
	}
	return false
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
