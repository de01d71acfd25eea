package pipeline

import (
	"time"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

// 阶段名（OnPhaseDone 的 name）。
const (
	PhaseFetch  = "fetch"
	PhaseFilter = "filter"
	PhaseSort   = "sort"
)

// Observer 用于把“阶段/耗时”从 pipeline 中解耦出来（CLI 进度输出使用）。
//
// 约束：
// - pipeline 只发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 实现必须并发安全：HTTP 服务中多个请求可能共用同一个 Observer
type Observer interface {
	OnStart(source, term string, c domain.FilterCriteria)
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	OnFinish(res domain.Result, err error, dur time.Duration)
}
