package provider

import (
	"context"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

// Batch 是一次上游请求得到的候选结果。
type Batch struct {
	Records []domain.MovieRecord
	// Message 是上游附带的说明（例如推荐接口的 meta.message），可为空。
	Message string
}

// Source 把“上游 API 变化”限制在 provider 包内部；pipeline 只依赖统一接口与稳定的 MovieRecord。
//
// 约束：
// - Fetch 不做重试（失败直接返回，由用户重新提交）
// - payload -> MovieRecord 的解析必须是纯函数：相同输入 => 相同输出
// - 非 2xx 返回 *HTTPStatusError；上游明确表示“无结果”返回 *NoResultsError
// - RemoteFiltering()==true 表示上游已按 criteria 过滤/排序，pipeline 不再重复处理
type Source interface {
	Name() string
	RemoteFiltering() bool
	Fetch(ctx context.Context, term string, c domain.FilterCriteria) (Batch, error)
}

// DetailSource 可按 IMDb id 查询单条记录（CLI watchlist add 使用）。
type DetailSource interface {
	Detail(ctx context.Context, id string) (domain.MovieRecord, error)
}
