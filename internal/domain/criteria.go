package domain

import "strings"

// SortOrder 是结果排序方式；零值等价于 relevance（保持到达顺序）。
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortRating    SortOrder = "rating"
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
)

// ParseSort 解析排序参数（大小写不敏感）。未知值返回 relevance 与 ok=false。
func ParseSort(s string) (SortOrder, bool) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortRating:
		return SortRating, true
	case SortNewest:
		return SortNewest, true
	case SortOldest:
		return SortOldest, true
	case SortRelevance, "":
		return SortRelevance, true
	default:
		return SortRelevance, false
	}
}

// Normalize 把零值映射为 relevance。
func (s SortOrder) Normalize() SortOrder {
	if s == "" {
		return SortRelevance
	}
	return s
}

// FilterCriteria 是一次提交的筛选条件。
//
// 约束：
// - 所有字段可选；空串 / nil 表示“不限制”
// - 每次提交新建，交给 pipeline 后按值传递，不再修改
// - 不校验数值区间（MinYear > MaxYear 原样透传）
type FilterCriteria struct {
	Keyword   string    `json:"keyword,omitempty"`
	Genre     string    `json:"genre,omitempty"`
	MinYear   *int      `json:"minYear,omitempty"`
	MaxYear   *int      `json:"maxYear,omitempty"`
	MinRating *float64  `json:"minRating,omitempty"`
	Sort      SortOrder `json:"sort,omitempty"`
}

// IsZero 表示所有筛选项都未设置（排序为 relevance）。
func (c FilterCriteria) IsZero() bool {
	return strings.TrimSpace(c.Keyword) == "" &&
		strings.TrimSpace(c.Genre) == "" &&
		c.MinYear == nil && c.MaxYear == nil && c.MinRating == nil &&
		c.Sort.Normalize() == SortRelevance
}

// EffectiveTerm 返回实际搜索词：Keyword 为空时使用 defaultTerm。
func (c FilterCriteria) EffectiveTerm(defaultTerm string) string {
	if k := strings.TrimSpace(c.Keyword); k != "" {
		return k
	}
	return strings.TrimSpace(defaultTerm)
}
