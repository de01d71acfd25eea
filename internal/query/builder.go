// Package query 在表单/URL 参数与 domain.FilterCriteria 之间转换。
//
// 约束：
// - 纯函数，无副作用
// - 空白输入一律视为“未设置”
// - 数值无法解析时视为未设置，不报错
// - 不做区间校验（minYear > maxYear 原样透传）
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

// FieldNames 是每个筛选项对应的参数名。
type FieldNames struct {
	Keyword   string
	Genre     string
	MinYear   string
	MaxYear   string
	MinRating string
	Sort      string
}

// DefaultFieldNames 是推荐接口使用的参数名。
var DefaultFieldNames = FieldNames{
	Keyword:   "q",
	Genre:     "genre",
	MinYear:   "minYear",
	MaxYear:   "maxYear",
	MinRating: "minRating",
	Sort:      "sort",
}

// FormFieldNames 是 HTML 搜索表单的输入名。
var FormFieldNames = FieldNames{
	Keyword:   "keywords",
	Genre:     "genre",
	MinYear:   "year-from",
	MaxYear:   "year-to",
	MinRating: "min-rating",
	Sort:      "sort-order",
}

// FromValues 读取 v 中的筛选项并构造 FilterCriteria。
func FromValues(v url.Values, names FieldNames) domain.FilterCriteria {
	sort, _ := domain.ParseSort(get(v, names.Sort))
	return domain.FilterCriteria{
		Keyword:   get(v, names.Keyword),
		Genre:     get(v, names.Genre),
		MinYear:   parseInt(get(v, names.MinYear)),
		MaxYear:   parseInt(get(v, names.MaxYear)),
		MinRating: parseFloat(get(v, names.MinRating)),
		Sort:      sort,
	}
}

// Encode 是 FromValues 的逆操作：只输出已设置的字段。
// term 是实际搜索词（通常为 EffectiveTerm 的结果），非空时总是输出；
// sort 仅在非 relevance 时输出。
func Encode(c domain.FilterCriteria, term string, names FieldNames) url.Values {
	v := url.Values{}
	if t := strings.TrimSpace(term); t != "" && names.Keyword != "" {
		v.Set(names.Keyword, t)
	}
	if g := strings.TrimSpace(c.Genre); g != "" && names.Genre != "" {
		v.Set(names.Genre, g)
	}
	if c.MinYear != nil && names.MinYear != "" {
		v.Set(names.MinYear, strconv.Itoa(*c.MinYear))
	}
	if c.MaxYear != nil && names.MaxYear != "" {
		v.Set(names.MaxYear, strconv.Itoa(*c.MaxYear))
	}
	if c.MinRating != nil && names.MinRating != "" {
		v.Set(names.MinRating, strconv.FormatFloat(*c.MinRating, 'f', -1, 64))
	}
	if s := c.Sort.Normalize(); s != domain.SortRelevance && names.Sort != "" {
		v.Set(names.Sort, string(s))
	}
	return v
}

func get(v url.Values, name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(v.Get(name))
}

// parseInt 接受 "2010" 与 "2010.0"（number 输入框可能提交小数形式），向下取整。
func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(math.Floor(f))
	return &n
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
