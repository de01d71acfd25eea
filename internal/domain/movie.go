package domain

import (
	"math"
	"strconv"
	"strings"
)

// MaxGenreTags 是卡片上最多展示的类型标签数。
const MaxGenreTags = 3

// MovieRecord 是一条结果（也是 watchlist 的持久化形态）。
//
// 约束：
// - ID 是外部唯一标识（IMDb id），watchlist 依此去重
// - Year/Rating 缺失时为 nil（provider 的 "N/A" 也视为缺失），不要用 0 表示缺失
// - Genres 已 trim，且不含空串
type MovieRecord struct {
	ID        string   `json:"id" validate:"required"`
	Title     string   `json:"title" validate:"required"`
	Year      *int     `json:"year"`
	Rating    *float64 `json:"rating"`
	Genres    []string `json:"genres"`
	Runtime   string   `json:"runtime,omitempty"`
	Plot      string   `json:"plot,omitempty"`
	PosterURL string   `json:"poster,omitempty"`
}

// GenreText 把 Genres 还原成 provider 的逗号拼接形态（用于 genre 过滤的子串匹配）。
func (m MovieRecord) GenreText() string {
	return strings.Join(m.Genres, ", ")
}

// IMDbURL 返回详情页链接；ID 为空时返回空串。
func (m MovieRecord) IMDbURL() string {
	if strings.TrimSpace(m.ID) == "" {
		return ""
	}
	return "https://www.imdb.com/title/" + m.ID + "/"
}

// SplitGenres 把 "Action, Drama ,Sci-Fi" 拆成 trim 后的列表，丢弃空段与 "N/A"。
func SplitGenres(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || IsNA(s) {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// TopGenres 返回前 n 个类型（拷贝，不共享底层数组）。
func TopGenres(genres []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(genres) < n {
		n = len(genres)
	}
	out := make([]string, n)
	copy(out, genres[:n])
	return out
}

// ParseYear 从 provider 的年份字段解析出整数年份。
//
// 兼容：
// - "2010" / "2010–2014" / "2010-"：取前 4 位数字
// - "2010.0"：后端可能把年份序列化成浮点，向下取整
// - "" / "N/A"：缺失
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || IsNA(s) {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(math.Floor(f)), true
	}
	if len(s) < 4 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseRating 解析 "8.1" 形式的评分；"N/A"/空串/非数字视为缺失。
func ParseRating(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || IsNA(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NAString 把 provider 的 "N/A" 归一为空串。
func NAString(s string) string {
	s = strings.TrimSpace(s)
	if IsNA(s) {
		return ""
	}
	return s
}

// IsNA 判断是否为 OMDb 风格的缺失占位符。
func IsNA(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "N/A")
}

// IntPtr / FloatPtr 用于构造可选字段。
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
