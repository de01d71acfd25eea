package pipeline

import (
	"strings"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

// Filter 返回满足 c 的记录（保持原顺序，不修改入参）。
//
// 规则（每个已设置的条件独立生效）：
// - Genre：在逗号拼接的类型串上做大小写不敏感的子串匹配
// - MinRating：评分缺失的记录被排除
// - MinYear/MaxYear：年份缺失的记录被排除
// Keyword 与 Sort 不参与过滤。
func Filter(recs []domain.MovieRecord, c domain.FilterCriteria) []domain.MovieRecord {
	genre := strings.ToLower(strings.TrimSpace(c.Genre))
	out := make([]domain.MovieRecord, 0, len(recs))
	for _, r := range recs {
		if genre != "" && !strings.Contains(strings.ToLower(r.GenreText()), genre) {
			continue
		}
		if c.MinRating != nil && (r.Rating == nil || *r.Rating < *c.MinRating) {
			continue
		}
		if c.MinYear != nil && (r.Year == nil || *r.Year < *c.MinYear) {
			continue
		}
		if c.MaxYear != nil && (r.Year == nil || *r.Year > *c.MaxYear) {
			continue
		}
		out = append(out, r)
	}
	return out
}
