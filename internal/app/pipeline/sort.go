package pipeline

import (
	"cmp"
	"math"
	"slices"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

// Sort 按 order 稳定排序（原地）。
//
// - rating：评分降序
// - newest：年份降序
// - oldest：年份升序
// - relevance / 未知值：保持到达顺序
//
// 缺失的排序键视为最小值：降序时排在最后，升序时排在最前。
func Sort(recs []domain.MovieRecord, order domain.SortOrder) {
	switch order.Normalize() {
	case domain.SortRating:
		slices.SortStableFunc(recs, func(a, b domain.MovieRecord) int {
			return cmp.Compare(ratingKey(b), ratingKey(a))
		})
	case domain.SortNewest:
		slices.SortStableFunc(recs, func(a, b domain.MovieRecord) int {
			return cmp.Compare(yearKey(b), yearKey(a))
		})
	case domain.SortOldest:
		slices.SortStableFunc(recs, func(a, b domain.MovieRecord) int {
			return cmp.Compare(yearKey(a), yearKey(b))
		})
	}
}

func ratingKey(r domain.MovieRecord) float64 {
	if r.Rating == nil {
		return math.Inf(-1)
	}
	return *r.Rating
}

func yearKey(r domain.MovieRecord) float64 {
	if r.Year == nil {
		return math.Inf(-1)
	}
	return float64(*r.Year)
}
