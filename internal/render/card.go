// Package render 把结果与 view 快照转换为用户可见的形态（HTML 页面、终端卡片、状态文案）。
//
// 约束：纯展示，不发请求、不读写存储。
package render

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

const (
	// PlotLimit 是卡片剧情简介的最大 rune 数（含省略号）。
	PlotLimit = 300

	NoPoster    = "No Poster"
	NoPlot      = "No plot available."
	NoRating    = "N/A"
	NoYear      = "—"
	ellipsisStr = "…"
)

// Card 是一张结果卡片的展示数据。
type Card struct {
	ID        string
	Title     string
	PosterURL string
	Rating    string
	Year      string
	Runtime   string
	Genres    []string
	Plot      string
	IMDbURL   string
	Saved     bool
}

// HasPoster 报告是否有可用海报；否则展示 NoPoster 占位。
func (c Card) HasPoster() bool { return c.PosterURL != "" }

// NewCard 构造卡片；saved 决定展示“保存”还是“移除”。
func NewCard(rec domain.MovieRecord, saved bool) Card {
	c := Card{
		ID:      rec.ID,
		Title:   rec.Title,
		Rating:  NoRating,
		Year:    NoYear,
		Runtime: domain.NAString(rec.Runtime),
		Genres:  domain.TopGenres(rec.Genres, domain.MaxGenreTags),
		Plot:    NoPlot,
		IMDbURL: rec.IMDbURL(),
		Saved:   saved,
	}
	if p := domain.NAString(rec.PosterURL); p != "" {
		c.PosterURL = p
	}
	if rec.Rating != nil {
		c.Rating = strconv.FormatFloat(*rec.Rating, 'f', 1, 64)
	}
	if rec.Year != nil {
		c.Year = strconv.Itoa(*rec.Year)
	}
	if p := domain.NAString(rec.Plot); p != "" {
		c.Plot = truncate(p, PlotLimit)
	}
	return c
}

// NewCards 批量构造；saved 为 nil 时全部视为未保存。
func NewCards(recs []domain.MovieRecord, saved func(id string) bool) []Card {
	out := make([]Card, 0, len(recs))
	for _, r := range recs {
		out = append(out, NewCard(r, saved != nil && saved(r.ID)))
	}
	return out
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	rs := []rune(s)
	return strings.TrimRight(string(rs[:limit-1]), " ") + ellipsisStr
}
