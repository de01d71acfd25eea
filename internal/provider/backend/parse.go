package backend

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/John-Robertt/wat2watch/internal/domain"
	providerx "github.com/John-Robertt/wat2watch/internal/provider"
)

type payload struct {
	Results []map[string]any `json:"results"`
	Meta    struct {
		Count   int    `json:"count"`
		Message string `json:"message"`
	} `json:"meta"`
	Error string `json:"error"`
}

// Parse 解析推荐接口的 payload。
//
// 兼容两种条目形态：
// - OMDb 原样：Title/Year/imdbRating/Genre/Poster/imdbID ...
// - 精简小写：title/year/rating/genre/poster/trailer ...（id 从 trailer 链接中提取）
//
// 带 error 字段的 2xx payload 视为“无结果”信号（*NoResultsError）。
// 缺少 title 的条目被跳过。
func Parse(body []byte) (providerx.Batch, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return providerx.Batch{}, &providerx.Error{Provider: Name, Stage: providerx.StageParse, Err: fmt.Errorf("响应不是合法 JSON：%w", err)}
	}
	if msg := strings.TrimSpace(p.Error); msg != "" {
		return providerx.Batch{}, &providerx.NoResultsError{Provider: Name, Message: msg}
	}

	out := make([]domain.MovieRecord, 0, len(p.Results))
	for _, item := range p.Results {
		if rec, ok := parseItem(item); ok {
			out = append(out, rec)
		}
	}
	return providerx.Batch{Records: out, Message: strings.TrimSpace(p.Meta.Message)}, nil
}

func parseItem(m map[string]any) (domain.MovieRecord, bool) {
	title := domain.NAString(pick(m, "Title", "title"))
	if title == "" {
		return domain.MovieRecord{}, false
	}

	rec := domain.MovieRecord{
		Title:     title,
		Genres:    domain.SplitGenres(pick(m, "Genre", "genre")),
		Runtime:   domain.NAString(pick(m, "Runtime", "runtime")),
		Plot:      domain.NAString(pick(m, "Plot", "plot")),
		PosterURL: domain.NAString(pick(m, "Poster", "poster")),
	}
	if id, ok := domain.ParseID(pick(m, "imdbID", "id")); ok {
		rec.ID = id
	} else if id, ok := domain.ExtractID(pick(m, "trailer", "url")); ok {
		rec.ID = id
	}
	if y, ok := domain.ParseYear(pick(m, "Year", "year")); ok {
		rec.Year = &y
	}
	if r, ok := domain.ParseRating(pick(m, "imdbRating", "rating")); ok {
		rec.Rating = &r
	}
	return rec, true
}

// pick 返回第一个存在且非 null 的字段的字符串形态（数字按最短表示）。
func pick(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			return x
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return ""
			}
			return strconv.FormatFloat(x, 'f', -1, 64)
		case json.Number:
			return x.String()
		case bool:
			return strconv.FormatBool(x)
		default:
			return fmt.Sprint(x)
		}
	}
	return ""
}
