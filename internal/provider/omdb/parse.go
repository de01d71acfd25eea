package omdb

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/John-Robertt/wat2watch/internal/domain"
	providerx "github.com/John-Robertt/wat2watch/internal/provider"
)

type searchPayload struct {
	Search []struct {
		Title  string `json:"Title"`
		Year   string `json:"Year"`
		IMDbID string `json:"imdbID"`
		Type   string `json:"Type"`
		Poster string `json:"Poster"`
	} `json:"Search"`
	TotalResults string `json:"totalResults"`
	Response     string `json:"Response"`
	Error        string `json:"Error"`
}

type detailPayload struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	IMDbRating string `json:"imdbRating"`
	IMDbID     string `json:"imdbID"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// ParseSearch 解析搜索 payload，返回候选 imdbID（按出现顺序，未去重）。
//
// Response=False（例如 "Movie not found!" / "Too many results."）返回 *NoResultsError。
// 非法或缺失的 imdbID 被跳过。
func ParseSearch(body []byte) ([]string, error) {
	var p searchPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &providerx.Error{Provider: Name, Stage: providerx.StageParse, Err: fmt.Errorf("搜索响应不是合法 JSON：%w", err)}
	}
	if !strings.EqualFold(strings.TrimSpace(p.Response), "True") {
		msg := strings.TrimSpace(p.Error)
		if msg == "" {
			msg = "No results found."
		}
		return nil, &providerx.NoResultsError{Provider: Name, Message: msg}
	}

	ids := make([]string, 0, len(p.Search))
	for _, it := range p.Search {
		if id, ok := domain.ParseID(it.IMDbID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ParseDetail 解析详情 payload。
//
// 返回 ok=false 表示 OMDb 回答了 Response=False，或记录缺少 id/title（调用方跳过该候选）。
func ParseDetail(body []byte) (domain.MovieRecord, bool, error) {
	var p detailPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.MovieRecord{}, false, &providerx.Error{Provider: Name, Stage: providerx.StageParse, Err: fmt.Errorf("详情响应不是合法 JSON：%w", err)}
	}
	if !strings.EqualFold(strings.TrimSpace(p.Response), "True") {
		return domain.MovieRecord{}, false, nil
	}

	id, ok := domain.ParseID(p.IMDbID)
	title := domain.NAString(p.Title)
	if !ok || title == "" {
		return domain.MovieRecord{}, false, nil
	}

	rec := domain.MovieRecord{
		ID:        id,
		Title:     title,
		Genres:    domain.SplitGenres(p.Genre),
		Runtime:   domain.NAString(p.Runtime),
		Plot:      domain.NAString(p.Plot),
		PosterURL: domain.NAString(p.Poster),
	}
	if y, ok := domain.ParseYear(p.Year); ok {
		rec.Year = &y
	}
	if r, ok := domain.ParseRating(p.IMDbRating); ok {
		rec.Rating = &r
	}
	return rec, true, nil
}
