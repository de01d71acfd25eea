package api

import (
	"net/http"
	"strings"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/provider"
	"github.com/John-Robertt/wat2watch/internal/provider/omdb"
	"github.com/John-Robertt/wat2watch/internal/query"
)

// 推荐接口对外文案（与原 Flask 服务一致）。
const (
	MessageCurated     = "Showing curated picks"
	MessageNoMatches   = "No matches found"
	MessageOMDbDown    = "Unable to reach OMDb API."
	MessageMissingKey  = "OMDB_API_KEY is missing. Add it to your environment."
	defaultRecommendBy = domain.SortRating
)

type recommendResponse struct {
	Results []recommendItem `json:"results"`
	Meta    recommendMeta   `json:"meta"`
}

type recommendMeta struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Term    string `json:"term,omitempty"`
}

// recommendItem 同时携带记录字段（id/genres）与旧接口字段（genre/trailer/imdbID）。
type recommendItem struct {
	ID      string   `json:"id,omitempty"`
	IMDbID  string   `json:"imdbID,omitempty"`
	Title   string   `json:"title"`
	Year    *int     `json:"year"`
	Rating  *float64 `json:"rating"`
	Runtime string   `json:"runtime"`
	Genre   string   `json:"genre"`
	Genres  []string `json:"genres"`
	Plot    string   `json:"plot"`
	Poster  string   `json:"poster"`
	Trailer string   `json:"trailer,omitempty"`
}

func newRecommendItem(r domain.MovieRecord) recommendItem {
	genres := r.Genres
	if genres == nil {
		genres = []string{}
	}
	return recommendItem{
		ID:      r.ID,
		IMDbID:  r.ID,
		Title:   r.Title,
		Year:    r.Year,
		Rating:  r.Rating,
		Runtime: r.Runtime,
		Genre:   r.GenreText(),
		Genres:  genres,
		Plot:    r.Plot,
		Poster:  r.PosterURL,
		Trailer: r.IMDbURL(),
	}
}

// recommend 对应 GET /api/recommend。
//
// 约束：
// - 未传 sort（或为空）时按评分排序，与原接口一致
// - 上游“无结果”信号返回 200 + 空列表，meta.message 为上游文案
// - 缺 OMDb key 返回 500；其余上游失败（含熔断）返回 503
func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := query.FromValues(q, query.DefaultFieldNames)
	if strings.TrimSpace(q.Get(query.DefaultFieldNames.Sort)) == "" {
		c.Sort = defaultRecommendBy
	}

	res, err := s.deps.Pipeline.Fetch(r.Context(), c)
	if err != nil {
		s.recommendError(w, err)
		return
	}

	items := make([]recommendItem, 0, len(res.Records))
	for _, rec := range res.Records {
		items = append(items, newRecommendItem(rec))
	}
	msg := res.Message
	if msg == "" {
		msg = MessageCurated
		if len(items) == 0 {
			msg = MessageNoMatches
		}
	}
	respondJSON(w, http.StatusOK, recommendResponse{
		Results: items,
		Meta:    recommendMeta{Count: len(items), Message: msg, Source: res.Source, Term: res.Term},
	})
}

func (s *Server) recommendError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	switch code {
	case domain.ErrCodeNoResults:
		msg := provider.UserMessage(err)
		if msg == "" {
			msg = MessageNoMatches
		}
		respondJSON(w, http.StatusOK, recommendResponse{
			Results: []recommendItem{},
			Meta:    recommendMeta{Message: msg, Source: s.sourceName()},
		})
		return
	case domain.ErrCodeMissingAPIKey:
		respondError(w, http.StatusInternalServerError, code, MessageMissingKey)
		return
	}

	msg := provider.UserMessage(err)
	if s.sourceName() == omdb.Name {
		msg = MessageOMDbDown
	}
	respondError(w, http.StatusServiceUnavailable, code, msg)
}

func (s *Server) sourceName() string {
	if s.deps.Source == nil {
		return ""
	}
	return s.deps.Source.Name()
}
