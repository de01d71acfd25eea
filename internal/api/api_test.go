package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/wat2watch/internal/app/view"
	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/infra/kv"
	"github.com/John-Robertt/wat2watch/internal/provider"
	"github.com/John-Robertt/wat2watch/internal/session"
	"github.com/John-Robertt/wat2watch/internal/watchlist"
)

type fakePipeline struct {
	mu  sync.Mutex
	got []domain.FilterCriteria
	res domain.Result
	err error
}

func (f *fakePipeline) Fetch(ctx context.Context, c domain.FilterCriteria) (domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, c)
	return f.res, f.err
}

func (f *fakePipeline) last() domain.FilterCriteria {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got[len(f.got)-1]
}

type fakeSource struct {
	name    string
	details map[string]domain.MovieRecord
}

func (s *fakeSource) Name() string          { return s.name }
func (s *fakeSource) RemoteFiltering() bool { return false }
func (s *fakeSource) Fetch(ctx context.Context, term string, c domain.FilterCriteria) (provider.Batch, error) {
	return provider.Batch{}, nil
}

func (s *fakeSource) Detail(ctx context.Context, id string) (domain.MovieRecord, error) {
	if rec, ok := s.details[id]; ok {
		return rec, nil
	}
	return domain.MovieRecord{}, &provider.NoResultsError{Provider: s.name, Message: "Incorrect IMDb ID."}
}

type harness struct {
	srv   *httptest.Server
	pipe  *fakePipeline
	store kv.Store
	wl    *watchlist.Store
	sess  *session.Store
	view  *view.View
}

func newHarness(t *testing.T, sourceName string) *harness {
	t.Helper()
	pipe := &fakePipeline{res: domain.Result{Term: "movie", Source: sourceName, Records: []domain.MovieRecord{}}}
	store := kv.NewMemory()
	h := &harness{
		pipe:  pipe,
		store: store,
		wl:    watchlist.New(store),
		sess:  session.New(store),
		view:  view.New(pipe),
	}
	src := &fakeSource{name: sourceName, details: map[string]domain.MovieRecord{
		"tt0133093": {ID: "tt0133093", Title: "The Matrix", Year: domain.IntPtr(1999)},
	}}
	s := New(Deps{Pipeline: pipe, Source: src, View: h.view, Watchlist: h.wl, Session: h.sess}, Options{})
	h.srv = httptest.NewServer(s.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

// noRedirect 让测试能断言 303 本身。
func noRedirect(srv *httptest.Server) *http.Client {
	c := srv.Client()
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func heat() domain.MovieRecord {
	return domain.MovieRecord{
		ID: "tt0113277", Title: "Heat", Year: domain.IntPtr(1995), Rating: domain.FloatPtr(8.3),
		Genres: []string{"Action", "Crime", "Drama"}, Runtime: "170 min", Plot: "A group of professional bank robbers.",
		PosterURL: "https://img.test/heat.jpg",
	}
}

func TestRecommend_OK(t *testing.T) {
	h := newHarness(t, "omdb")
	h.pipe.res.Records = []domain.MovieRecord{heat()}

	var body map[string]any
	resp := getJSON(t, h.srv.URL+"/api/recommend?q=heat&genre=crime&minRating=8&minYear=1990", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["count"])
	assert.Equal(t, MessageCurated, meta["message"])

	item := body["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "Heat", item["title"])
	assert.Equal(t, "tt0113277", item["imdbID"])
	assert.Equal(t, "Action, Crime, Drama", item["genre"])
	assert.Equal(t, "https://www.imdb.com/title/tt0113277/", item["trailer"])
	assert.Equal(t, float64(1995), item["year"])

	c := h.pipe.last()
	assert.Equal(t, "heat", c.Keyword)
	assert.Equal(t, "crime", c.Genre)
	assert.Equal(t, domain.SortRating, c.Sort, "未传 sort 时默认按评分")
	require.NotNil(t, c.MinYear)
	assert.Equal(t, 1990, *c.MinYear)
}

func TestRecommend_ExplicitSort(t *testing.T) {
	h := newHarness(t, "omdb")
	getJSON(t, h.srv.URL+"/api/recommend?sort=oldest", nil)
	assert.Equal(t, domain.SortOldest, h.pipe.last().Sort)
}

func TestRecommend_Empty(t *testing.T) {
	h := newHarness(t, "omdb")
	var body recommendResponse
	resp := getJSON(t, h.srv.URL+"/api/recommend", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body.Results)
	assert.Empty(t, body.Results)
	assert.Equal(t, MessageNoMatches, body.Meta.Message)
}

func TestRecommend_Errors(t *testing.T) {
	cases := []struct {
		name       string
		source     string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"缺 key", "omdb", provider.ErrMissingAPIKey, http.StatusInternalServerError, MessageMissingKey},
		{"OMDb 传输失败", "omdb", &provider.Error{Provider: "omdb", Stage: provider.StageSearch, Err: errors.New("dial tcp")}, http.StatusServiceUnavailable, MessageOMDbDown},
		{"熔断打开", "omdb", provider.ErrUpstreamUnavailable, http.StatusServiceUnavailable, MessageOMDbDown},
		{"推荐服务透传上游文案", "backend", &provider.Error{Provider: "backend", Stage: provider.StageRecommend, Err: &provider.HTTPStatusError{StatusCode: 503, Message: "Unable to reach OMDb API."}}, http.StatusServiceUnavailable, "Unable to reach OMDb API."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.source)
			h.pipe.err = tc.err
			var body errorResponse
			resp := getJSON(t, h.srv.URL+"/api/recommend?q=x", &body)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, tc.wantMsg, body.Error)
			assert.Equal(t, domain.ErrorCode(tc.err), body.Code)
		})
	}
}

func TestRecommend_NoResultsIsNotAnError(t *testing.T) {
	h := newHarness(t, "omdb")
	h.pipe.err = &provider.NoResultsError{Provider: "omdb", Message: "Movie not found!"}
	var body recommendResponse
	resp := getJSON(t, h.srv.URL+"/api/recommend?q=zzzz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body.Results)
	assert.Equal(t, "Movie not found!", body.Meta.Message)
}

func TestWatchlistAPI(t *testing.T) {
	h := newHarness(t, "omdb")
	post := func(body string) *http.Response {
		resp, err := http.Post(h.srv.URL+"/api/watchlist", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusCreated, post(`{"id":"tt0113277","title":"Heat","year":1995}`).StatusCode)
	assert.Equal(t, http.StatusConflict, post(`{"id":"tt0113277","title":"Heat"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`{"title":"No id"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).StatusCode)
	assert.Equal(t, http.StatusCreated, post(`{"id":"tt0133093","title":"The Matrix"}`).StatusCode)

	var list watchlistResponse
	getJSON(t, h.srv.URL+"/api/watchlist", &list)
	assert.Equal(t, 2, list.Meta.Count)

	req, _ := http.NewRequest(http.MethodDelete, h.srv.URL+"/api/watchlist/tt0113277", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getJSON(t, h.srv.URL+"/api/watchlist", &list)
	require.Len(t, list.Results, 1)
	assert.Equal(t, "tt0133093", list.Results[0].ID)

	req, _ = http.NewRequest(http.MethodDelete, h.srv.URL+"/api/watchlist", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getJSON(t, h.srv.URL+"/api/watchlist", &list)
	assert.Equal(t, 0, list.Meta.Count)
}

func TestWatchlistAPI_Corrupt(t *testing.T) {
	h := newHarness(t, "omdb")
	require.NoError(t, h.store.Set(context.Background(), watchlist.Key, []byte(`{broken`)))

	var body errorResponse
	resp := getJSON(t, h.srv.URL+"/api/watchlist", &body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, domain.ErrCodeStoreCorrupt, body.Code)

	page, err := http.Get(h.srv.URL + "/")
	require.NoError(t, err)
	defer page.Body.Close()
	assert.Equal(t, http.StatusOK, page.StatusCode, "页面仍可用，只是 watchlist 区域提示损坏")
	doc, err := goquery.NewDocumentFromReader(page.Body)
	require.NoError(t, err)
	assert.Equal(t, MessageCorrupt, doc.Find("#watchlist .empty-state.error").Text())
}

func TestSessionAPI(t *testing.T) {
	h := newHarness(t, "omdb")

	var s sessionResponse
	getJSON(t, h.srv.URL+"/api/session", &s)
	assert.False(t, s.LoggedIn)

	resp, err := http.Post(h.srv.URL+"/api/session", "application/json", strings.NewReader(`{"id":"ada@example.com"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	getJSON(t, h.srv.URL+"/api/session", &s)
	assert.True(t, s.LoggedIn)
	assert.Equal(t, "ada", s.Name)

	resp, err = http.Post(h.srv.URL+"/api/session", "application/json", strings.NewReader(`{"id":"  "}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, h.srv.URL+"/api/session", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getJSON(t, h.srv.URL+"/api/session", &s)
	assert.False(t, s.LoggedIn)
}

func TestPages_SearchSaveRemove(t *testing.T) {
	h := newHarness(t, "omdb")
	h.pipe.res.Records = []domain.MovieRecord{heat()}
	c := noRedirect(h.srv)

	form := url.Values{"keywords": {"heat"}, "genre": {"Crime"}, "sort-order": {"newest"}}
	resp, err := c.PostForm(h.srv.URL+"/search", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	got := h.pipe.last()
	assert.Equal(t, "heat", got.Keyword)
	assert.Equal(t, domain.SortNewest, got.Sort)

	doc := fetchPage(t, h)
	assert.Equal(t, 1, doc.Find("#results .movie-card").Length())
	assert.Equal(t, "Showing 1 results sorted by newest.", doc.Find("#status-message").Text())

	resp, err = c.PostForm(h.srv.URL+"/watchlist/save", url.Values{"id": {"tt0113277"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// 不在当前结果中的条目通过详情接口回源。
	resp, err = c.PostForm(h.srv.URL+"/watchlist/save", url.Values{"id": {"tt0133093"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, err = c.PostForm(h.srv.URL+"/watchlist/save", url.Values{"id": {"tt9999999"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	doc = fetchPage(t, h)
	assert.Equal(t, 2, doc.Find("#watchlist .movie-card").Length())
	assert.Equal(t, 1, doc.Find("#results .movie-card form[action='/watchlist/remove']").Length())

	resp, err = c.PostForm(h.srv.URL+"/watchlist/remove", url.Values{"id": {"tt0113277"}})
	require.NoError(t, err)
	resp.Body.Close()
	recs, err := h.wl.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "tt0133093", recs[0].ID)

	resp, err = c.PostForm(h.srv.URL+"/watchlist/clear", nil)
	require.NoError(t, err)
	resp.Body.Close()
	recs, err = h.wl.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPages_SearchFailureShowsError(t *testing.T) {
	h := newHarness(t, "omdb")
	h.pipe.err = &provider.Error{Provider: "omdb", Stage: provider.StageSearch, Err: errors.New("dial tcp")}
	c := noRedirect(h.srv)

	resp, err := c.PostForm(h.srv.URL+"/search", url.Values{"keywords": {"heat"}})
	require.NoError(t, err)
	resp.Body.Close()

	doc := fetchPage(t, h)
	assert.Equal(t, 0, doc.Find("#results .movie-card").Length())
	assert.Equal(t, "Connection Error: Unable to reach the movie service.", doc.Find("#results .empty-state.error").Text())
}

func TestPages_LoginLogout(t *testing.T) {
	h := newHarness(t, "omdb")
	c := noRedirect(h.srv)

	resp, err := c.PostForm(h.srv.URL+"/login", url.Values{"id": {"grace@example.com"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "grace", strings.TrimSpace(fetchPage(t, h).Find(".user-name").Text()))

	resp, err = c.PostForm(h.srv.URL+"/login", url.Values{"id": {""}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = c.PostForm(h.srv.URL+"/logout", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, fetchPage(t, h).Find("#login-form").Length())
}

func fetchPage(t *testing.T, h *harness) *goquery.Document {
	t.Helper()
	resp, err := http.Get(h.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, "omdb")
	var body healthResponse
	resp := getJSON(t, h.srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "omdb", body.Source)
	assert.Empty(t, body.Breaker)

	m, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	assert.Equal(t, http.StatusOK, m.StatusCode)
}

func TestRequestID_Propagated(t *testing.T) {
	h := newHarness(t, "omdb")
	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	h := newHarness(t, "omdb")
	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/api/recommend", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	pipe := &fakePipeline{}
	store := kv.NewMemory()
	s := New(Deps{Pipeline: pipe, View: view.New(pipe), Watchlist: watchlist.New(store), Session: session.New(store)},
		Options{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/api/session")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, http.StatusTooManyRequests}, codes)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "限流只作用于 /api")
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	pipe := &fakePipeline{}
	store := kv.NewMemory()
	s := New(Deps{Pipeline: pipe, View: view.New(pipe), Watchlist: watchlist.New(store), Session: session.New(store)},
		Options{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("服务未在超时内退出")
	}
}

func TestWatchlistAPI_StoresNormalizedEntry(t *testing.T) {
	h := newHarness(t, "omdb")

	resp, err := http.Post(h.srv.URL+"/api/watchlist", "application/json",
		strings.NewReader(`{"id":" TT0113277 ","title":"  Heat ","year":1995}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var echoed domain.MovieRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&echoed))
	assert.Equal(t, "tt0113277", echoed.ID)
	assert.Equal(t, "Heat", echoed.Title)

	recs, err := h.wl.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, echoed.ID, recs[0].ID)
	assert.Equal(t, echoed.Title, recs[0].Title)

	dup, err := http.Post(h.srv.URL+"/api/watchlist", "application/json",
		strings.NewReader(`{"id":"tt0113277","title":"Heat"}`))
	require.NoError(t, err)
	dup.Body.Close()
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
}

// listOnlySource 没有按 id 查详情的能力（对应 backend source）。
type listOnlySource struct{}

func (listOnlySource) Name() string          { return "backend" }
func (listOnlySource) RemoteFiltering() bool { return true }
func (listOnlySource) Fetch(ctx context.Context, term string, c domain.FilterCriteria) (provider.Batch, error) {
	return provider.Batch{}, nil
}

func TestPages_SaveFallsBackToDetails(t *testing.T) {
	pipe := &fakePipeline{res: domain.Result{Term: "movie", Source: "backend", Records: []domain.MovieRecord{}}}
	store := kv.NewMemory()
	wl := watchlist.New(store)
	details := &fakeSource{name: "omdb", details: map[string]domain.MovieRecord{
		"tt0133093": {ID: "tt0133093", Title: "The Matrix", Year: domain.IntPtr(1999)},
	}}
	s := New(Deps{
		Pipeline:  pipe,
		Source:    listOnlySource{},
		Details:   details,
		View:      view.New(pipe),
		Watchlist: wl,
		Session:   session.New(store),
	}, Options{})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	c := noRedirect(srv)

	resp, err := c.PostForm(srv.URL+"/watchlist/save", url.Values{"id": {"tt0133093"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	recs, err := wl.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "The Matrix", recs[0].Title)

	// 没有详情能力时仍按“不在结果中”处理。
	bare := New(Deps{Pipeline: pipe, Source: listOnlySource{}, View: view.New(pipe), Watchlist: wl, Session: session.New(store)}, Options{})
	bareSrv := httptest.NewServer(bare.Handler())
	t.Cleanup(bareSrv.Close)
	resp, err = noRedirect(bareSrv).PostForm(bareSrv.URL+"/watchlist/save", url.Values{"id": {"tt0113277"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
