package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

type stubSource struct {
	name   string
	remote bool
	err    error
	batch  Batch
	calls  int
}

func (s *stubSource) Name() string          { return s.name }
func (s *stubSource) RemoteFiltering() bool { return s.remote }

func (s *stubSource) Fetch(ctx context.Context, term string, c domain.FilterCriteria) (Batch, error) {
	s.calls++
	if s.err != nil {
		return Batch{}, s.err
	}
	return s.batch, nil
}

type stubDetailSource struct {
	stubSource
}

func (s *stubDetailSource) Detail(ctx context.Context, id string) (domain.MovieRecord, error) {
	return domain.MovieRecord{ID: id, Title: "t"}, nil
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(&stubSource{name: "OMDb"}, &stubSource{name: "backend"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok := reg.Get(" omdb "); !ok {
		t.Fatalf("name 查找应大小写不敏感")
	}
	if _, err := reg.Lookup("imdb"); err == nil || !strings.Contains(err.Error(), "backend, omdb") {
		t.Fatalf("未知 source 应列出可选项，实际：%v", err)
	}

	if _, err := NewRegistry(&stubSource{name: "a"}, &stubSource{name: "A"}); err == nil {
		t.Fatalf("重复 name 应报错")
	}
	if _, err := NewRegistry(&stubSource{name: " "}); err == nil {
		t.Fatalf("空 name 应报错")
	}
}

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&Error{Provider: "omdb", Stage: StageSearch, Err: errors.New("dial tcp: refused")}, domain.ErrCodeFetchFailed},
		{&Error{Provider: "omdb", Stage: StageParse, Err: errors.New("bad json")}, domain.ErrCodeParseFailed},
		{&Error{Provider: "omdb", Stage: StageDetail, Err: &HTTPStatusError{StatusCode: 500}}, domain.ErrCodeHTTPStatus},
		{&Error{Provider: "omdb", Stage: StageDetail, Err: context.Canceled}, domain.ErrCodeCanceled},
		{&NoResultsError{Provider: "omdb", Message: "Movie not found!"}, domain.ErrCodeNoResults},
		{ErrMissingAPIKey, domain.ErrCodeMissingAPIKey},
		{fmt.Errorf("%w: open", ErrUpstreamUnavailable), domain.ErrCodeUpstreamUnavailable},
	}
	for _, c := range cases {
		if got := domain.ErrorCode(c.err); got != c.want {
			t.Fatalf("ErrorCode(%v)=%q，期望 %q", c.err, got, c.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(&NoResultsError{Message: "Movie not found!"}); got != "Movie not found!" {
		t.Fatalf("无结果应透传上游文案，实际：%q", got)
	}
	if got := UserMessage(&Error{Stage: StageRecommend, Err: &HTTPStatusError{StatusCode: 502, Message: "Unable to reach OMDb API."}}); got != "Unable to reach OMDb API." {
		t.Fatalf("状态码错误应优先使用上游文案，实际：%q", got)
	}
	if got := UserMessage(&HTTPStatusError{StatusCode: 404}); got != "Request failed with status 404." {
		t.Fatalf("无上游文案时应使用通用文案，实际：%q", got)
	}
	if got := UserMessage(errors.New("x")); got != "Unable to reach the movie service." {
		t.Fatalf("未知错误文案不符合预期：%q", got)
	}
}

func TestGetJSON_StatusErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Unable to reach OMDb API."}`))
	}))
	defer srv.Close()

	_, err := GetJSON(context.Background(), srv.Client(), "backend", StageRecommend, srv.URL+"?q=x&apikey=secret&s=y")
	var hs *HTTPStatusError
	if !errors.As(err, &hs) {
		t.Fatalf("期望 *HTTPStatusError，实际：%T %v", err, err)
	}
	if hs.StatusCode != 503 || hs.Message != "Unable to reach OMDb API." {
		t.Fatalf("状态码/文案不符合预期：%+v", hs)
	}
	if strings.Contains(hs.URL, "secret") {
		t.Fatalf("错误中不应包含 apikey：%q", hs.URL)
	}
	if !strings.Contains(hs.URL, "&s=y") {
		t.Fatalf("apikey 之后的参数应保留：%q", hs.URL)
	}
}

func TestGetJSON_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	b, err := GetJSON(context.Background(), srv.Client(), "backend", StageRecommend, srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if string(b) != `{"results":[]}` {
		t.Fatalf("响应体不一致：%q", string(b))
	}
}

func TestGetJSON_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := srv.URL
	srv.Close()

	_, err := GetJSON(context.Background(), nil, "omdb", StageSearch, u)
	if domain.ErrorCode(err) != domain.ErrCodeFetchFailed {
		t.Fatalf("期望 fetch_failed，实际：%q (%v)", domain.ErrorCode(err), err)
	}
}

func TestGetJSON_ErrorsHideAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed := srv.URL
	srv.Close()

	for _, raw := range []string{
		closed + "/?apikey=secret&s=matrix",
		"http://127.0.0.1:bad/?apikey=secret&s=matrix",
	} {
		_, err := GetJSON(context.Background(), nil, "omdb", StageSearch, raw)
		if domain.ErrorCode(err) != domain.ErrCodeFetchFailed {
			t.Fatalf("期望 fetch_failed，实际：%q (%v)", domain.ErrorCode(err), err)
		}
		msg := err.Error()
		if strings.Contains(msg, "secret") {
			t.Fatalf("错误信息不应包含 apikey：%s", msg)
		}
		if !strings.Contains(msg, "s=matrix") {
			t.Fatalf("其余参数应保留以便排查：%s", msg)
		}
	}
}

func TestWithBreaker_OpensAfterFailures(t *testing.T) {
	inner := &stubSource{name: "omdb", err: &Error{Provider: "omdb", Stage: StageSearch, Err: errors.New("boom")}}
	src := WithBreaker(inner, BreakerSettings{MinRequests: 2, FailureRatio: 0.5, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		if _, err := src.Fetch(context.Background(), "movie", domain.FilterCriteria{}); domain.ErrorCode(err) != domain.ErrCodeFetchFailed {
			t.Fatalf("第 %d 次应透传 fetch_failed，实际：%v", i+1, err)
		}
	}

	_, err := src.Fetch(context.Background(), "movie", domain.FilterCriteria{})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("熔断打开后应快速失败，实际：%v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("熔断打开后不应再调用上游，实际调用 %d 次", inner.calls)
	}
	if st, ok := BreakerState(src); !ok || st != "open" {
		t.Fatalf("期望状态 open，实际 (%q,%v)", st, ok)
	}
}

func TestWithBreaker_NoResultsDoesNotTrip(t *testing.T) {
	inner := &stubSource{name: "omdb", err: &NoResultsError{Provider: "omdb", Message: "Movie not found!"}}
	src := WithBreaker(inner, BreakerSettings{MinRequests: 1, FailureRatio: 0.1, OpenTimeout: time.Hour})

	for i := 0; i < 5; i++ {
		_, err := src.Fetch(context.Background(), "zzz", domain.FilterCriteria{})
		var nr *NoResultsError
		if !errors.As(err, &nr) {
			t.Fatalf("第 %d 次应返回 NoResultsError，实际：%v", i+1, err)
		}
	}
	if inner.calls != 5 {
		t.Fatalf("无结果不应触发熔断，实际调用 %d 次", inner.calls)
	}
}

func TestWithBreaker_DelegatesMetadataAndDetail(t *testing.T) {
	inner := &stubDetailSource{stubSource{name: "omdb", remote: false}}
	src := WithBreaker(inner, BreakerSettings{MinRequests: 1, FailureRatio: 1, OpenTimeout: time.Second})

	if src.Name() != "omdb" || src.RemoteFiltering() {
		t.Fatalf("Name/RemoteFiltering 应透传")
	}
	ds, ok := src.(DetailSource)
	if !ok {
		t.Fatalf("包装后应保留 DetailSource")
	}
	rec, err := ds.Detail(context.Background(), "tt0111161")
	if err != nil || rec.ID != "tt0111161" {
		t.Fatalf("Detail 透传失败：%+v %v", rec, err)
	}

	if _, ok := BreakerState(inner); ok {
		t.Fatalf("未包装的 source 不应报告熔断状态")
	}
}

func TestWithBreaker_KeepsMissingDetailCapability(t *testing.T) {
	inner := &stubSource{name: "backend", remote: true}
	src := WithBreaker(inner, BreakerSettings{MinRequests: 1, FailureRatio: 1, OpenTimeout: time.Second})

	if _, ok := src.(DetailSource); ok {
		t.Fatalf("inner 不支持 Detail 时包装结果也不应支持")
	}
	if !src.RemoteFiltering() {
		t.Fatalf("RemoteFiltering 应透传")
	}
	if state, ok := BreakerState(src); !ok || state != "closed" {
		t.Fatalf("期望 closed，实际：%q ok=%v", state, ok)
	}

	detailed := WithBreaker(&stubDetailSource{stubSource{name: "omdb"}}, BreakerSettings{MinRequests: 1, FailureRatio: 1, OpenTimeout: time.Second})
	if state, ok := BreakerState(detailed); !ok || state != "closed" {
		t.Fatalf("期望 closed，实际：%q ok=%v", state, ok)
	}
}
