package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

// HTTPStatusError 表示上游返回了非 2xx 的 HTTP 状态码。
// Message 取自上游的 error payload（若有），否则为空。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPStatusError) ErrorCode() string { return domain.ErrCodeHTTPStatus }

// NoResultsError 表示上游明确给出了“无结果”信号（OMDb Response=False 或推荐接口的 error 字段）。
// 与“请求成功但过滤后为空”不同：后者不是错误。
type NoResultsError struct {
	Provider string
	Message  string
}

func (e *NoResultsError) Error() string {
	if e == nil || strings.TrimSpace(e.Message) == "" {
		return "no results"
	}
	return strings.TrimSpace(e.Message)
}

func (e *NoResultsError) ErrorCode() string { return domain.ErrCodeNoResults }

// ErrMissingAPIKey 表示调用需要 API key 的上游时未配置 key。
var ErrMissingAPIKey = &codedError{code: domain.ErrCodeMissingAPIKey, msg: "OMDb API key 未配置（设置 OMDB_API_KEY 或 omdb.api_key）"}

// ErrUpstreamUnavailable 表示熔断器处于打开状态，请求被快速拒绝（不是重试）。
var ErrUpstreamUnavailable = &codedError{code: domain.ErrCodeUpstreamUnavailable, msg: "上游暂不可用（熔断中）"}

type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string     { return e.msg }
func (e *codedError) ErrorCode() string { return e.code }

// Error 是 provider 阶段的可追溯错误。
// 上层据此把失败归类为 fetch_failed / parse_failed 等。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "search" / "detail" / "recommend" / "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode 优先使用内层错误的分类；否则 parse 阶段为 parse_failed，其余为 fetch_failed。
func (e *Error) ErrorCode() string {
	var c domain.ErrorCoder
	if errors.As(e.Err, &c) {
		if code := c.ErrorCode(); code != "" {
			return code
		}
	}
	if e.Stage == StageParse {
		return domain.ErrCodeParseFailed
	}
	if code := domain.ErrorCode(e.Err); code == domain.ErrCodeCanceled {
		return code
	}
	return domain.ErrCodeFetchFailed
}

const (
	StageSearch    = "search"
	StageDetail    = "detail"
	StageRecommend = "recommend"
	StageParse     = "parse"
)

// UserMessage 把错误转换为面向用户的状态文案（英文，与页面一致）。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var nr *NoResultsError
	if errors.As(err, &nr) {
		return nr.Error()
	}
	var hs *HTTPStatusError
	if errors.As(err, &hs) {
		if msg := strings.TrimSpace(hs.Message); msg != "" {
			return msg
		}
		return fmt.Sprintf("Request failed with status %d.", hs.StatusCode)
	}
	switch domain.ErrorCode(err) {
	case domain.ErrCodeMissingAPIKey:
		return "OMDb API key is not configured."
	case domain.ErrCodeUpstreamUnavailable:
		return "The movie service is temporarily unavailable. Please try again shortly."
	case domain.ErrCodeParseFailed:
		return "The movie service returned an unexpected response."
	case domain.ErrCodeCanceled:
		return "The request was canceled."
	default:
		return "Unable to reach the movie service."
	}
}
