package domain

import (
	"context"
	"errors"
)

// Result 是一次 pipeline 调用的输出。
// Records 为空是合法结果（无匹配），必须与“抓取失败”（error）区分开。
type Result struct {
	Term    string        `json:"term"`
	Source  string        `json:"source"`
	Records []MovieRecord `json:"records"`
	Message string        `json:"message,omitempty"`
}

const (
	ErrCodeFetchFailed         = "fetch_failed"
	ErrCodeHTTPStatus          = "http_status"
	ErrCodeNoResults           = "no_results"
	ErrCodeParseFailed         = "parse_failed"
	ErrCodeStoreCorrupt        = "store_corrupt"
	ErrCodeConfigNotFound      = "config_not_found"
	ErrCodeConfigInvalid       = "config_invalid"
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
	ErrCodeMissingAPIKey       = "missing_api_key"
	ErrCodeCanceled            = "canceled"
	ErrCodeInternal            = "internal"
)

// ErrorCoder 由可分类的错误实现（provider/config/watchlist 的结构化错误）。
type ErrorCoder interface {
	ErrorCode() string
}

// ErrorCode 从错误链中提取 error_code。
// 优先使用链上第一个 ErrorCoder；ctx 取消/超时单独归类；其余为 internal。
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c ErrorCoder
	if errors.As(err, &c) {
		if code := c.ErrorCode(); code != "" {
			return code
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeCanceled
	}
	return ErrCodeInternal
}
