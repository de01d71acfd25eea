package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/John-Robertt/wat2watch/internal/metrics"
)

// maxBody 限制单个 payload 的大小（OMDb 详情约 1KB，推荐接口至多几十条）。
const maxBody = 4 << 20

// GetJSON 发起一次 GET 并返回 2xx 响应体。
//
// 约束：
// - 不重试
// - 传输失败包装为 *Error{Stage: stage}
// - 非 2xx 返回 *HTTPStatusError（Message 取自 payload 的 error/Error 字段）
func GetJSON(ctx context.Context, c *http.Client, providerName, stage, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Provider: providerName, Stage: stage, Err: redactErr(err)}
	}
	if c == nil {
		c = http.DefaultClient
	}

	resp, err := c.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(providerName, stage, "error").Inc()
		return nil, &Error{Provider: providerName, Stage: stage, Err: redactErr(err)}
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(providerName, stage, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &Error{Provider: providerName, Stage: stage, Err: fmt.Errorf("读取响应失败：%w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Provider: providerName, Stage: stage, Err: &HTTPStatusError{
			URL:        redactURL(rawURL),
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}}
	}
	return body, nil
}

// errorMessage 从 {"error": "..."} 或 {"Error": "..."} 中取出上游错误文案。
func errorMessage(body []byte) string {
	var p map[string]any
	if err := json.Unmarshal(body, &p); err != nil {
		return ""
	}
	for _, k := range []string{"error", "Error"} {
		if s, ok := p[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// redactErr 去掉 *url.Error 中 URL 的 apikey（其 Error() 会带上完整地址）。
func redactErr(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL)
	}
	return err
}

// redactURL 去掉 apikey，避免写入日志与错误信息。
func redactURL(raw string) string {
	i := strings.Index(raw, "apikey=")
	if i < 0 {
		return raw
	}
	j := strings.IndexByte(raw[i:], '&')
	if j < 0 {
		return raw[:i] + "apikey=REDACTED"
	}
	return raw[:i] + "apikey=REDACTED" + raw[i+j:]
}
