package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/John-Robertt/wat2watch/internal/domain"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	SourceOMDb    = "omdb"
	SourceBackend = "backend"

	DefaultSource = SourceOMDb
	// DefaultTerm 是关键词为空时的兜底搜索词（两个上游都要求非空搜索词）。
	DefaultTerm = "movie"
	// DefaultMaxCandidates 是 OMDb 搜索结果进入详情抓取的上限。
	DefaultMaxCandidates = 10
)

// CLIArgs 是 CLI 能覆盖的配置项，并保留“是否显式指定”的信息。
// 覆盖优先级：CLI > 环境变量 > 配置文件 > 内置默认。
type CLIArgs struct {
	ConfigPath string

	Source    string
	SourceSet bool

	DataPath    string
	DataPathSet bool

	LogLevel    string
	LogLevelSet bool

	Addr    string
	AddrSet bool
}

// Config 是合并并规范化后的最终配置（实现层直接消费）。
type Config struct {
	Source      string `koanf:"source" validate:"oneof=omdb backend"`
	DefaultTerm string `koanf:"default_term" validate:"required"`

	OMDb    OMDbConfig    `koanf:"omdb"`
	Backend BackendConfig `koanf:"backend"`
	HTTP    HTTPConfig    `koanf:"http"`
	Breaker BreakerConfig `koanf:"breaker"`
	Store   StoreConfig   `koanf:"store"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`

	// Path 是实际读取的配置文件（未读取任何文件时为空）。
	Path string `koanf:"-"`
}

type OMDbConfig struct {
	URL string `koanf:"url" validate:"required,url"`
	// APIKey 允许为空：watchlist/login 等命令不需要它；真正请求 OMDb 时才报 missing_api_key。
	APIKey        string        `koanf:"api_key"`
	Type          string        `koanf:"type"`
	Plot          string        `koanf:"plot" validate:"oneof=short full"`
	MaxCandidates int           `koanf:"max_candidates" validate:"min=1,max=50"`
	Cache         bool          `koanf:"cache"`
	CacheTTL      time.Duration `koanf:"cache_ttl" validate:"min=0"`
}

type BackendConfig struct {
	URL    string          `koanf:"url"`
	Params BackendParamMap `koanf:"params"`
}

// BackendParamMap 是 FilterCriteria 字段到后端 query 参数名的映射。
type BackendParamMap struct {
	Keyword   string `koanf:"keyword" validate:"required"`
	Genre     string `koanf:"genre" validate:"required"`
	MinYear   string `koanf:"min_year" validate:"required"`
	MaxYear   string `koanf:"max_year" validate:"required"`
	MinRating string `koanf:"min_rating" validate:"required"`
	Sort      string `koanf:"sort" validate:"required"`
}

type HTTPConfig struct {
	ProxyURL string        `koanf:"proxy_url"`
	Timeout  time.Duration `koanf:"timeout" validate:"min=0"`
	// RateLimit 是每秒请求数上限；0 表示不限速。
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
	Burst     int     `koanf:"burst" validate:"min=0"`
}

type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"min=0,max=1"`
	OpenTimeout  time.Duration `koanf:"open_timeout" validate:"min=0"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=badger file memory"`
	Path   string `koanf:"path"`
}

type ServerConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：配置无效：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) ErrorCode() string { return e.Code }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalize 做最小规范化 + 校验；返回的错误由调用方包装为 *Error。
func (c *Config) normalize() error {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	c.DefaultTerm = strings.TrimSpace(c.DefaultTerm)
	c.OMDb.URL = strings.TrimSpace(c.OMDb.URL)
	c.OMDb.APIKey = strings.TrimSpace(c.OMDb.APIKey)
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	c.HTTP.ProxyURL = strings.TrimSpace(c.HTTP.ProxyURL)
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	origins := c.Server.CORSOrigins[:0]
	for _, o := range c.Server.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Server.CORSOrigins = origins

	if err := validate.Struct(c); err != nil {
		return err
	}

	// 以下是 validator 表达不了的跨字段约束。
	if c.Source == SourceBackend {
		if err := checkHTTPURL("backend.url", c.Backend.URL); err != nil {
			return err
		}
	}
	if c.HTTP.ProxyURL != "" {
		if _, err := url.Parse(c.HTTP.ProxyURL); err != nil {
			return fmt.Errorf("http.proxy_url 无效：%w", err)
		}
	}
	if c.Store.Driver != "memory" && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.driver=%s 时 store.path 不能为空", c.Store.Driver)
	}
	return nil
}

func checkHTTPURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s 不能为空", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}
