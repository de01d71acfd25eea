package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// FileName 是 cwd 下自动发现的配置文件名（可选）。
	FileName = "wat2watch.yaml"
	// ConfigPathEnvVar 指定配置文件路径；指定后文件必须存在。
	ConfigPathEnvVar = "WAT2WATCH_CONFIG"
	// DefaultDataDir 是相对 cwd 的默认数据目录（badger/file 存储）。
	DefaultDataDir = ".wat2watch"
)

// envKeys 把环境变量（小写）映射到 koanf 路径；未列出的变量忽略。
// OMDB_API_KEY / OMDB_API_URL 沿用推荐后端的变量名。
var envKeys = map[string]string{
	"omdb_api_key": "omdb.api_key",
	"omdb_api_url": "omdb.url",

	"wat2watch_source":       "source",
	"wat2watch_default_term": "default_term",

	"wat2watch_omdb_url":            "omdb.url",
	"wat2watch_omdb_api_key":        "omdb.api_key",
	"wat2watch_omdb_type":           "omdb.type",
	"wat2watch_omdb_plot":           "omdb.plot",
	"wat2watch_omdb_max_candidates": "omdb.max_candidates",
	"wat2watch_omdb_cache":          "omdb.cache",
	"wat2watch_omdb_cache_ttl":      "omdb.cache_ttl",

	"wat2watch_backend_url": "backend.url",

	"wat2watch_http_proxy_url":  "http.proxy_url",
	"wat2watch_http_timeout":    "http.timeout",
	"wat2watch_http_rate_limit": "http.rate_limit",
	"wat2watch_http_burst":      "http.burst",

	"wat2watch_breaker_enabled":       "breaker.enabled",
	"wat2watch_breaker_min_requests":  "breaker.min_requests",
	"wat2watch_breaker_failure_ratio": "breaker.failure_ratio",
	"wat2watch_breaker_open_timeout":  "breaker.open_timeout",

	"wat2watch_store_driver": "store.driver",
	"wat2watch_store_path":   "store.path",

	"wat2watch_server_addr":                "server.addr",
	"wat2watch_server_cors_origins":        "server.cors_origins",
	"wat2watch_server_rate_limit_requests": "server.rate_limit_requests",
	"wat2watch_server_rate_limit_window":   "server.rate_limit_window",

	"wat2watch_log_level":  "logging.level",
	"wat2watch_log_format": "logging.format",
}

// sliceKeys 是允许用逗号分隔字符串（环境变量）表达的列表字段。
var sliceKeys = []string{"server.cors_origins"}

// Default 返回内置默认配置（未经过 normalize）。
func Default() Config {
	return Config{
		Source:      DefaultSource,
		DefaultTerm: DefaultTerm,
		OMDb: OMDbConfig{
			URL:           "https://www.omdbapi.com/",
			Type:          "movie",
			Plot:          "short",
			MaxCandidates: DefaultMaxCandidates,
			Cache:         true,
			CacheTTL:      24 * time.Hour,
		},
		Backend: BackendConfig{
			URL: "http://localhost:5000/api/recommend",
			Params: BackendParamMap{
				Keyword:   "q",
				Genre:     "genre",
				MinYear:   "minYear",
				MaxYear:   "maxYear",
				MinRating: "minRating",
				Sort:      "sort",
			},
		},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:      true,
			MinRequests:  5,
			FailureRatio: 0.6,
			OpenTimeout:  30 * time.Second,
		},
		Store: StoreConfig{
			Driver: "badger",
			Path:   DefaultDataDir,
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadEffective 按约定发现并读取配置，然后与 CLI 参数合并为最终配置。
//
// 分层（后者覆盖前者）：
// 1) 内置默认
// 2) 配置文件：--config > $WAT2WATCH_CONFIG > <cwd>/wat2watch.yaml（仅最后一种允许不存在）
// 3) 环境变量（envKeys）
// 4) CLI 显式指定的参数（*Set=true）
//
// 相对的 store.path 以 cwd 为基准转为绝对路径。
func LoadEffective(cwd string, cli CLIArgs) (Config, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath, required := discover(cwdAbs, cli)

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("加载默认配置失败：%w", err)}
	}

	loaded := ""
	if cfgPath != "" {
		st, statErr := os.Stat(cfgPath)
		switch {
		case statErr == nil && st.IsDir():
			return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: errors.New("配置路径是目录")}
		case statErr == nil:
			if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
				return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
			}
			loaded = cfgPath
		case errors.Is(statErr, os.ErrNotExist):
			if required {
				return Config{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
			}
		default:
			return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: statErr}
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: loaded, Err: fmt.Errorf("加载环境变量失败：%w", err)}
	}
	if err := splitSliceFields(k); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: loaded, Err: err}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: loaded, Err: err}
	}
	cfg.Path = loaded

	applyCLI(&cfg, cli)
	if cfg.Store.Path != "" {
		cfg.Store.Path = absCleanFrom(cwdAbs, cfg.Store.Path)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: loaded, Err: err}
	}
	return cfg, nil
}

// discover 返回候选配置文件路径，以及该文件是否必须存在。
func discover(cwdAbs string, cli CLIArgs) (path string, required bool) {
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		return absCleanFrom(cwdAbs, p), true
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		return absCleanFrom(cwdAbs, p), true
	}
	return filepath.Join(cwdAbs, FileName), false
}

func envTransform(key string) string {
	return envKeys[strings.ToLower(key)]
}

// splitSliceFields 把环境变量给出的 "a,b" 拆成列表；YAML 原生列表保持不变。
func splitSliceFields(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("%s 无效：%w", key, err)
		}
	}
	return nil
}

func applyCLI(cfg *Config, cli CLIArgs) {
	if cli.SourceSet {
		cfg.Source = cli.Source
	}
	if cli.DataPathSet {
		cfg.Store.Path = cli.DataPath
	}
	if cli.LogLevelSet {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.AddrSet {
		cfg.Server.Addr = cli.Addr
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
