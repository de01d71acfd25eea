package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/infra/fsx"
)

// Store 提供 <Root>/cache/ 下的详情 JSON 缓存读写。
//
// 约束：
// - 只缓存原始 payload，解析仍由 provider 的纯函数完成
// - TTL>0 时按文件 mtime 判断过期；过期视为未命中（不删除）
// - ReadOnly=true 时拒绝写入
type Store struct {
	Root     string // 数据目录
	ReadOnly bool
	TTL      time.Duration

	now func() time.Time
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool, ttl time.Duration) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
		TTL:      ttl,
	}
}

// DetailPath 返回 provider 详情缓存的绝对路径。
func (s Store) DetailPath(provider, id string) (string, error) {
	p, err := cleanProvider(provider)
	if err != nil {
		return "", err
	}
	tid, ok := domain.ParseID(id)
	if !ok {
		return "", fmt.Errorf("非法 IMDb id：%q", id)
	}
	return filepath.Join(s.Root, "cache", "providers", p, tid+".json"), nil
}

// ReadDetail 读取未过期的缓存；未命中返回 ok=false。
func (s Store) ReadDetail(provider, id string) ([]byte, bool, error) {
	path, err := s.DetailPath(provider, id)
	if err != nil {
		return nil, false, err
	}
	if s.TTL > 0 {
		fi, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, false, nil
			}
			return nil, false, err
		}
		if s.clock().Sub(fi.ModTime()) > s.TTL {
			return nil, false, nil
		}
	}
	return fsx.ReadFile(path)
}

func (s Store) WriteDetail(provider, id string, payload []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.DetailPath(provider, id)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), payload)
}

func (s Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

var providerNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	// 最小约束：避免路径穿越。
	if !providerNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}
