// Package kv 是按字符串 key 存取字节值的本地持久存储（watchlist 与登录态共用）。
//
// 约束：
// - 单个 key 的 Set 是原子的：读者只会看到旧值或新值
// - Delete 不存在的 key 不算错误
// - 跨进程并发写同一 key 为 last-write-wins（badger 为单进程独占打开）
package kv

import (
	"context"
	"fmt"
	"strings"
)

// Store 是 key/value 存储接口。
type Store interface {
	// Get 返回 key 对应的值；不存在时 ok=false 且 err=nil。
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	DriverBadger = "badger"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Open 按 driver 打开存储；path 对 memory 无意义。
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverBadger, "":
		return OpenBadger(path)
	case DriverFile:
		return NewDir(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("未知存储驱动：%q", driver)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key 不能为空")
	}
	return nil
}
