package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/wat2watch/internal/infra/fsx"
)

// Dir 把每个 key 存为 <Root>/<key>.json（原子替换写入）。
// 文件内容就是原始值，便于用户直接查看或手工修复。
type Dir struct {
	Root string
}

var fileKeyRE = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func NewDir(root string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("file 存储需要目录路径")
	}
	return &Dir{Root: filepath.Clean(root)}, nil
}

// Path 返回 key 对应的文件路径。
func (d *Dir) Path(key string) (string, error) {
	name, err := fileName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.Root, name), nil
}

func (d *Dir) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p, err := d.Path(key)
	if err != nil {
		return nil, false, err
	}
	return fsx.ReadFile(p)
}

func (d *Dir) Set(ctx context.Context, key string, val []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := fileName(key)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(d.Root, name, val)
}

func (d *Dir) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.Path(key)
	if err != nil {
		return err
	}
	return fsx.RemoveFile(p)
}

func (d *Dir) Close() error { return nil }

// fileName 只允许安全字符，避免路径穿越。
func fileName(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if !fileKeyRE.MatchString(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("非法 key：%q", key)
	}
	return key + ".json", nil
}
