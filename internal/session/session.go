// Package session 是本地“登录”状态：任意非空标识原样保存，不做认证。
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/wat2watch/internal/infra/kv"
)

// Key 是登录标识在 kv 中的 key。
const Key = "wat2watch_user"

// ErrBlankID 表示登录标识为空白。
var ErrBlankID = errors.New("登录标识不能为空")

type Store struct {
	kv kv.Store
}

func New(s kv.Store) *Store {
	return &Store{kv: s}
}

// Login 保存 id（原样保存，不 trim）。
func (s *Store) Login(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrBlankID
	}
	if err := s.kv.Set(ctx, Key, []byte(id)); err != nil {
		return fmt.Errorf("保存登录状态失败：%w", err)
	}
	return nil
}

func (s *Store) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("清除登录状态失败：%w", err)
	}
	return nil
}

// Current 返回当前登录标识；未登录时 ok=false。
func (s *Store) Current(ctx context.Context) (id string, ok bool, err error) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return "", false, fmt.Errorf("读取登录状态失败：%w", err)
	}
	if !ok || strings.TrimSpace(string(raw)) == "" {
		return "", false, nil
	}
	return string(raw), true, nil
}

// ShortName 返回展示用名字：邮箱取 @ 之前的部分。
func ShortName(id string) string {
	if i := strings.IndexByte(id, '@'); i > 0 {
		return id[:i]
	}
	return id
}
