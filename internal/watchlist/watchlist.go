// Package watchlist 维护用户保存的电影列表（按 IMDb id 去重）。
//
// 约束：
// - 整个列表以 JSON 数组存放在单个 key 下
// - 读-改-写由 Store 内部的互斥锁串行化（单进程）
// - 存储内容无法解析或不满足结构约束时返回 *CorruptError，绝不静默清空；Clear 是恢复手段
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/infra/kv"
	"github.com/John-Robertt/wat2watch/internal/metrics"
)

// Key 是 watchlist 在 kv 中的 key。
const Key = "wat2watch_watchlist"

var (
	// ErrAlreadyPresent 表示同 id 的条目已存在（Add 返回 false）。
	ErrAlreadyPresent = errors.New("watchlist 中已存在该条目")
	// ErrInvalidEntry 表示待保存的条目缺少 id 或标题。
	ErrInvalidEntry = errors.New("watchlist 条目缺少 id 或标题")
	// ErrCorrupt 用于 errors.Is 判断存储损坏。
	ErrCorrupt = errors.New("watchlist 数据损坏")
)

// CorruptError 表示存储中的 watchlist 无法还原为合法列表。
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s（key=%s）：%v", ErrCorrupt.Error(), e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

func (e *CorruptError) ErrorCode() string { return domain.ErrCodeStoreCorrupt }

// document 是解码边界：条目必须带 id/title，且 id 唯一。
type document struct {
	Entries []domain.MovieRecord `validate:"unique=ID,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type Store struct {
	kv kv.Store
	mu sync.Mutex
}

func New(s kv.Store) *Store {
	return &Store{kv: s}
}

// List 返回全部条目（保存顺序）；key 不存在时返回空切片。
func (s *Store) List(ctx context.Context) ([]domain.MovieRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Contains 报告 id 是否已保存。
func (s *Store) Contains(ctx context.Context, id string) (bool, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return indexOf(recs, normalizeID(id)) >= 0, nil
}

// Add 追加一条记录。id 已存在时返回 false 与 ErrAlreadyPresent，列表不变。
func (s *Store) Add(ctx context.Context, rec domain.MovieRecord) (bool, error) {
	rec = Normalize(rec)
	if rec.ID == "" || rec.Title == "" {
		return false, ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if indexOf(recs, rec.ID) >= 0 {
		return false, ErrAlreadyPresent
	}
	if err := s.save(ctx, append(recs, rec)); err != nil {
		return false, err
	}
	return true, nil
}

// Remove 删除 id 匹配的条目并写回剩余部分（可能为空数组）。
func (s *Store) Remove(ctx context.Context, id string) error {
	id = normalizeID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := recs[:0]
	for _, r := range recs {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	return s.save(ctx, kept)
}

// Clear 删除整个 key；存储损坏时同样可用。
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("清空 watchlist 失败：%w", err)
	}
	metrics.WatchlistEntries.Set(0)
	return nil
}

func (s *Store) load(ctx context.Context) ([]domain.MovieRecord, error) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("读取 watchlist 失败：%w", err)
	}
	if !ok {
		metrics.WatchlistEntries.Set(0)
		return []domain.MovieRecord{}, nil
	}
	recs, err := Decode(raw)
	if err != nil {
		return nil, &CorruptError{Key: Key, Err: err}
	}
	metrics.WatchlistEntries.Set(float64(len(recs)))
	return recs, nil
}

func (s *Store) save(ctx context.Context, recs []domain.MovieRecord) error {
	b, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("编码 watchlist 失败：%w", err)
	}
	if err := s.kv.Set(ctx, Key, b); err != nil {
		return fmt.Errorf("写入 watchlist 失败：%w", err)
	}
	metrics.WatchlistEntries.Set(float64(len(recs)))
	return nil
}

// Decode 解析并校验存储形态；JSON null 视为空列表。
func Decode(raw []byte) ([]domain.MovieRecord, error) {
	var recs []domain.MovieRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []domain.MovieRecord{}
	}
	if err := validate.Struct(document{Entries: recs}); err != nil {
		return nil, err
	}
	return recs, nil
}

// Normalize 返回条目的保存形态：id/标题 trim，IMDb id 统一为小写。
func Normalize(rec domain.MovieRecord) domain.MovieRecord {
	rec.ID = normalizeID(rec.ID)
	rec.Title = strings.TrimSpace(rec.Title)
	return rec
}

func normalizeID(id string) string {
	if tid, ok := domain.ParseID(id); ok {
		return tid
	}
	return strings.TrimSpace(id)
}

func indexOf(recs []domain.MovieRecord, id string) int {
	for i, r := range recs {
		if r.ID == id {
			return i
		}
	}
	return -1
}
