package watchlist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/infra/kv"
)

func movie(id, title string) domain.MovieRecord {
	return domain.MovieRecord{ID: id, Title: title, Year: domain.IntPtr(1999), Genres: []string{"Drama"}}
}

func TestList_EmptyWhenKeyAbsent(t *testing.T) {
	s := New(kv.NewMemory())
	got, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAdd_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	added, err := s.Add(ctx, movie("tt0133093", "The Matrix"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Add(ctx, movie("tt0133093", "The Matrix (again)"))
	assert.False(t, added)
	assert.ErrorIs(t, err, ErrAlreadyPresent)

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "The Matrix", got[0].Title)
}

func TestAdd_RejectsInvalid(t *testing.T) {
	s := New(kv.NewMemory())
	for _, rec := range []domain.MovieRecord{{Title: "No Id"}, {ID: "tt0000001", Title: "  "}} {
		added, err := s.Add(context.Background(), rec)
		assert.False(t, added)
		assert.ErrorIs(t, err, ErrInvalidEntry)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s := New(store)
	for _, r := range []domain.MovieRecord{movie("tt1", "A"), movie("tt2", "B"), movie("tt3", "C")} {
		_, err := s.Add(ctx, r)
		require.NoError(t, err)
	}

	require.NoError(t, s.Remove(ctx, "tt2"))
	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tt1", "tt3"}, []string{got[0].ID, got[1].ID})

	require.NoError(t, s.Remove(ctx, "missing"))
	require.NoError(t, s.Remove(ctx, "tt1"))
	require.NoError(t, s.Remove(ctx, "tt3"))

	raw, ok, err := store.Get(ctx, Key)
	require.NoError(t, err)
	require.True(t, ok, "移除最后一条后仍写回空数组")
	assert.JSONEq(t, `[]`, string(raw))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s := New(store)
	for _, r := range []domain.MovieRecord{movie("tt1", "A"), movie("tt2", "B"), movie("tt3", "C")} {
		_, err := s.Add(ctx, r)
		require.NoError(t, err)
	}

	require.NoError(t, s.Clear(ctx))
	_, ok, err := store.Get(ctx, Key)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContains(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())
	_, err := s.Add(ctx, movie("tt1", "A"))
	require.NoError(t, err)

	ok, err := s.Contains(ctx, " tt1 ")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Contains(ctx, "tt2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptData(t *testing.T) {
	cases := []struct{ name, raw string }{
		{"非 JSON", `{not json`},
		{"不是数组", `{"id":"tt1"}`},
		{"缺少标题", `[{"id":"tt1"}]`},
		{"缺少 id", `[{"title":"A"}]`},
		{"id 重复", `[{"id":"tt1","title":"A"},{"id":"tt1","title":"B"}]`},
	}
	for _, tc := range cases {
		raw := tc.raw
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := kv.NewMemory()
			require.NoError(t, store.Set(ctx, Key, []byte(raw)))
			s := New(store)

			_, err := s.List(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorrupt))
			assert.Equal(t, domain.ErrCodeStoreCorrupt, domain.ErrorCode(err))

			_, err = s.Add(ctx, movie("tt9", "Z"))
			assert.ErrorIs(t, err, ErrCorrupt)
			assert.ErrorIs(t, s.Remove(ctx, "tt1"), ErrCorrupt)

			raw2, _, err := store.Get(ctx, Key)
			require.NoError(t, err)
			assert.Equal(t, raw, string(raw2), "损坏数据不应被静默覆盖")

			require.NoError(t, s.Clear(ctx))
			got, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestDecode_Null(t *testing.T) {
	got, err := Decode([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAdd_ConcurrentSameID(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Add(ctx, movie("tt1", "A")); ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAdd_NormalizesIMDbID(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	added, err := s.Add(ctx, movie(" TT0111161 ", "  The Shawshank Redemption "))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Add(ctx, movie("tt0111161", "The Shawshank Redemption"))
	assert.False(t, added, "大小写不同的同一 IMDb id 不应重复保存")
	assert.ErrorIs(t, err, ErrAlreadyPresent)

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tt0111161", got[0].ID)
	assert.Equal(t, "The Shawshank Redemption", got[0].Title)

	has, err := s.Contains(ctx, "TT0111161")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Remove(ctx, "TT0111161"))
	got, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalize(t *testing.T) {
	got := Normalize(domain.MovieRecord{ID: " TT0133093\t", Title: " The Matrix "})
	assert.Equal(t, "tt0133093", got.ID)
	assert.Equal(t, "The Matrix", got.Title)

	// 非 IMDb id 只做 trim。
	assert.Equal(t, "Custom-1", Normalize(domain.MovieRecord{ID: " Custom-1 "}).ID)
}
