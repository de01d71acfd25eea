package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/wat2watch/internal/app/view"
	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/logging"
	"github.com/John-Robertt/wat2watch/internal/render"
)

type searchArgs struct {
	genre     string
	minYear   int
	maxYear   int
	minRating float64
	sort      string
}

func newSearchCmd(c *cli) *cobra.Command {
	var sa searchArgs
	cmd := &cobra.Command{
		Use:   "search [keyword...]",
		Short: "Recommend movies matching the given filters",
		Long: `按关键词与筛选条件获取推荐。

stdout 是终端：输出卡片；否则 stdout 只输出一个 JSON 快照，摘要写 stderr。
上游失败时退出码为 1（“无匹配”不算失败）。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			crit, err := sa.criteria(cmd, args)
			if err != nil {
				return err
			}
			return c.search(cmd.Context(), crit)
		},
	}
	f := cmd.Flags()
	f.StringVar(&sa.genre, "genre", "", "类型（子串匹配，大小写不敏感），例如 Action")
	f.IntVar(&sa.minYear, "min-year", 0, "最早年份（含）")
	f.IntVar(&sa.maxYear, "max-year", 0, "最晚年份（含）")
	f.Float64Var(&sa.minRating, "min-rating", 0, "最低 IMDb 评分（含）")
	f.StringVar(&sa.sort, "sort", "", "排序：relevance|rating|newest|oldest")
	return cmd
}

// criteria 只把显式指定的 flag 写入 FilterCriteria。
func (sa searchArgs) criteria(cmd *cobra.Command, args []string) (domain.FilterCriteria, error) {
	f := cmd.Flags()
	crit := domain.FilterCriteria{
		Keyword: strings.TrimSpace(strings.Join(args, " ")),
		Genre:   strings.TrimSpace(sa.genre),
	}
	if f.Changed("min-year") {
		crit.MinYear = domain.IntPtr(sa.minYear)
	}
	if f.Changed("max-year") {
		crit.MaxYear = domain.IntPtr(sa.maxYear)
	}
	if f.Changed("min-rating") {
		crit.MinRating = domain.FloatPtr(sa.minRating)
	}
	sort, ok := domain.ParseSort(sa.sort)
	if !ok {
		return domain.FilterCriteria{}, usagef("--sort 只能是 relevance|rating|newest|oldest，实际是 %q", sa.sort)
	}
	crit.Sort = sort
	return crit, nil
}

func (c *cli) search(ctx context.Context, crit domain.FilterCriteria) error {
	a, err := newApp(c.cfg)
	if err != nil {
		c.emitSearchError(err)
		return &exitError{code: exitFailure, err: err}
	}
	defer a.Close()

	p := a.pipeline()
	if w, ok := c.progressWriter(); ok {
		p.Observer = newProgressUI(w)
	}
	snap, _ := view.New(p).Submit(ctx, crit)

	if c.outTTY {
		if err := c.printCards(ctx, a, snap); err != nil {
			return &exitError{code: exitFailure, err: err}
		}
	} else {
		if err := writeJSON(c.out, snap); err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		fmt.Fprintf(c.err, "完成：status=%s count=%d source=%s\n", snap.Status, len(snap.Result.Records), snap.Result.Source)
	}

	if failed(snap) {
		return &exitError{code: exitFailure}
	}
	return nil
}

// emitSearchError 在 stdout 非 TTY 时仍输出一个 error 快照，保证 JSON 契约。
func (c *cli) emitSearchError(err error) {
	if c.outTTY {
		return
	}
	_ = writeJSON(c.out, view.Snapshot{
		Status:    view.StatusError,
		Result:    domain.Result{Records: []domain.MovieRecord{}},
		Err:       err.Error(),
		ErrCode:   domain.ErrorCode(err),
		UpdatedAt: time.Now(),
	})
}

// failed 判断快照是否应以退出码 1 结束；“无匹配”只是空结果。
func failed(s view.Snapshot) bool {
	return s.Status == view.StatusError && s.ErrCode != domain.ErrCodeNoResults
}

func (c *cli) printCards(ctx context.Context, a *app, snap view.Snapshot) error {
	saved := map[string]bool{}
	if wl, err := a.watchlist(); err != nil {
		logging.Debug().Err(err).Msg("读取 watchlist 失败，卡片不标记已收藏")
	} else if recs, err := wl.List(ctx); err != nil {
		logging.Debug().Err(err).Msg("读取 watchlist 失败，卡片不标记已收藏")
	} else {
		for _, r := range recs {
			saved[r.ID] = true
		}
	}

	cards := render.NewCards(snap.Result.Records, func(id string) bool { return saved[id] })
	return render.Text(c.out, render.Status(snap), cards, render.DefaultTextStyles(0))
}

// progressWriter 只在交互终端启用进度输出：优先 stderr，其次 stdout。
func (c *cli) progressWriter() (io.Writer, bool) {
	if c.errTTY {
		return c.err, true
	}
	if c.outTTY {
		return c.out, true
	}
	return nil, false
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
