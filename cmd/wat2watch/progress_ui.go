package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/wat2watch/internal/app/pipeline"
	"github.com/John-Robertt/wat2watch/internal/domain"
)

var _ pipeline.Observer = (*progressUI)(nil)

// progressUI 是交互终端下 search 的进度输出。
//
// 约束：
// - 只写 stderr（或 fallback 到 stdout 的 TTY），不污染 stdout 的 JSON 契约
// - 事件驱动：pipeline 只发事件，这里决定如何展示
// - keepalive：上游迟迟不返回时定期输出一行等待提示
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time
	source      string

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 3 * time.Second,
		tickerInterval:     time.Second,
	}
}

func (p *progressUI) OnStart(source, term string, c domain.FilterCriteria) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = now
	p.source = source
	fmt.Fprintf(p.w, "[%s] 搜索 %q（source=%s）\n", now.Format("15:04:05"), truncate(term, 60), source)
	if f := describeCriteria(c); f != "" {
		fmt.Fprintf(p.w, "  筛选: %s\n", f)
	}
	p.lastPrinted = now
	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case pipeline.PhaseFetch:
		fmt.Fprintf(p.w, "  抓取: candidates=%d (%s)\n", intField(fields, "candidates"), formatShortDuration(dur))
	case pipeline.PhaseFilter:
		fmt.Fprintf(p.w, "  过滤: kept=%d dropped=%d\n", intField(fields, "kept"), intField(fields, "dropped"))
	case pipeline.PhaseSort:
		fmt.Fprintf(p.w, "  排序: %v\n", fields["order"])
	default:
		fmt.Fprintf(p.w, "  %s (%s)\n", name, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnFinish(res domain.Result, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTickerLocked()
	if err != nil {
		fmt.Fprintf(p.w, "  失败: %s: %s (%s)\n\n", domain.ErrorCode(err), truncate(err.Error(), 160), formatShortDuration(dur))
		return
	}
	fmt.Fprintf(p.w, "  完成: results=%d (%s)\n\n", len(res.Records), formatShortDuration(dur))
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 3 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "  等待 %s 响应… elapsed=%s\n", p.source, formatElapsed(time.Since(p.startedAt)))
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func describeCriteria(c domain.FilterCriteria) string {
	var parts []string
	if g := strings.TrimSpace(c.Genre); g != "" {
		parts = append(parts, "genre="+g)
	}
	if c.MinYear != nil {
		parts = append(parts, fmt.Sprintf("min_year=%d", *c.MinYear))
	}
	if c.MaxYear != nil {
		parts = append(parts, fmt.Sprintf("max_year=%d", *c.MaxYear))
	}
	if c.MinRating != nil {
		parts = append(parts, fmt.Sprintf("min_rating=%g", *c.MinRating))
	}
	if s := c.Sort.Normalize(); s != domain.SortRelevance {
		parts = append(parts, "sort="+string(s))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
