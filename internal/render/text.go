package render

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// 终端配色与 HTML 页面保持一致（品牌红 + 金色评分）。
var (
	brand = lipgloss.Color("#E50914")
	gold  = lipgloss.Color("#FFC107")
	muted = lipgloss.Color("#8A8A8A")
)

// TextStyles 是终端卡片的样式集合。
type TextStyles struct {
	Card    lipgloss.Style
	Title   lipgloss.Style
	Rating  lipgloss.Style
	Meta    lipgloss.Style
	Tag     lipgloss.Style
	Link    lipgloss.Style
	Saved   lipgloss.Style
	Status  lipgloss.Style
	Empty   lipgloss.Style
	Problem lipgloss.Style
}

// DefaultTextStyles 返回宽度为 width 的卡片样式（width<=0 时取 80）。
func DefaultTextStyles(width int) TextStyles {
	if width <= 0 {
		width = 80
	}
	return TextStyles{
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1).
			Width(width - 2),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(brand),
		Rating:  lipgloss.NewStyle().Foreground(gold),
		Meta:    lipgloss.NewStyle().Foreground(muted),
		Tag:     lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder(), false, true),
		Link:    lipgloss.NewStyle().Underline(true),
		Saved:   lipgloss.NewStyle().Foreground(gold).Bold(true),
		Status:  lipgloss.NewStyle().Italic(true).Foreground(muted),
		Empty:   lipgloss.NewStyle().Padding(1, 2).Foreground(muted),
		Problem: lipgloss.NewStyle().Padding(1, 2).Foreground(brand),
	}
}

// TextCard 渲染一张终端卡片。
func TextCard(c Card, st TextStyles) string {
	var b strings.Builder

	title := st.Title.Render(c.Title)
	if c.Saved {
		title += " " + st.Saved.Render("♥ saved")
	}
	b.WriteString(title)
	b.WriteByte('\n')

	meta := []string{st.Rating.Render("★ " + c.Rating), c.Year}
	if c.Runtime != "" {
		meta = append(meta, c.Runtime)
	}
	b.WriteString(st.Meta.Render(strings.Join(meta, "  ")))
	b.WriteByte('\n')

	if len(c.Genres) > 0 {
		tags := make([]string, 0, len(c.Genres))
		for _, g := range c.Genres {
			tags = append(tags, st.Tag.Render(g))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tags...))
		b.WriteByte('\n')
	}

	if !c.HasPoster() {
		b.WriteString(st.Meta.Render("[" + NoPoster + "]"))
		b.WriteByte('\n')
	}
	b.WriteString(c.Plot)
	if c.IMDbURL != "" {
		b.WriteByte('\n')
		b.WriteString(st.Link.Render(c.IMDbURL))
	}
	return st.Card.Render(b.String())
}

// Text 把状态与卡片写到终端。
func Text(w io.Writer, status StatusView, cards []Card, st TextStyles) error {
	var b strings.Builder
	switch {
	case status.Empty != "" && status.IsError:
		b.WriteString(st.Problem.Render(status.Empty))
		b.WriteByte('\n')
	case status.Empty != "":
		b.WriteString(st.Empty.Render(status.Empty))
		b.WriteByte('\n')
	default:
		for _, c := range cards {
			b.WriteString(TextCard(c, st))
			b.WriteByte('\n')
		}
	}
	if status.Message != "" {
		b.WriteString(st.Status.Render(status.Message))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
