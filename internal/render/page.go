package render

import (
	"embed"
	"html/template"
	"io"
	"strconv"

	"github.com/John-Robertt/wat2watch/internal/app/view"
	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/query"
	"github.com/John-Robertt/wat2watch/internal/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTmpl = template.Must(template.New("page.html.tmpl").ParseFS(templateFS, "templates/page.html.tmpl"))

// SortOption 是排序下拉框的一项。
type SortOption struct {
	Value    string
	Label    string
	Selected bool
}

// FormState 用于回填搜索表单。
type FormState struct {
	Names     query.FieldNames
	Keyword   string
	Genre     string
	MinYear   string
	MaxYear   string
	MinRating string
	Sorts     []SortOption
}

// PageData 是主页模板的输入。
type PageData struct {
	Status    StatusView
	Cards     []Card
	Watchlist []Card
	// WatchlistError 非空时代替 watchlist 列表展示（例如存储损坏）。
	WatchlistError string
	User           string
	LoggedIn       bool
	Form           FormState
}

// NewPageData 组装主页数据；watchlist 中的 id 会把对应结果卡片标记为已保存。
func NewPageData(snap view.Snapshot, watchlist []domain.MovieRecord, user string) PageData {
	saved := make(map[string]bool, len(watchlist))
	for _, r := range watchlist {
		saved[r.ID] = true
	}
	isSaved := func(id string) bool { return saved[id] }

	d := PageData{
		Status:    Status(snap),
		Cards:     NewCards(snap.Result.Records, isSaved),
		Watchlist: NewCards(watchlist, func(string) bool { return true }),
		Form:      formState(snap.Criteria),
	}
	if user != "" {
		d.User = session.ShortName(user)
		d.LoggedIn = true
	}
	return d
}

// Page 渲染完整 HTML 页面。
func Page(w io.Writer, d PageData) error {
	return pageTmpl.Execute(w, d)
}

func formState(c domain.FilterCriteria) FormState {
	f := FormState{
		Names:   query.FormFieldNames,
		Keyword: c.Keyword,
		Genre:   c.Genre,
	}
	if c.MinYear != nil {
		f.MinYear = strconv.Itoa(*c.MinYear)
	}
	if c.MaxYear != nil {
		f.MaxYear = strconv.Itoa(*c.MaxYear)
	}
	if c.MinRating != nil {
		f.MinRating = strconv.FormatFloat(*c.MinRating, 'f', -1, 64)
	}
	cur := c.Sort.Normalize()
	for _, o := range []struct {
		v     domain.SortOrder
		label string
	}{
		{domain.SortRelevance, "Relevance"},
		{domain.SortRating, "Highest rated"},
		{domain.SortNewest, "Newest first"},
		{domain.SortOldest, "Oldest first"},
	} {
		f.Sorts = append(f.Sorts, SortOption{Value: string(o.v), Label: o.label, Selected: o.v == cur})
	}
	return f
}
