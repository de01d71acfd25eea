package render

import (
	"fmt"

	"github.com/John-Robertt/wat2watch/internal/app/view"
	"github.com/John-Robertt/wat2watch/internal/domain"
)

const (
	IdleMessage    = "Pick some filters and hit search to get recommendations."
	LoadingMessage = "Connecting to the movie service..."
	EmptyMessage   = "No matches found for your filters."
)

// StatusView 是结果区上方的状态行与结果区的空态文案。
// Message 为空表示隐藏状态行；Empty 为空表示展示卡片。
type StatusView struct {
	Message string
	Empty   string
	IsError bool
}

// Status 把快照映射为用户可见的状态文案。
func Status(s view.Snapshot) StatusView {
	switch s.Status {
	case view.StatusLoading:
		return StatusView{Message: LoadingMessage, Empty: LoadingMessage}
	case view.StatusOK:
		return StatusView{Message: fmt.Sprintf("Showing %d results sorted by %s.", len(s.Result.Records), s.Criteria.Sort.Normalize())}
	case view.StatusEmpty:
		return StatusView{Empty: EmptyMessage}
	case view.StatusError:
		if s.ErrCode == domain.ErrCodeNoResults && s.Err != "" {
			return StatusView{Empty: s.Err}
		}
		return StatusView{Empty: fmt.Sprintf("Connection Error: %s", s.Err), IsError: true}
	default:
		return StatusView{Empty: IdleMessage}
	}
}
