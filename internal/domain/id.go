package domain

import (
	"regexp"
	"strings"
)

// IMDb id 形如 tt1375666（tt + 7~9 位数字）。
var (
	idRE       = regexp.MustCompile(`^tt[0-9]{7,9}$`)
	idInTextRE = regexp.MustCompile(`(?i)\b(tt[0-9]{7,9})\b`)
)

// ParseID 校验 IMDb id；大小写不敏感，输出统一为小写。
func ParseID(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !idRE.MatchString(s) {
		return "", false
	}
	return s, true
}

// ExtractID 从一段文本（通常是 https://www.imdb.com/title/<id>/ 链接）里提取唯一的 IMDb id。
// 出现多个不同 id 时视为无法确定，返回 false；宁可缺失也不要猜错。
func ExtractID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	var found string
	for _, m := range idInTextRE.FindAllStringSubmatch(s, -1) {
		id, ok := ParseID(m[1])
		if !ok {
			continue
		}
		if found != "" && found != id {
			return "", false
		}
		found = id
	}
	return found, found != ""
}
