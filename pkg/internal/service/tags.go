package service

import (
	"strings"

	"github.com/yeisme/sharevault/pkg/internal/model"
)

// ParseTags 按逗号切分，去空白、丢弃空段并转小写，重复保留.
func ParseTags(raw string) []string {
	tags := make([]string, 0)

	for _, part := range strings.Split(raw, ",") {
		part = model.Fold(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		tags = append(tags, part)
	}

	return tags
}

// ParseKeywords 按逗号切分搜索词，去空白并丢弃空段；结果为空表示不搜索.
func ParseKeywords(raw string) []string {
	var keywords []string

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		keywords = append(keywords, part)
	}

	return keywords
}

// likeEscape LIKE 的转义字符，各方言都不把它当特殊字符.
const likeEscape = '!'

var likeReplacer = strings.NewReplacer(
	string(likeEscape), string(likeEscape)+string(likeEscape),
	"%", string(likeEscape)+"%",
	"_", string(likeEscape)+"_",
)

// escapeLike 使关键字中的 % _ ! 按字面匹配.
func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}

// containsPattern 大小写不敏感的子串匹配模式.
func containsPattern(keyword string) string {
	return "%" + escapeLike(model.Fold(keyword)) + "%"
}
