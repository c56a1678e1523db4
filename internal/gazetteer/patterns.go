package gazetteer

import (
	"regexp"
	"strings"
)

// 基础正则
const (
	degreeExpr = `(?i)(bachelor(?:'s|’s|s)? of [\w \t&]+|master(?:'s|’s|s)? of [\w \t&]+|phd(?: in [\w \t&]+)?)`
	emailExpr  = `\b[\w.-]+@[\w.-]+\.\w+\b`
	phoneExpr  = `\b(?:\+?216)?[\s(]*[2-9][0-9][\s)]*[-\s]?[0-9]{3}[-\s]?[0-9]{3,4}\b`
	yearExpr   = `\b(?:19|20)\d{2}\b`
	digitsExpr = `\d{4}`
)

// Patterns 预编译的正则集合
type Patterns struct {
	Degree  *regexp.Regexp
	Email   *regexp.Regexp
	Phone   *regexp.Regexp
	Link    *regexp.Regexp // 为空时不识别任何链接
	Year    *regexp.Regexp // 1900-2099 的四位年份
	AnyYear *regexp.Regexp // 任意四位数字，用于机构行过滤
}

// NewPatterns 编译正则，domains 为可识别的职业社交网站域名
func NewPatterns(domains []string) *Patterns {
	return &Patterns{
		Degree:  regexp.MustCompile(degreeExpr),
		Email:   regexp.MustCompile(emailExpr),
		Phone:   regexp.MustCompile(phoneExpr),
		Link:    linkPattern(domains),
		Year:    regexp.MustCompile(yearExpr),
		AnyYear: regexp.MustCompile(digitsExpr),
	}
}

func linkPattern(domains []string) *regexp.Regexp {
	quoted := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(d))
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`https?://(?:www\.)?(?:` + strings.Join(quoted, "|") + `)/\S+`)
}
