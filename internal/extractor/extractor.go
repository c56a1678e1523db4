package extractor

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cvision/internal/gazetteer"
	"cvision/internal/types"
	"cvision/internal/utils"
)

// EntityExtractor 基于正则、词表和位置启发式的实体抽取器
// 只持有只读状态，可被多个goroutine并发使用
type EntityExtractor struct {
	gaz      *gazetteer.Gazetteer
	skills   SkillStrategy
	settings Settings
	now      Clock
	log      zerolog.Logger
}

// New 创建抽取器，g 为 nil 时使用默认词表
func New(g *gazetteer.Gazetteer, opts ...Option) *EntityExtractor {
	if g == nil {
		g = gazetteer.Default()
	}
	e := &EntityExtractor{
		gaz:      g,
		skills:   NewKeywordSkillStrategy(g.Skills),
		settings: DefaultSettings(),
		now:      time.Now,
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SkillStrategy 当前使用的技能策略
func (e *EntityExtractor) SkillStrategy() SkillStrategy {
	return e.skills
}

// Extract 从文本中抽取档案，从不失败
// 每个字段独立抽取，单个字段的异常只会让该字段为空
func (e *EntityExtractor) Extract(doc types.ResumeText) *types.ExtractedProfile {
	text := doc.RawText
	p := types.NewExtractedProfile(doc.Filename)

	e.guard(doc.Filename, "name", func() { p.Name = e.ExtractName(text) })
	e.guard(doc.Filename, "locations", func() { p.Locations = e.ExtractLocations(text) })
	e.guard(doc.Filename, "education_institutions", func() { p.EducationInstitutions = e.ExtractInstitutions(text) })
	e.guard(doc.Filename, "degrees", func() { p.Degrees = e.ExtractDegrees(text) })
	e.guard(doc.Filename, "emails", func() { p.Emails = e.ExtractEmails(text) })
	e.guard(doc.Filename, "phones", func() { p.Phones = e.ExtractPhones(text) })
	e.guard(doc.Filename, "skills", func() { p.Skills = types.UniqueSorted(e.skills.Skills(text)) })
	e.guard(doc.Filename, "job_titles", func() { p.JobTitles = titled(e.gaz.JobTitles.Match(text)) })
	e.guard(doc.Filename, "languages_spoken", func() { p.LanguagesSpoken = titled(e.gaz.Languages.Match(text)) })
	e.guard(doc.Filename, "certifications", func() { p.Certifications = titled(e.gaz.Certifications.Match(text)) })
	e.guard(doc.Filename, "links", func() { p.Links = e.ExtractLinks(text) })
	e.guard(doc.Filename, "experience_years", func() { p.ExperienceYears = e.EstimateExperienceYears(text) })
	e.guard(doc.Filename, "summary", func() { p.Summary = e.ExtractSummary(text) })

	// 被中断的字段可能留下 nil
	p.Normalize()
	return p
}

func (e *EntityExtractor) guard(filename, field string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().
				Str("filename", filename).
				Str("field", field).
				Interface("panic", r).
				Msg("字段抽取异常，该字段置空")
		}
	}()
	fn()
}

// ExtractName 在前几行非空行中寻找 2-3 个单词且每个单词（长度>1）首字母大写的行
func (e *EntityExtractor) ExtractName(text string) string {
	lines := nonBlankLines(text)
	if len(lines) > e.settings.NameScanLines {
		lines = lines[:e.settings.NameScanLines]
	}
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 3 {
			continue
		}
		ok := true
		for _, w := range words {
			if utf8.RuneCountInString(w) <= 1 {
				continue
			}
			r, _ := utf8.DecodeRuneInString(w)
			if !unicode.IsUpper(r) {
				ok = false
				break
			}
		}
		if ok {
			return line
		}
	}
	return ""
}

// ExtractDegrees 匹配 bachelor of / master of / phd (in) 短语
func (e *EntityExtractor) ExtractDegrees(text string) []string {
	matches := e.gaz.Patterns.Degree.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m = utils.CollapseSpaces(m); m != "" {
			out = append(out, utils.TitleCase(m))
		}
	}
	return types.UniqueSorted(out)
}

// ExtractInstitutions 含机构关键词且不含四位数字的行视为机构名
func (e *EntityExtractor) ExtractInstitutions(text string) []string {
	var out []string
	for _, line := range splitLines(text) {
		lower := strings.ToLower(line)
		if !containsAny(lower, e.gaz.InstitutionKeywords) {
			continue
		}
		// 含年份的行通常是时间段而不是机构名
		if e.gaz.Patterns.AnyYear.MatchString(line) {
			continue
		}
		name := utils.CollapseSpaces(utils.StripBracketQuotes(line))
		if name != "" {
			out = append(out, utils.TitleCase(name))
		}
	}
	return types.UniqueSorted(out)
}

// ExtractLocations 以单词边界匹配地名词表，输出规范地名；本国名始终输出为本国名
func (e *EntityExtractor) ExtractLocations(text string) []string {
	var out []string
	for _, c := range e.gaz.Locations.MatchWords(text) {
		if e.gaz.IsHomeCountry(c) {
			out = append(out, e.gaz.HomeCountry())
			continue
		}
		out = append(out, utils.TitleCase(c))
	}
	return types.UniqueSorted(out)
}

func (e *EntityExtractor) ExtractEmails(text string) []string {
	return types.UniqueSorted(e.gaz.Patterns.Email.FindAllString(text, -1))
}

func (e *EntityExtractor) ExtractPhones(text string) []string {
	return types.UniqueSorted(e.gaz.Patterns.Phone.FindAllString(text, -1))
}

// ExtractLinks 职业社交网站链接，小写，保留顺序和重复
func (e *EntityExtractor) ExtractLinks(text string) []string {
	if e.gaz.Patterns.Link == nil {
		return []string{}
	}
	links := e.gaz.Patterns.Link.FindAllString(strings.ToLower(text), -1)
	if links == nil {
		return []string{}
	}
	return links
}

// EstimateExperienceYears 从经验段落中的年份跨度估算工作年限
// 段落 = 第一个含经验关键词的行 + 后续窗口内的行；
// 至少两个年份，最大年份截断到当前年份，最小年份早于下限或跨度不为正时返回 nil
func (e *EntityExtractor) EstimateExperienceYears(text string) *int {
	lines := splitLines(text)
	start := -1
	for i, line := range lines {
		if containsAny(strings.ToLower(line), e.gaz.ExperienceKeywords) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	end := start + e.settings.ExperienceWindow
	if end > len(lines) {
		end = len(lines)
	}
	block := strings.Join(lines[start:end], "\n")

	tokens := e.gaz.Patterns.Year.FindAllString(block, -1)
	if len(tokens) < 2 {
		return nil
	}
	years := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		y, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	if len(years) < 2 {
		return nil
	}
	sort.Ints(years)
	minYear, maxYear := years[0], years[len(years)-1]
	if current := e.now().Year(); maxYear > current {
		maxYear = current
	}
	if minYear < e.settings.MinExperienceYear || maxYear <= minYear {
		return nil
	}
	span := maxYear - minYear
	return &span
}

// ExtractSummary 前若干非空行中第一条足够长且不含段落标题关键词的行
func (e *EntityExtractor) ExtractSummary(text string) *string {
	lines := nonBlankLines(text)
	if len(lines) > e.settings.SummaryScanLines {
		lines = lines[:e.settings.SummaryScanLines]
	}
	for _, line := range lines {
		if len(strings.Fields(line)) < e.settings.SummaryMinWords {
			continue
		}
		if containsAny(strings.ToLower(line), e.gaz.SummaryStopKeywords) {
			continue
		}
		summary := line
		return &summary
	}
	return nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func nonBlankLines(text string) []string {
	var out []string
	for _, l := range splitLines(text) {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
