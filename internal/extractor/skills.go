package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"cvision/internal/gazetteer"
	"cvision/internal/types"
	"cvision/internal/utils"
)

// 技能策略名称
const (
	SkillStrategyKeyword = "keyword"
	SkillStrategyPhrase  = "phrase"
)

// SkillStrategy 技能抽取策略
type SkillStrategy interface {
	Name() string
	// Skills 返回去重排序后的技能（标题格式）
	Skills(text string) []string
}

// NewSkillStrategy 按名称创建策略，空名称使用 keyword
func NewSkillStrategy(name string, g *gazetteer.Gazetteer) (SkillStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SkillStrategyKeyword:
		return NewKeywordSkillStrategy(g.Skills), nil
	case SkillStrategyPhrase:
		return NewPhraseSkillStrategy(), nil
	default:
		return nil, fmt.Errorf("未知的技能抽取策略: %s", name)
	}
}

// KeywordSkillStrategy 技能词表子串匹配
type KeywordSkillStrategy struct {
	table *gazetteer.Table
}

func NewKeywordSkillStrategy(table *gazetteer.Table) *KeywordSkillStrategy {
	return &KeywordSkillStrategy{table: table}
}

func (s *KeywordSkillStrategy) Name() string { return SkillStrategyKeyword }

func (s *KeywordSkillStrategy) Skills(text string) []string {
	return titled(s.table.Match(text))
}

// phraseStopWords 用于切分候选短语
var phraseStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "i": {}, "my": {}, "me": {}, "we": {},
	"our": {}, "you": {}, "your": {}, "he": {}, "she": {}, "it": {}, "its": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "have": {}, "has": {}, "had": {}, "using": {},
	"including": {}, "also": {}, "very": {}, "into": {}, "over": {}, "about": {},
}

var phraseSeparators = regexp.MustCompile(`[,;:.!?()\[\]{}|/\\•·"“”«»\t\r\n]+|\s[-–—]\s`)

// PhraseSkillStrategy 名词短语启发式：在标点和停用词处切分，
// 保留长度在 (MinLen, MaxLen) 之间的候选短语
type PhraseSkillStrategy struct {
	MinLen int // 不含
	MaxLen int // 不含
}

func NewPhraseSkillStrategy() *PhraseSkillStrategy {
	return &PhraseSkillStrategy{MinLen: 1, MaxLen: 50}
}

func (s *PhraseSkillStrategy) Name() string { return SkillStrategyPhrase }

func (s *PhraseSkillStrategy) Skills(text string) []string {
	var out []string
	for _, segment := range phraseSeparators.Split(text, -1) {
		var current []string
		flush := func() {
			if len(current) == 0 {
				return
			}
			phrase := strings.Join(current, " ")
			current = current[:0]
			n := len([]rune(phrase))
			if n > s.MinLen && n < s.MaxLen && hasLetter(phrase) {
				out = append(out, utils.TitleCase(phrase))
			}
		}
		for _, word := range strings.Fields(segment) {
			if _, stop := phraseStopWords[strings.ToLower(word)]; stop {
				flush()
				continue
			}
			current = append(current, word)
		}
		flush()
	}
	return types.UniqueSorted(out)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func titled(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, utils.TitleCase(t))
	}
	return types.UniqueSorted(out)
}
