package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText 规范化提取出的文本，保留行结构（抽取启发式按行工作）
// NFC 规范化，各类空白折叠为单个空格，行首尾空白去除，连续空行压缩为一个
func NormalizeText(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.FieldsFunc(line, isHorizontalSpace), " ")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isHorizontalSpace(r rune) bool {
	return r != '\n' && (unicode.IsSpace(r) || r == '\u200b' || r == '\ufeff')
}

// englishStopWords 常见英文停用词
var englishStopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`i me my myself we our ours ourselves you your yours yourself yourselves
		he him his himself she her hers herself it its itself they them their theirs themselves what which who whom
		this that these those am is are was were be been being have has had having do does did doing a an the and
		but if or because as until while of at by for with about against between into through during before after
		above below to from up down in out on off over under again further then once here there when where why how
		all any both each few more most other some such no nor not only own same so than too very s t can will just
		don should now d ll m o re ve y ain aren couldn didn doesn hadn hasn haven isn ma mightn mustn needn shan
		shouldn wasn weren won wouldn`) {
		englishStopWords[w] = struct{}{}
	}
}

// CleanForIndex 生成用于检索的清洗文本：小写，只保留字母，去掉停用词
func CleanForIndex(text string) string {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	kept := words[:0]
	for _, w := range words {
		if _, stop := englishStopWords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
