package gazetteer

import (
	"regexp"
	"sort"
	"strings"
)

// Lookup 基于成员关系的识别能力，抽取逻辑只依赖该接口
type Lookup interface {
	// Contains 判断词条（大小写不敏感）是否为已知的表面形式
	Contains(term string) bool
}

// Table 词表：规范词条 -> 可识别的表面形式
// 所有比较均在小写形式上进行。Add 只应在构造阶段调用，之后可被多个goroutine只读共享
type Table struct {
	canonical []string                  // 按插入顺序保存的规范词条
	forms     map[string][]string       // 规范词条 -> 表面形式（小写）
	index     map[string]string         // 表面形式（小写） -> 规范词条
	bounded   map[string]*regexp.Regexp // 表面形式 -> 单词边界正则，在 Add 中编译
}

var _ Lookup = (*Table)(nil)

// NewTable 用词条列表创建词表，每个词条的表面形式就是它自身
func NewTable(terms ...string) *Table {
	t := &Table{
		forms:   make(map[string][]string),
		index:   make(map[string]string),
		bounded: make(map[string]*regexp.Regexp),
	}
	for _, term := range terms {
		t.Add(term)
	}
	return t
}

// NewTableFromMap 用 规范词条 -> 别名 映射创建词表，规范词条总是自身的表面形式
func NewTableFromMap(entries map[string][]string) *Table {
	t := NewTable()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.Add(k, entries[k]...)
	}
	return t
}

// Add 添加规范词条及其别名，空白词条被忽略
func (t *Table) Add(canonical string, aliases ...string) {
	key := normalizeTerm(canonical)
	if key == "" {
		return
	}
	if _, ok := t.forms[key]; !ok {
		t.canonical = append(t.canonical, key)
	}
	for _, form := range append([]string{canonical}, aliases...) {
		f := normalizeTerm(form)
		if f == "" {
			continue
		}
		if _, exists := t.index[f]; exists {
			continue
		}
		t.index[f] = key
		t.forms[key] = append(t.forms[key], f)
		t.bounded[f] = boundedPattern(f)
	}
}

// Contains 实现 Lookup
func (t *Table) Contains(term string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[normalizeTerm(term)]
	return ok
}

// Canonical 返回表面形式对应的规范词条（小写）
func (t *Table) Canonical(term string) (string, bool) {
	if t == nil {
		return "", false
	}
	c, ok := t.index[normalizeTerm(term)]
	return c, ok
}

// Len 规范词条数量
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.canonical)
}

// Match 返回在文本中以子串形式出现的规范词条（小写）
func (t *Table) Match(text string) []string {
	if t == nil || text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []string
	for _, c := range t.canonical {
		for _, f := range t.forms[c] {
			if strings.Contains(lower, f) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// MatchWords 与 Match 相同，但要求表面形式在单词边界处出现，
// 避免 "tunis" 命中 "tunisia" 这类情况
func (t *Table) MatchWords(text string) []string {
	if t == nil || text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []string
	for _, c := range t.canonical {
		for _, f := range t.forms[c] {
			if !strings.Contains(lower, f) {
				continue
			}
			if t.bounded[f].MatchString(lower) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func boundedPattern(form string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(form) + `(?:$|[^\p{L}\p{N}])`)
}

func normalizeTerm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
