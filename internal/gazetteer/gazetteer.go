package gazetteer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cvision/internal/utils"
)

// DefaultHomeCountry 默认本国，单独出现的城市名按该国家补全
const DefaultHomeCountry = "Tunisia"

// 默认词表
var (
	DefaultLocations = []string{
		"tunis", "bizerte", "sousse", "sfax", "gabes", "nabeul", "beja",
		"tataouine", "tozeur", "kairouan", "gafsa", "kasserine", "medenine",
		"monastir", "kebili", "mahdia", "manouba", "siliana", "zaghouan",
		"ariana", "ben arous", "jendouba", "tunisia",
	}

	DefaultInstitutionKeywords = []string{"university", "institute", "faculty", "school", "college", "academy"}

	DefaultJobTitles = []string{
		"data scientist", "data analyst", "software engineer", "developer", "project manager",
		"system administrator", "hr manager", "marketing manager", "technical support", "it engineer",
		"business analyst", "cloud engineer", "frontend developer", "backend developer", "network engineer",
	}

	DefaultLanguages = []string{"arabic", "english", "french", "german", "spanish", "italian", "russian", "chinese"}

	DefaultCertifications = []string{
		"aws certified", "google cloud certified", "azure certified", "scrum master",
		"ccna", "ccnp", "pmp", "comptia", "microsoft certified", "oracle certified", "cissp", "cyberops",
	}

	DefaultSkills = []string{
		"python", "java", "javascript", "typescript", "golang", "c++", "c#", "php", "sql", "nosql",
		"mysql", "postgresql", "mongodb", "html", "css", "react", "angular", "vue", "node.js", "django",
		"flask", "spring", "docker", "kubernetes", "linux", "git", "aws", "azure", "google cloud",
		"machine learning", "deep learning", "data analysis", "power bi", "tableau",
		"tensorflow", "pytorch", "networking", "cisco", "agile", "scrum",
	}

	DefaultExperienceKeywords = []string{"experience", "work history", "employment", "professional background"}

	DefaultSummaryStopKeywords = []string{"experience", "education", "skills", "projects", "contact", "certifications"}

	DefaultLinkDomains = []string{"linkedin.com", "github.com"}
)

// Lists 可配置的词表集合
// nil 表示使用默认值，显式的空列表表示禁用该字段（零匹配）
type Lists struct {
	HomeCountry         string              `yaml:"home_country"`
	Locations           []string            `yaml:"locations"`
	LocationAliases     map[string][]string `yaml:"location_aliases"` // 规范地名 -> 别名
	JobTitles           []string            `yaml:"job_titles"`
	Languages           []string            `yaml:"languages"`
	Certifications      []string            `yaml:"certifications"`
	Skills              []string            `yaml:"skills"`
	InstitutionKeywords []string            `yaml:"institution_keywords"`
	ExperienceKeywords  []string            `yaml:"experience_keywords"`
	SummaryStopKeywords []string            `yaml:"summary_stop_keywords"`
	LinkDomains         []string            `yaml:"link_domains"`
}

// DefaultLists 返回默认词表的副本
func DefaultLists() Lists {
	return Lists{
		HomeCountry:         DefaultHomeCountry,
		Locations:           clone(DefaultLocations),
		JobTitles:           clone(DefaultJobTitles),
		Languages:           clone(DefaultLanguages),
		Certifications:      clone(DefaultCertifications),
		Skills:              clone(DefaultSkills),
		InstitutionKeywords: clone(DefaultInstitutionKeywords),
		ExperienceKeywords:  clone(DefaultExperienceKeywords),
		SummaryStopKeywords: clone(DefaultSummaryStopKeywords),
		LinkDomains:         clone(DefaultLinkDomains),
	}
}

// Merge 用 override 中非 nil 的字段覆盖 l，返回新值
func (l Lists) Merge(override Lists) Lists {
	out := l
	if strings.TrimSpace(override.HomeCountry) != "" {
		out.HomeCountry = override.HomeCountry
	}
	pick := func(dst *[]string, src []string) {
		if src != nil {
			*dst = clone(src)
		}
	}
	pick(&out.Locations, override.Locations)
	pick(&out.JobTitles, override.JobTitles)
	pick(&out.Languages, override.Languages)
	pick(&out.Certifications, override.Certifications)
	pick(&out.Skills, override.Skills)
	pick(&out.InstitutionKeywords, override.InstitutionKeywords)
	pick(&out.ExperienceKeywords, override.ExperienceKeywords)
	pick(&out.SummaryStopKeywords, override.SummaryStopKeywords)
	pick(&out.LinkDomains, override.LinkDomains)
	if override.LocationAliases != nil {
		out.LocationAliases = make(map[string][]string, len(override.LocationAliases))
		for k, v := range override.LocationAliases {
			out.LocationAliases[k] = clone(v)
		}
	}
	return out
}

// Gazetteer 抽取和关系推断共用的只读词表集合，构造后不可修改
type Gazetteer struct {
	homeCountry string // 标题格式

	Locations      *Table
	Cities         *Table // Locations 去掉本国
	JobTitles      *Table
	Languages      *Table
	Certifications *Table
	Skills         *Table

	InstitutionKeywords []string
	ExperienceKeywords  []string
	SummaryStopKeywords []string

	Patterns *Patterns
}

// Default 使用默认词表构建
func Default() *Gazetteer {
	return New(DefaultLists())
}

// New 根据词表构建 Gazetteer
func New(l Lists) *Gazetteer {
	home := strings.TrimSpace(l.HomeCountry)
	if home == "" {
		home = DefaultHomeCountry
	}
	home = utils.TitleCase(utils.CollapseSpaces(home))

	g := &Gazetteer{
		homeCountry:         home,
		Locations:           NewTable(),
		Cities:              NewTable(),
		JobTitles:           NewTable(l.JobTitles...),
		Languages:           NewTable(l.Languages...),
		Certifications:      NewTable(l.Certifications...),
		Skills:              NewTable(l.Skills...),
		InstitutionKeywords: lowerAll(l.InstitutionKeywords),
		ExperienceKeywords:  lowerAll(l.ExperienceKeywords),
		SummaryStopKeywords: lowerAll(l.SummaryStopKeywords),
		Patterns:            NewPatterns(l.LinkDomains),
	}

	homeKey := normalizeTerm(home)
	for _, loc := range l.Locations {
		aliases := l.LocationAliases[loc]
		g.Locations.Add(loc, aliases...)
		if normalizeTerm(loc) != homeKey {
			g.Cities.Add(loc, aliases...)
		}
	}
	// 本国名始终可识别
	g.Locations.Add(home)
	return g
}

// HomeCountry 本国名称（标题格式）
func (g *Gazetteer) HomeCountry() string {
	return g.homeCountry
}

// IsHomeCountry 判断名称是否为本国（大小写不敏感）
func (g *Gazetteer) IsHomeCountry(name string) bool {
	return normalizeTerm(name) == normalizeTerm(g.homeCountry)
}

// LoadFile 从 YAML 文件读取词表，并在默认词表上合并 overrides
// path 为空时只应用 overrides
func LoadFile(path string, overrides Lists) (*Gazetteer, error) {
	lists := DefaultLists()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取词表文件失败: %w", err)
		}
		var fromFile Lists
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("解析词表文件失败: %w", err)
		}
		lists = lists.Merge(fromFile)
	}
	return New(lists.Merge(overrides)), nil
}

func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = normalizeTerm(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
