package relation

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cvision/internal/gazetteer"
	"cvision/internal/types"
	"cvision/internal/utils"
)

// DefaultSimilarityThreshold 模糊匹配阈值，相似度需严格大于该值
const DefaultSimilarityThreshold = 0.4

// Option 推断器选项
type Option func(*Inferencer)

// WithThreshold 设置相似度阈值，取值范围 [0,1]
func WithThreshold(threshold float64) Option {
	return func(i *Inferencer) {
		if threshold >= 0 && threshold <= 1 {
			i.threshold = threshold
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger zerolog.Logger) Option {
	return func(i *Inferencer) {
		i.log = logger
	}
}

// Inferencer 在同一档案的字段之间推断关系
type Inferencer struct {
	gaz       *gazetteer.Gazetteer
	threshold float64
	log       zerolog.Logger
}

// New 创建推断器，g 为 nil 时使用默认词表
func New(g *gazetteer.Gazetteer, opts ...Option) *Inferencer {
	if g == nil {
		g = gazetteer.Default()
	}
	i := &Inferencer{
		gaz:       g,
		threshold: DefaultSimilarityThreshold,
		log:       log.Logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Threshold 当前相似度阈值
func (i *Inferencer) Threshold() float64 {
	return i.threshold
}

// InferSet 推断关系并包装为 RelationshipSet
func (i *Inferencer) InferSet(p *types.ExtractedProfile) *types.RelationshipSet {
	set := &types.RelationshipSet{Relationships: i.Infer(p)}
	if p != nil {
		set.Filename = p.Filename
	}
	return set
}

// Infer 按 skill_to_job, degree_to_job, job_in_location, degree_from, certification_for_skill
// 的顺序输出去重后的关系，空档案返回空切片
func (i *Inferencer) Infer(p *types.ExtractedProfile) []types.Relationship {
	out := &emitter{seen: make(map[string]struct{}), rels: []types.Relationship{}}
	if p == nil {
		return out.rels
	}

	skills := prepare(p.Skills)
	jobs := prepare(p.JobTitles)
	degrees := prepare(p.Degrees)
	institutions := prepare(p.EducationInstitutions)
	locations := prepare(p.Locations)
	certs := prepare(p.Certifications)

	for _, skill := range skills {
		for _, job := range jobs {
			if i.related(skill, job) {
				out.emit(types.NewSkillToJob(skill, job))
			}
		}
	}

	for _, degree := range degrees {
		for _, job := range jobs {
			if i.related(degree, job) {
				out.emit(types.NewDegreeToJob(degree, job))
			}
		}
	}

	i.inferJobLocations(out, jobs, locations, institutions)

	pairs := make(map[string]struct{})
	for _, degree := range degrees {
		for _, inst := range institutions {
			key := foldKey(degree) + "\x1f" + foldKey(inst)
			if _, ok := pairs[key]; ok {
				continue
			}
			pairs[key] = struct{}{}
			out.emit(types.NewDegreeFrom(degree, inst))
		}
	}

	for _, cert := range certs {
		for _, skill := range skills {
			if containsEither(cert, skill) {
				out.emit(types.NewCertificationForSkill(cert, skill))
			}
		}
	}

	i.log.Debug().
		Str("filename", p.Filename).
		Int("relationships", len(out.rels)).
		Msg("关系推断完成")
	return out.rels
}

func (i *Inferencer) inferJobLocations(out *emitter, jobs, locations, institutions []string) {
	if len(jobs) == 0 {
		return
	}
	if len(locations) > 0 {
		for _, job := range jobs {
			for _, loc := range locations {
				out.emit(types.NewJobInLocation(job, i.ParseLocationString(loc)))
			}
		}
		return
	}

	// 没有地点时，从机构名中寻找已知城市，国家取本国
	var cities []string
	for _, inst := range institutions {
		if found := i.gaz.Cities.MatchWords(inst); len(found) > 0 {
			cities = append(cities, utils.TitleCase(found[0]))
		}
	}
	home := i.gaz.HomeCountry()
	for _, job := range jobs {
		for _, city := range cities {
			city := city
			country := home
			out.emit(types.NewJobInLocation(job, types.Location{City: &city, Country: &country}))
		}
	}
}

// related 相似度超过阈值，或任一方包含另一方
func (i *Inferencer) related(a, b string) bool {
	return Similarity(a, b) > i.threshold || containsEither(a, b)
}

// ParseLocationString 将地点字符串解析为 {city, country}
//   - "City, Country" -> {City, Country}
//   - 已知城市 -> {City, 本国}
//   - 本国名 -> {nil, 本国}
//   - 其他单个词 -> {nil, 该词}（视为国家名）
//
// 三段及以上时取第一段为城市、最后一段为国家
func (i *Inferencer) ParseLocationString(s string) types.Location {
	s = utils.TitleCase(CleanText(s))
	var parts []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	switch {
	case len(parts) == 0:
		return types.Location{}
	case len(parts) >= 2:
		city, country := parts[0], parts[len(parts)-1]
		return types.Location{City: &city, Country: &country}
	}

	part := parts[0]
	home := i.gaz.HomeCountry()
	if i.gaz.Cities.Contains(part) {
		return types.Location{City: &part, Country: &home}
	}
	if i.gaz.IsHomeCountry(part) {
		return types.Location{Country: &home}
	}
	return types.Location{Country: &part}
}

// Similarity 两个字符串（小写）的匹配块比例，范围 [0,1]
func Similarity(a, b string) float64 {
	sa := strings.Split(strings.ToLower(a), "")
	sb := strings.Split(strings.ToLower(b), "")
	return difflib.NewMatcher(sa, sb).Ratio()
}

// CleanText 去掉书名号引号及其乱码，换行和制表符折叠为单个空格
func CleanText(s string) string {
	return utils.CollapseSpaces(utils.StripBracketQuotes(s))
}

type emitter struct {
	seen map[string]struct{}
	rels []types.Relationship
}

func (e *emitter) emit(r types.Relationship) {
	key := r.Key()
	if _, ok := e.seen[key]; ok {
		return
	}
	e.seen[key] = struct{}{}
	e.rels = append(e.rels, r)
}

// prepare 清洗字段值并排序，保证迭代顺序确定
func prepare(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = CleanText(v); v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func foldKey(s string) string {
	return strings.ToLower(utils.CollapseSpaces(s))
}

func containsEither(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
