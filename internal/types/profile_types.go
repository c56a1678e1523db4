package types

import (
	"sort"
	"strings"
)

// ResumeText 单个文档的规范化纯文本，作为实体抽取的输入
type ResumeText struct {
	Filename string `json:"filename"` // 文档标识（文件名）
	RawText  string `json:"raw_text"` // 规范化后的文本
}

// ExtractedProfile 实体抽取的结构化结果
type ExtractedProfile struct {
	Filename              string   `json:"filename"`
	Name                  string   `json:"name"`
	Locations             []string `json:"locations"`
	EducationInstitutions []string `json:"education_institutions"`
	Degrees               []string `json:"degrees"`
	Emails                []string `json:"emails"`
	Phones                []string `json:"phones"`
	Skills                []string `json:"skills"`
	JobTitles             []string `json:"job_titles"`
	LanguagesSpoken       []string `json:"languages_spoken"`
	Certifications        []string `json:"certifications"`
	Links                 []string `json:"links"`            // 有序，允许重复
	ExperienceYears       *int     `json:"experience_years"` // 无法推断时为 null
	Summary               *string  `json:"summary"`          // 无合格行时为 null
}

// NewExtractedProfile 创建所有集合字段均为空切片的档案，保证JSON输出为 [] 而非 null
func NewExtractedProfile(filename string) *ExtractedProfile {
	return &ExtractedProfile{
		Filename:              filename,
		Locations:             []string{},
		EducationInstitutions: []string{},
		Degrees:               []string{},
		Emails:                []string{},
		Phones:                []string{},
		Skills:                []string{},
		JobTitles:             []string{},
		LanguagesSpoken:       []string{},
		Certifications:        []string{},
		Links:                 []string{},
	}
}

// Normalize 修复反序列化得到的档案：nil 集合替换为空切片，集合字段去重并排序
func (p *ExtractedProfile) Normalize() {
	p.Locations = UniqueSorted(p.Locations)
	p.EducationInstitutions = UniqueSorted(p.EducationInstitutions)
	p.Degrees = UniqueSorted(p.Degrees)
	p.Emails = UniqueSorted(p.Emails)
	p.Phones = UniqueSorted(p.Phones)
	p.Skills = UniqueSorted(p.Skills)
	p.JobTitles = UniqueSorted(p.JobTitles)
	p.LanguagesSpoken = UniqueSorted(p.LanguagesSpoken)
	p.Certifications = UniqueSorted(p.Certifications)
	if p.Links == nil {
		p.Links = []string{}
	}
}

// UniqueSorted 按大小写归一化去重（保留首次出现的写法），结果按字典序排序，从不返回 nil
func UniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// RelationType 关系类型判别字段
type RelationType string

const (
	RelationSkillToJob            RelationType = "skill_to_job"
	RelationDegreeToJob           RelationType = "degree_to_job"
	RelationJobInLocation         RelationType = "job_in_location"
	RelationDegreeFrom            RelationType = "degree_from"
	RelationCertificationForSkill RelationType = "certification_for_skill"
)

// Location 解析后的地点，city/country 均可缺失
type Location struct {
	City    *string `json:"city"`
	Country *string `json:"country"`
}

// Relationship 带 type 判别字段的关系记录，各变体只填充自己的字段
type Relationship struct {
	Type          RelationType `json:"type"`
	Skill         string       `json:"skill,omitempty"`
	JobTitle      string       `json:"job_title,omitempty"`
	Degree        string       `json:"degree,omitempty"`
	Institution   string       `json:"institution,omitempty"`
	Certification string       `json:"certification,omitempty"`
	Location      *Location    `json:"location,omitempty"`
}

func NewSkillToJob(skill, jobTitle string) Relationship {
	return Relationship{Type: RelationSkillToJob, Skill: skill, JobTitle: jobTitle}
}

func NewDegreeToJob(degree, jobTitle string) Relationship {
	return Relationship{Type: RelationDegreeToJob, Degree: degree, JobTitle: jobTitle}
}

func NewJobInLocation(jobTitle string, loc Location) Relationship {
	return Relationship{Type: RelationJobInLocation, JobTitle: jobTitle, Location: &loc}
}

func NewDegreeFrom(degree, institution string) Relationship {
	return Relationship{Type: RelationDegreeFrom, Degree: degree, Institution: institution}
}

func NewCertificationForSkill(certification, skill string) Relationship {
	return Relationship{Type: RelationCertificationForSkill, Certification: certification, Skill: skill}
}

// Key 返回关系的精确去重键（变体 + 全部字段值）
func (r Relationship) Key() string {
	var city, country string
	if r.Location != nil {
		if r.Location.City != nil {
			city = "c:" + *r.Location.City
		}
		if r.Location.Country != nil {
			country = "n:" + *r.Location.Country
		}
	}
	return strings.Join([]string{
		string(r.Type), r.Skill, r.JobTitle, r.Degree, r.Institution, r.Certification, city, country,
	}, "\x1f")
}

// RelationshipSet 关系推断的输出
type RelationshipSet struct {
	Filename      string         `json:"filename"`
	Relationships []Relationship `json:"relationships"`
}

// CountByType 按关系类型统计数量
func (s *RelationshipSet) CountByType() map[RelationType]int {
	counts := make(map[RelationType]int)
	for _, r := range s.Relationships {
		counts[r.Type]++
	}
	return counts
}

// ProfileResult 单个文档经过完整流水线后的结果
type ProfileResult struct {
	Profile       *ExtractedProfile `json:"profile"`
	Relationships []Relationship    `json:"relationships"`
}

// RelationshipSet 以集合形式返回本结果的关系
func (r *ProfileResult) RelationshipSet() *RelationshipSet {
	filename := ""
	if r.Profile != nil {
		filename = r.Profile.Filename
	}
	rels := r.Relationships
	if rels == nil {
		rels = []Relationship{}
	}
	return &RelationshipSet{Filename: filename, Relationships: rels}
}
