package extractor

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvision/internal/gazetteer"
	"cvision/internal/types"
)

const sampleResume = `Amira Ben Salah
Data Scientist | Sfax, Tunisia
amira.bensalah@gmail.com  +216 98 123 456
https://www.LinkedIn.com/in/amira-bs  https://github.com/amirabs

Passionate data scientist with a strong background in statistics and machine learning, building predictive models with Python and SQL for retail and telecom clients across North Africa and Europe.

Education
Bachelor of Computer Science
Faculty of Sciences of Sfax
2012 - 2015 Higher Institute of Computer Science of Tunis

Professional Experience
Data Analyst, Tunis  2015 - 2018
Data Scientist, Sfax  2018 - 2020

Skills: Python, SQL, Docker, machine learning
Languages: Arabic, French, English
Certifications: AWS Certified Cloud Practitioner, Scrum Master
`

func fixedClock(year int) Clock {
	return func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
}

func newTestExtractor(opts ...Option) *EntityExtractor {
	opts = append([]Option{WithClock(fixedClock(2025)), WithLogger(zerolog.Nop())}, opts...)
	return New(gazetteer.Default(), opts...)
}

func TestExtractSampleResume(t *testing.T) {
	e := newTestExtractor()
	p := e.Extract(types.ResumeText{Filename: "amira.json", RawText: sampleResume})

	assert.Equal(t, "amira.json", p.Filename)
	assert.Equal(t, "Amira Ben Salah", p.Name)
	assert.Equal(t, []string{"Sfax", "Tunis", "Tunisia"}, p.Locations)
	assert.Equal(t, []string{"Faculty Of Sciences Of Sfax"}, p.EducationInstitutions)
	assert.Equal(t, []string{"Bachelor Of Computer Science"}, p.Degrees)
	assert.Equal(t, []string{"amira.bensalah@gmail.com"}, p.Emails)
	assert.Len(t, p.Phones, 1)
	assert.Contains(t, p.Skills, "Python")
	assert.Contains(t, p.Skills, "Machine Learning")
	assert.Contains(t, p.Skills, "Docker")
	assert.Equal(t, []string{"Data Analyst", "Data Scientist"}, p.JobTitles)
	assert.Equal(t, []string{"Arabic", "English", "French"}, p.LanguagesSpoken)
	assert.Equal(t, []string{"Aws Certified", "Scrum Master"}, p.Certifications)
	assert.Equal(t, []string{"https://www.linkedin.com/in/amira-bs", "https://github.com/amirabs"}, p.Links)
	require.NotNil(t, p.ExperienceYears)
	assert.Equal(t, 5, *p.ExperienceYears)
	require.NotNil(t, p.Summary)
	assert.Contains(t, *p.Summary, "Passionate data scientist")
}

func TestExtractEmptyText(t *testing.T) {
	p := newTestExtractor().Extract(types.ResumeText{Filename: "empty.txt"})

	assert.Equal(t, "", p.Name)
	assert.NotNil(t, p.Skills)
	assert.Empty(t, p.Skills)
	assert.NotNil(t, p.Links)
	assert.Nil(t, p.ExperienceYears)
	assert.Nil(t, p.Summary)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"skills":[]`)
	assert.Contains(t, string(data), `"experience_years":null`)
}

func TestExtractIsDeterministic(t *testing.T) {
	e := newTestExtractor()
	doc := types.ResumeText{Filename: "a.txt", RawText: sampleResume}

	first, err := json.Marshal(e.Extract(doc))
	require.NoError(t, err)
	second, err := json.Marshal(e.Extract(doc))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestSetFieldsAreUnique(t *testing.T) {
	text := "University of Tunis\nUNIVERSITY OF TUNIS\nuniversity   of tunis\nPython python PYTHON\nSfax SFAX sfax\n" +
		"bachelor of science\nBachelor Of Science\n"
	p := newTestExtractor().Extract(types.ResumeText{Filename: "dup.txt", RawText: text})

	assert.Equal(t, []string{"University Of Tunis"}, p.EducationInstitutions)
	assert.Equal(t, []string{"Python"}, p.Skills)
	assert.Equal(t, []string{"Sfax", "Tunis"}, p.Locations)
	assert.Equal(t, []string{"Bachelor Of Science"}, p.Degrees)
}

func TestExtractName(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		name string
		text string
		want string
	}{
		{"两个单词", "John Smith\nsomething", "John Smith"},
		{"单字母单词被忽略", "John A Smith", "John A Smith"},
		{"跳过空行", "\n\n  \nJane Doe", "Jane Doe"},
		{"小写不匹配", "john smith", ""},
		{"单词过多", "John Ronald Reuel Tolkien", ""},
		{"只看前三行", "curriculum vitae\nresume\npage one\nJohn Smith", ""},
		{"第二行匹配", "RESUME\nMary Jane Watson\nNew York", "Mary Jane Watson"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ExtractName(tt.text))
		})
	}
}

func TestEstimateExperienceYears(t *testing.T) {
	e := newTestExtractor()

	t.Run("两个年份", func(t *testing.T) {
		got := e.EstimateExperienceYears("Experience\nEngineer 2015\nLead 2020")
		require.NotNil(t, got)
		assert.Equal(t, 5, *got)
	})

	t.Run("只有一个年份", func(t *testing.T) {
		assert.Nil(t, e.EstimateExperienceYears("Experience\nEngineer since 2015"))
	})

	t.Run("相同年份", func(t *testing.T) {
		assert.Nil(t, e.EstimateExperienceYears("Experience\n2015 2015"))
	})

	t.Run("早于1950", func(t *testing.T) {
		assert.Nil(t, e.EstimateExperienceYears("Experience\n1920 - 2020"))
	})

	t.Run("无关键词", func(t *testing.T) {
		assert.Nil(t, e.EstimateExperienceYears("Education\n2010 - 2014"))
	})

	t.Run("未来年份截断到当前年份", func(t *testing.T) {
		got := e.EstimateExperienceYears("Work History\n2020 - 2030")
		require.NotNil(t, got)
		assert.Equal(t, 5, *got)
	})

	t.Run("未来年份截断后不大于最小值", func(t *testing.T) {
		assert.Nil(t, e.EstimateExperienceYears("Employment\n2026 - 2030"))
	})

	t.Run("窗口之外的年份被忽略", func(t *testing.T) {
		text := "Experience\n2018\n" + repeatLine("details", 13) + "2010\n"
		assert.Nil(t, e.EstimateExperienceYears(text))
	})

	t.Run("只使用第一个关键词行", func(t *testing.T) {
		text := "Experience\nJunior 2016\nSenior 2019\n" + repeatLine("x", 20) + "Employment 2001"
		got := e.EstimateExperienceYears(text)
		require.NotNil(t, got)
		assert.Equal(t, 3, *got)
	})
}

func TestExtractSummary(t *testing.T) {
	e := newTestExtractor()
	long := "Motivated engineer with many years spent designing reliable distributed systems and leading small teams " +
		"through ambitious delivery schedules while mentoring juniors and improving quality across products"
	require.GreaterOrEqual(t, len(strings.Fields(long)), 25)

	got := e.ExtractSummary("Name\n" + long)
	require.NotNil(t, got)
	assert.Equal(t, long, *got)

	// 含段落关键词的长行被跳过
	assert.Nil(t, e.ExtractSummary("Name\n"+long+" skills"))

	// 超出扫描范围
	assert.Nil(t, e.ExtractSummary(repeatLine("line", 10)+long))
}

func TestExtractInstitutionsSkipsYearLines(t *testing.T) {
	e := newTestExtractor()
	got := e.ExtractInstitutions("Â«Higher Institute of TechnologyÂ»\nUniversity of Sousse 2014-2018\n«National School of Engineers»")
	assert.Equal(t, []string{"Higher Institute Of Technology", "National School Of Engineers"}, got)
}

func TestExtractLocationsWordBoundary(t *testing.T) {
	e := newTestExtractor()
	assert.Equal(t, []string{"Tunisia"}, e.ExtractLocations("I live in TUNISIA"))
	assert.Equal(t, []string{"Ben Arous"}, e.ExtractLocations("Ben Arous office"))
	assert.Empty(t, e.ExtractLocations("Tunisian food"))
}

func TestExtractPhones(t *testing.T) {
	e := newTestExtractor()
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"国际前缀", "Tel: +216 98 123 456", []string{"216 98 123 456"}},
		{"括号区号", "Fixe: (71) 234-567", []string{"71) 234-567"}},
		{"短横线", "98-123-4567", []string{"98-123-4567"}},
		{"无分隔", "GSM 71234567", []string{"71234567"}},
		{"前缀无空格", "+21698123456", []string{"21698123456"}},
		{"首位为1", "18 123 456", []string{}},
		{"多个号码", "+216 98 123 456 / (71) 234-567", []string{"216 98 123 456", "71) 234-567"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.ExtractPhones(tc.in))
		})
	}
}

func TestExtractLinksKeepsDuplicates(t *testing.T) {
	e := newTestExtractor()
	got := e.ExtractLinks("https://github.com/a https://GitHub.com/a http://example.com/x")
	assert.Equal(t, []string{"https://github.com/a", "https://github.com/a"}, got)
}

func TestFieldIsolation(t *testing.T) {
	e := newTestExtractor(WithSkillStrategy(panickingStrategy{}))
	p := e.Extract(types.ResumeText{Filename: "x.txt", RawText: sampleResume})

	assert.NotNil(t, p.Skills)
	assert.Empty(t, p.Skills)
	assert.Equal(t, "Amira Ben Salah", p.Name)
	assert.NotEmpty(t, p.JobTitles)
}

func TestWithSettings(t *testing.T) {
	e := newTestExtractor(WithSettings(Settings{ExperienceWindow: 2, SummaryMinWords: 3}))
	assert.Nil(t, e.EstimateExperienceYears("Experience\n2015\n2020"))

	got := e.ExtractSummary("a b c")
	require.NotNil(t, got)
	assert.Equal(t, "a b c", *got)
}

func TestEmptyGazetteerYieldsNoMatches(t *testing.T) {
	g := gazetteer.New(gazetteer.Lists{
		Locations: []string{}, JobTitles: []string{}, Languages: []string{}, Certifications: []string{},
		Skills: []string{}, InstitutionKeywords: []string{}, ExperienceKeywords: []string{},
		SummaryStopKeywords: []string{}, LinkDomains: []string{},
	})
	e := New(g, WithLogger(zerolog.Nop()))
	p := e.Extract(types.ResumeText{Filename: "x", RawText: sampleResume})

	assert.Empty(t, p.Skills)
	assert.Empty(t, p.JobTitles)
	assert.Empty(t, p.EducationInstitutions)
	assert.Empty(t, p.Links)
	assert.Nil(t, p.ExperienceYears)
	// 本国名始终可识别
	assert.Equal(t, []string{"Tunisia"}, p.Locations)
	assert.NotEmpty(t, p.Emails)
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "panic" }

func (panickingStrategy) Skills(string) []string { panic("boom") }

func repeatLine(s string, n int) string {
	return strings.Repeat(s+"\n", n)
}
