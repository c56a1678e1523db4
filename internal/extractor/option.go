package extractor

import (
	"time"

	"github.com/rs/zerolog"
)

// 默认启发式参数
const (
	DefaultExperienceWindow = 15   // 经验段落：关键词所在行 + 后续14行
	MinExperienceYear       = 1950 // 早于该年份的最小年份视为无效
	DefaultSummaryMinWords  = 25
	DefaultSummaryScanLines = 10
	DefaultNameScanLines    = 3
)

// Clock 返回当前时间，测试中可替换
type Clock func() time.Time

// Settings 抽取启发式的可调参数
type Settings struct {
	ExperienceWindow  int // 经验段落窗口行数（含关键词行）
	MinExperienceYear int
	SummaryMinWords   int
	SummaryScanLines  int
	NameScanLines     int
}

// DefaultSettings 返回默认参数
func DefaultSettings() Settings {
	return Settings{
		ExperienceWindow:  DefaultExperienceWindow,
		MinExperienceYear: MinExperienceYear,
		SummaryMinWords:   DefaultSummaryMinWords,
		SummaryScanLines:  DefaultSummaryScanLines,
		NameScanLines:     DefaultNameScanLines,
	}
}

// withDefaults 零值字段回落到默认值
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ExperienceWindow <= 0 {
		s.ExperienceWindow = d.ExperienceWindow
	}
	if s.MinExperienceYear <= 0 {
		s.MinExperienceYear = d.MinExperienceYear
	}
	if s.SummaryMinWords <= 0 {
		s.SummaryMinWords = d.SummaryMinWords
	}
	if s.SummaryScanLines <= 0 {
		s.SummaryScanLines = d.SummaryScanLines
	}
	if s.NameScanLines <= 0 {
		s.NameScanLines = d.NameScanLines
	}
	return s
}

// Option 抽取器选项
type Option func(*EntityExtractor)

// WithClock 设置时钟
func WithClock(clock Clock) Option {
	return func(e *EntityExtractor) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger zerolog.Logger) Option {
	return func(e *EntityExtractor) {
		e.log = logger
	}
}

// WithSkillStrategy 设置技能抽取策略
func WithSkillStrategy(strategy SkillStrategy) Option {
	return func(e *EntityExtractor) {
		if strategy != nil {
			e.skills = strategy
		}
	}
}

// WithSettings 设置启发式参数
func WithSettings(s Settings) Option {
	return func(e *EntityExtractor) {
		e.settings = s.withDefaults()
	}
}
