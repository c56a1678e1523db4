package constants

import "time"

// Redis Key 统一命名规范: cvision:{module}:{entity}[:{unique_id}]
const (
	// AppPrefix 所有Redis Key的统一前缀
	AppPrefix = "cvision"

	// ProfileModulePrefix 档案模块
	ProfileModulePrefix = "profile"
	// TextModulePrefix 文本模块
	TextModulePrefix = "text"

	// EntityResult 抽取结果实体
	EntityResult = "result"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"

	// KeyTextMD5Set 原始文本MD5集合，用于跳过重复文档 (SET)
	// 格式: cvision:text:dedup_set
	KeyTextMD5Set = AppPrefix + ":" + TextModulePrefix + ":" + EntityDedupSet

	// KeyProfileResult 档案+关系结果缓存 (STRING, JSON)
	// 格式: cvision:profile:result:{filename}
	KeyProfileResult = AppPrefix + ":" + ProfileModulePrefix + ":" + EntityResult + ":%s"
)

const (
	// DefaultResultCacheTTL 结果缓存默认有效期
	DefaultResultCacheTTL = 24 * time.Hour
	// DefaultMD5ExpireDays MD5去重集合默认有效期(天)
	DefaultMD5ExpireDays = 30
)
