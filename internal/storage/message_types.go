package storage

import (
	"time"

	"cvision/internal/types"
)

// ResumeTextMessage 队列中的待抽取文本消息
type ResumeTextMessage struct {
	types.ResumeText
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
	Source      string    `json:"source,omitempty"` // 来源渠道，例如 "api"、"batch"
}

// ProfileExtractedEvent 档案抽取完成后通过 outbox 发布的事件
type ProfileExtractedEvent struct {
	ProfileID          string                     `json:"profile_id"`
	Filename           string                     `json:"filename"`
	RawTextMD5         string                     `json:"raw_text_md5"`
	SkillsCount        int                        `json:"skills_count"`
	RelationshipsCount int                        `json:"relationships_count"`
	RelationshipTypes  map[types.RelationType]int `json:"relationship_types"`
	ProfileObjectKey   string                     `json:"profile_object_key,omitempty"`
	ExtractedAt        time.Time                  `json:"extracted_at"`
}
