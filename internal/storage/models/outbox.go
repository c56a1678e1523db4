package models

import (
	"time"

	"gorm.io/datatypes"
)

// Outbox 消息状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// EventProfileExtracted 档案抽取完成事件
const EventProfileExtracted = "profile.extracted"

// OutboxMessage 与业务数据同事务写入、由中继异步投递的消息
type OutboxMessage struct {
	ID               uint64         `gorm:"primaryKey;autoIncrement"`
	AggregateID      string         `gorm:"type:varchar(36);not null;index"` // 档案ID
	EventType        string         `gorm:"type:varchar(64);not null"`
	Payload          datatypes.JSON `gorm:"type:json;not null"`
	TargetExchange   string         `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string         `gorm:"type:varchar(255);not null"`
	Status           string         `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_outbox_status_created_at"`
	RetryCount       int            `gorm:"default:0"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created_at,sort:asc"`
	ProcessedAt      *time.Time     `gorm:"type:datetime(6);null"`
	ErrorMessage     string         `gorm:"type:text"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
